package model

import "time"

// TalkTrack is the recommended angle for an outreach conversation.
type TalkTrack string

const (
	TalkTrackPostIncident   TalkTrack = "post_incident"
	TalkTrackTrendAnalysis  TalkTrack = "trend_analysis"
	TalkTrackPortfolioRisk  TalkTrack = "portfolio_risk"
	TalkTrackComplianceGaps TalkTrack = "compliance_gaps"
)

// Opportunity is a scored (GC-or-owner, driver incident) pair.
// At most one exists per (TargetID, DriverIncidentID).
type Opportunity struct {
	ID               int64     `json:"id" db:"id"`
	TargetID         int64     `json:"target_id" db:"target_id"`
	TargetRole       Role      `json:"target_role" db:"target_role"`
	DriverIncidentID int64     `json:"driver_incident_id" db:"driver_incident_id"`
	Score            float64   `json:"score" db:"score"`
	Confidence       float64   `json:"confidence" db:"confidence"`
	TalkTrack        TalkTrack `json:"talk_track" db:"talk_track"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`

	// TargetName is filled by listings that join companies.
	TargetName string `json:"target_name,omitempty" db:"-"`
	// Rationale is regenerated by the scorer and never stored.
	Rationale []string `json:"rationale,omitempty" db:"-"`
}

// RebuildRun records one opportunity rebuild invocation.
type RebuildRun struct {
	ID         string     `json:"id" db:"id"`
	Since      *time.Time `json:"since,omitempty" db:"since"`
	Until      *time.Time `json:"until,omitempty" db:"until"`
	Incidents  int        `json:"incidents" db:"incidents"`
	Created    int        `json:"created" db:"created"`
	Updated    int        `json:"updated" db:"updated"`
	Skipped    int        `json:"skipped" db:"skipped"`
	Errors     []string   `json:"errors" db:"errors"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt time.Time  `json:"finished_at" db:"finished_at"`
}
