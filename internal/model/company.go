// Package model defines the records shared by the resolver, scorer and opportunity builder.
package model

import (
	"strings"
	"time"
)

// Role classifies a company's position in the construction supply chain.
type Role string

const (
	RoleGC      Role = "GC"
	RoleOwner   Role = "Owner"
	RoleSub     Role = "Sub"
	RoleUnknown Role = "Unknown"
)

// ParseRole maps free text to a Role. Anything unrecognized is RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gc", "general contractor", "general_contractor":
		return RoleGC
	case "owner":
		return RoleOwner
	case "sub", "subcontractor":
		return RoleSub
	default:
		return RoleUnknown
	}
}

// Company is the canonical business entity.
type Company struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	Role           Role      `json:"role" db:"role"`
	NAICS          string    `json:"naics,omitempty" db:"naics"`
	State          string    `json:"state,omitempty" db:"state"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// CompanyAlias is an alternate name known to refer to a company.
// Alias holds the normalized alias text.
type CompanyAlias struct {
	ID         int64     `json:"id" db:"id"`
	CompanyID  int64     `json:"company_id" db:"company_id"`
	Alias      string    `json:"alias" db:"alias"`
	Confidence float64   `json:"confidence" db:"confidence"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Project is a construction project a subcontractor may have worked on.
type Project struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Location  string     `json:"location,omitempty" db:"location"`
	OwnerID   *int64     `json:"owner_id,omitempty" db:"owner_id"`
	GCID      *int64     `json:"gc_id,omitempty" db:"gc_id"`
	StartDate *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
}

// Relationship records that a sub worked for a GC and/or owner.
type Relationship struct {
	ID            int64      `json:"id" db:"id"`
	SubID         int64      `json:"sub_id" db:"sub_id"`
	GCID          *int64     `json:"gc_id,omitempty" db:"gc_id"`
	OwnerID       *int64     `json:"owner_id,omitempty" db:"owner_id"`
	ProjectID     *int64     `json:"project_id,omitempty" db:"project_id"`
	Trade         string     `json:"trade,omitempty" db:"trade"`
	ContractValue *float64   `json:"contract_value,omitempty" db:"contract_value"`
	StartDate     *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty" db:"end_date"`
}

// Involves reports whether companyID is the GC or the owner on the relationship.
func (r Relationship) Involves(companyID int64) bool {
	return (r.GCID != nil && *r.GCID == companyID) ||
		(r.OwnerID != nil && *r.OwnerID == companyID)
}

// FullyDetailed reports whether the relationship names a project and a complete date range.
func (r Relationship) FullyDetailed() bool {
	return r.ProjectID != nil && r.StartDate != nil && r.EndDate != nil
}

// Targets returns the distinct GC/owner companies on the relationship with their roles.
func (r Relationship) Targets() []Target {
	var out []Target
	if r.GCID != nil {
		out = append(out, Target{CompanyID: *r.GCID, Role: RoleGC})
	}
	if r.OwnerID != nil && (r.GCID == nil || *r.OwnerID != *r.GCID) {
		out = append(out, Target{CompanyID: *r.OwnerID, Role: RoleOwner})
	}
	return out
}

// Target is a GC or owner referenced by a relationship.
type Target struct {
	CompanyID int64
	Role      Role
}
