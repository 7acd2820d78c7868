package model

// LaggingMetric is a yearly injury-rate record for a subcontractor.
type LaggingMetric struct {
	ID          int64    `json:"id" db:"id"`
	SubID       int64    `json:"sub_id" db:"sub_id"`
	Year        int      `json:"year" db:"year"`
	Recordables *int     `json:"recordables,omitempty" db:"recordables"`
	DARTs       *int     `json:"darts,omitempty" db:"darts"`
	HoursWorked *int64   `json:"hours_worked,omitempty" db:"hours_worked"`
	DARTRate    *float64 `json:"dart_rate,omitempty" db:"dart_rate"`
	SourceLink  string   `json:"source_link,omitempty" db:"source_link"`
}

// dartHoursBase is the OSHA normalization base: 100 full-time workers for a year.
const dartHoursBase = 200_000

// Rate returns the DART rate, deriving it from DART cases and hours worked when
// no rate was reported. ok is false when neither is available.
func (m LaggingMetric) Rate() (rate float64, ok bool) {
	if m.DARTRate != nil && *m.DARTRate > 0 {
		return *m.DARTRate, true
	}
	if m.DARTs != nil && m.HoursWorked != nil && *m.HoursWorked > 0 {
		return float64(*m.DARTs) * dartHoursBase / float64(*m.HoursWorked), true
	}
	return 0, false
}
