package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Category is the kind of driver event an adapter produced.
type Category string

const (
	CategoryInspection    Category = "inspection"
	CategoryCitation      Category = "citation"
	CategoryAccident      Category = "accident"
	CategoryNews          Category = "news"
	CategoryLaggingMetric Category = "lagging_metric"
)

// SafetyCategories are the categories counted toward incident frequency.
var SafetyCategories = []Category{CategoryInspection, CategoryCitation, CategoryAccident}

// ParseCategory maps adapter category names onto a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inspection":
		return CategoryInspection, nil
	case "citation":
		return CategoryCitation, nil
	case "accident":
		return CategoryAccident, nil
	case "news":
		return CategoryNews, nil
	case "lagging_metric", "lagging-metric", "ita":
		return CategoryLaggingMetric, nil
	default:
		return "", eris.Errorf("model: unknown incident category %q", s)
	}
}

// Incident is a driver event concerning a subcontractor. Immutable once stored.
type Incident struct {
	ID           int64     `json:"id" db:"id"`
	Source       string    `json:"source" db:"source"`
	Category     Category  `json:"category" db:"category"`
	CompanyID    int64     `json:"company_id" db:"company_id"`
	ProjectID    *int64    `json:"project_id,omitempty" db:"project_id"`
	OccurredOn   time.Time `json:"occurred_on" db:"occurred_on"`
	SeverityHint float64   `json:"severity_hint" db:"severity_hint"`
	Details      Details   `json:"details" db:"attributes"`
	Link         string    `json:"link,omitempty" db:"link"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Details is the category-specific attribute set of an incident. The set of
// implementations is closed: AccidentDetails, InspectionDetails, CitationDetails,
// NewsDetails and LaggingMetricDetails.
type Details interface {
	Category() Category
	// Text is the free text (narrative, keywords, headline) searched for trade terms.
	Text() string
	sealed()
}

// ViolationClass is the regulator's classification of a violation.
type ViolationClass string

const (
	ClassWillful          ViolationClass = "Willful"
	ClassSerious          ViolationClass = "Serious"
	ClassRepeat           ViolationClass = "Repeat"
	ClassOtherThanSerious ViolationClass = "Other-Than-Serious"
)

// Is compares classifications case-insensitively.
func (c ViolationClass) Is(other ViolationClass) bool {
	return strings.EqualFold(strings.TrimSpace(string(c)), string(other))
}

// Violation holds the citation fields shared by inspections, citations and accidents.
type Violation struct {
	Class   ViolationClass `json:"severity_type,omitempty"`
	Penalty float64        `json:"penalty,omitempty"`
	Count   int            `json:"violations,omitempty"`
}

// Narrative holds free text attached to safety events.
type Narrative struct {
	Narrative string   `json:"narrative,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

// Text joins the narrative and keywords.
func (n Narrative) Text() string {
	return strings.TrimSpace(n.Narrative + " " + strings.Join(n.Keywords, " "))
}

// AccidentDetails describes an injury or fatality event.
type AccidentDetails struct {
	Fatality    bool `json:"fatality,omitempty"`
	Catastrophe bool `json:"catastrophe,omitempty"`
	Violation
	Narrative
}

// InspectionDetails describes a regulatory inspection.
type InspectionDetails struct {
	Violation
	Narrative
}

// CitationDetails describes an issued citation.
type CitationDetails struct {
	Violation
	Narrative
}

// NewsDetails describes a news article mentioning the company.
type NewsDetails struct {
	Title    string   `json:"title,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	URL      string   `json:"url,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// LaggingMetricDetails carries a yearly injury-rate filing.
type LaggingMetricDetails struct {
	Year        int      `json:"year"`
	Recordables *int     `json:"recordables,omitempty"`
	DARTs       *int     `json:"darts,omitempty"`
	HoursWorked *int64   `json:"hours_worked,omitempty"`
	DARTRate    *float64 `json:"dart_rate,omitempty"`
}

func (*AccidentDetails) Category() Category      { return CategoryAccident }
func (*InspectionDetails) Category() Category    { return CategoryInspection }
func (*CitationDetails) Category() Category      { return CategoryCitation }
func (*NewsDetails) Category() Category          { return CategoryNews }
func (*LaggingMetricDetails) Category() Category { return CategoryLaggingMetric }

func (d *NewsDetails) Text() string {
	return strings.TrimSpace(d.Title + " " + d.Summary + " " + strings.Join(d.Keywords, " "))
}

func (*LaggingMetricDetails) Text() string { return "" }

func (*AccidentDetails) sealed()      {}
func (*InspectionDetails) sealed()    {}
func (*CitationDetails) sealed()      {}
func (*NewsDetails) sealed()          {}
func (*LaggingMetricDetails) sealed() {}

// NewDetails returns an empty Details value for the category.
func NewDetails(c Category) (Details, error) {
	switch c {
	case CategoryAccident:
		return &AccidentDetails{}, nil
	case CategoryInspection:
		return &InspectionDetails{}, nil
	case CategoryCitation:
		return &CitationDetails{}, nil
	case CategoryNews:
		return &NewsDetails{}, nil
	case CategoryLaggingMetric:
		return &LaggingMetricDetails{}, nil
	default:
		return nil, eris.Errorf("model: unknown incident category %q", c)
	}
}

// DecodeDetails parses a stored or adapter-supplied attribute document into the
// category's Details. Unknown keys are ignored; an empty document yields zero values.
func DecodeDetails(c Category, raw []byte) (Details, error) {
	d, err := NewDetails(c)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, eris.Wrapf(err, "model: decode %s attributes", c)
	}
	return d, nil
}

// DecodeAttributes converts an open attribute map into the category's Details.
func DecodeAttributes(c Category, attrs map[string]any) (Details, error) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, eris.Wrapf(err, "model: encode %s attributes", c)
	}
	return DecodeDetails(c, raw)
}

// EncodeDetails serializes Details for storage. Nil encodes as an empty object.
func EncodeDetails(d Details) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, eris.Wrapf(err, "model: encode %s attributes", d.Category())
	}
	return raw, nil
}
