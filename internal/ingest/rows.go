package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/model"
)

// validate is a singleton validator reporting csv column names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"csv", "json"} {
			name := strings.Split(f.Tag.Get(tag), ",")[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// RelationshipRow is one line of a relationship upload.
type RelationshipRow struct {
	GCName        string `csv:"gc_name" validate:"required_without=OwnerName"`
	OwnerName     string `csv:"owner_name"`
	SubName       string `csv:"sub_name" validate:"required"`
	ProjectName   string `csv:"project_name"`
	Location      string `csv:"location"`
	Trade         string `csv:"trade"`
	ContractValue string `csv:"contract_value"`
	POValue       string `csv:"po_value"` // legacy column name for contract_value
	StartDate     string `csv:"start_date"`
	EndDate       string `csv:"end_date"`
}

// AliasRow is one line of an alias upload.
type AliasRow struct {
	CanonicalName string `csv:"canonical_name" validate:"required"`
	Alias         string `csv:"alias" validate:"required"`
}

// MetricRow is one line of a yearly lagging-metric upload. A row needs either
// dart_rate or both darts and hours_worked for the scorer to use it.
type MetricRow struct {
	SubName     string `csv:"sub_name" validate:"required"`
	Year        string `csv:"year" validate:"required"`
	Recordables string `csv:"recordables"`
	DARTs       string `csv:"darts"`
	HoursWorked string `csv:"hours_worked"`
	DARTRate    string `csv:"dart_rate"`
	SourceLink  string `csv:"source_link"`
}

func (r *RelationshipRow) trim() {
	for _, f := range []*string{
		&r.GCName, &r.OwnerName, &r.SubName, &r.ProjectName, &r.Location,
		&r.Trade, &r.ContractValue, &r.POValue, &r.StartDate, &r.EndDate,
	} {
		*f = strings.TrimSpace(*f)
	}
}

func (r *AliasRow) trim() {
	r.CanonicalName = strings.TrimSpace(r.CanonicalName)
	r.Alias = strings.TrimSpace(r.Alias)
}

func (r *MetricRow) trim() {
	for _, f := range []*string{&r.SubName, &r.Year, &r.Recordables, &r.DARTs, &r.HoursWorked, &r.DARTRate, &r.SourceLink} {
		*f = strings.TrimSpace(*f)
	}
}

// validateRow runs struct validation and flattens the failures into one message.
func validateRow(row any) error {
	err := validate.Struct(row)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "ingest: validate row")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return eris.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "required_without":
		return fmt.Sprintf("%s or %s is required", fe.Field(), columnName(fe))
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s", fe.Field(), map[string]string{"gte": ">=", "lte": "<="}[fe.Tag()], fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// columnName maps the struct field named in a cross-field tag to its column.
func columnName(fe validator.FieldError) string {
	switch fe.Param() {
	case "OwnerName":
		return "owner_name"
	case "GCName":
		return "gc_name"
	default:
		return fe.Param()
	}
}

// dateLayouts are the date formats accepted in uploads.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// parseDate parses an optional date column. Blank yields nil.
func parseDate(column, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, eris.Errorf("%s: invalid date %q", column, s)
}

// parseMoney parses an optional currency column, tolerating "$" and thousands separators.
func parseMoney(column, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, eris.Errorf("%s: invalid number %q", column, s)
	}
	if v < 0 {
		return nil, eris.Errorf("%s: must be >= 0, got %q", column, s)
	}
	return &v, nil
}

// parsedRelationship holds the typed columns of a RelationshipRow.
type parsedRelationship struct {
	value      *float64
	start, end *time.Time
}

func (r RelationshipRow) parse() (*parsedRelationship, error) {
	r.trim()
	if err := validateRow(r); err != nil {
		return nil, err
	}
	raw, column := r.ContractValue, "contract_value"
	if strings.TrimSpace(raw) == "" {
		raw, column = r.POValue, "po_value"
	}
	value, err := parseMoney(column, raw)
	if err != nil {
		return nil, err
	}
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, eris.Errorf("end_date %s is before start_date %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return &parsedRelationship{value: value, start: start, end: end}, nil
}

// parseCount parses an optional non-negative integer column.
func parseCount(column, s string) (*int64, error) {
	v, err := parseMoney(column, s)
	if err != nil || v == nil {
		return nil, err
	}
	if *v != float64(int64(*v)) {
		return nil, eris.Errorf("%s: must be a whole number, got %q", column, s)
	}
	n := int64(*v)
	return &n, nil
}

// parse validates the row and returns its metric without a sub id.
func (r MetricRow) parse() (*model.LaggingMetric, error) {
	r.trim()
	if err := validateRow(r); err != nil {
		return nil, err
	}
	year, err := strconv.Atoi(r.Year)
	if err != nil || year < 1970 || year > 2100 {
		return nil, eris.Errorf("year: invalid year %q", r.Year)
	}
	m := &model.LaggingMetric{Year: year, SourceLink: r.SourceLink}

	recordables, err := parseCount("recordables", r.Recordables)
	if err != nil {
		return nil, err
	}
	darts, err := parseCount("darts", r.DARTs)
	if err != nil {
		return nil, err
	}
	if m.HoursWorked, err = parseCount("hours_worked", r.HoursWorked); err != nil {
		return nil, err
	}
	if m.DARTRate, err = parseMoney("dart_rate", r.DARTRate); err != nil {
		return nil, err
	}
	m.Recordables = intPtr(recordables)
	m.DARTs = intPtr(darts)

	if _, ok := m.Rate(); !ok {
		return nil, eris.New("dart_rate or darts and hours_worked is required")
	}
	return m, nil
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
