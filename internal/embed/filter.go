package embed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultDateColumn = "date"
	dateLayout        = "2006-01-02"
)

var ErrInvalidDateRange = errors.New("invalid date range")

// Query parameters that carry a date filter or cache hint. They are removed
// before a new range is applied so repeated calls never stack filters.
var dateParams = []string{
	"time_range", "since", "until",
	"start_date", "end_date", "date_from", "date_to",
	"_t", "cache_timeout",
}

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return ErrInvalidDateRange
	}
	if r.From.Format(dateLayout) > r.To.Format(dateLayout) {
		return fmt.Errorf("%w: from is after to", ErrInvalidDateRange)
	}
	return nil
}

// ParseDateRange builds a range from YYYY-MM-DD strings. Two empty strings
// mean no range.
func ParseDateRange(from, to string) (*DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	f, err := time.Parse(dateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("%w: from: %v", ErrInvalidDateRange, err)
	}
	t, err := time.Parse(dateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("%w: to: %v", ErrInvalidDateRange, err)
	}
	r := &DateRange{From: f, To: t}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

type adhocFilter struct {
	ExpressionType string `json:"expressionType"`
	Subject        string `json:"subject"`
	Operator       string `json:"operator"`
	Comparator     string `json:"comparator"`
	Clause         string `json:"clause"`
}

// FilterInjector rewrites embed URLs so the view only shows a date window.
// The range is written in several equivalent encodings because Superset
// versions disagree on which one they read.
type FilterInjector struct {
	Column string
	Now    func() time.Time
}

func NewFilterInjector(column string) *FilterInjector {
	if column == "" {
		column = DefaultDateColumn
	}
	return &FilterInjector{Column: column, Now: time.Now}
}

// Apply returns rawURL scoped to r. A nil range returns rawURL unchanged.
// On error the original URL is returned alongside it.
func (f *FilterInjector) Apply(rawURL string, r *DateRange) (string, error) {
	if r == nil {
		return rawURL, nil
	}
	if err := r.validate(); err != nil {
		return rawURL, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, fmt.Errorf("parse embed url: %w", err)
	}

	from := r.From.Format(dateLayout)
	to := r.To.Format(dateLayout)
	timeRange := from + " : " + to

	q := u.Query()
	for _, p := range dateParams {
		q.Del(p)
	}

	formData, err := f.mergeFormData(q.Get("form_data"), from, to, timeRange)
	if err != nil {
		return rawURL, err
	}
	q.Set("form_data", formData)
	q.Set("time_range", timeRange)
	q.Set("start_date", from)
	q.Set("end_date", to)
	q.Set("_t", strconv.FormatInt(f.now().UnixMilli(), 10))
	q.Set("cache_timeout", "0")
	q.Set("standalone", "1")

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *FilterInjector) mergeFormData(raw, from, to, timeRange string) (string, error) {
	fd := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &fd); err != nil {
			return "", fmt.Errorf("decode form_data: %w", err)
		}
	}
	if fd == nil {
		fd = map[string]any{}
	}

	kept := []any{}
	if existing, ok := fd["adhoc_filters"].([]any); ok {
		for _, entry := range existing {
			if m, ok := entry.(map[string]any); ok && m["subject"] == f.Column {
				continue
			}
			kept = append(kept, entry)
		}
	}
	kept = append(kept,
		adhocFilter{ExpressionType: "SIMPLE", Subject: f.Column, Operator: ">=", Comparator: from, Clause: "WHERE"},
		adhocFilter{ExpressionType: "SIMPLE", Subject: f.Column, Operator: "<=", Comparator: to, Clause: "WHERE"},
	)
	fd["adhoc_filters"] = kept
	fd["time_range"] = timeRange

	b, err := json.Marshal(fd)
	if err != nil {
		return "", fmt.Errorf("encode form_data: %w", err)
	}
	return string(b), nil
}

func (f *FilterInjector) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}
