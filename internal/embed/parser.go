package embed

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

type ResourceType string

const (
	ResourceChart     ResourceType = "chart"
	ResourceDashboard ResourceType = "dashboard"
)

// Target is the result of parsing an embed input. An unparseable input
// yields Valid=false with Type chart and an empty ID.
type Target struct {
	Type   ResourceType `json:"type"`
	ID     string       `json:"id"`
	URL    string       `json:"url"`
	Valid  bool         `json:"valid"`
	Reason string       `json:"reason,omitempty"`
}

// Key identifies the resource for token caching and filter toggles.
func (t Target) Key() string {
	return string(t.Type) + "-" + t.ID
}

const reasonInvalid = "invalid embed"

var srcPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsrc\s*=\s*"([^"]*)"`),
	regexp.MustCompile(`(?i)\bsrc\s*=\s*'([^']*)'`),
	regexp.MustCompile(`(?i)\bsrc\s*=\s*([^\s"'>]+)`),
}

type pathPattern struct {
	kind ResourceType
	re   *regexp.Regexp
}

// Chart shapes are checked before dashboard shapes, and the longer
// dashboard shapes before /dashboard/<id> so "p" is never taken as an id.
var pathPatterns = []pathPattern{
	{ResourceChart, regexp.MustCompile(`/superset/explore/p/([^/]+)`)},
	{ResourceChart, regexp.MustCompile(`/explore/p/([^/]+)`)},
	{ResourceChart, regexp.MustCompile(`/superset/slice/([^/]+)`)},
	{ResourceChart, regexp.MustCompile(`/chart/([^/]+)`)},
	{ResourceDashboard, regexp.MustCompile(`/superset/dashboard/p/([^/]+)`)},
	{ResourceDashboard, regexp.MustCompile(`/superset/dashboard/([^/]+)`)},
	{ResourceDashboard, regexp.MustCompile(`/dashboard/p/([^/]+)`)},
	{ResourceDashboard, regexp.MustCompile(`/dashboard/([^/]+)`)},
	{ResourceDashboard, regexp.MustCompile(`/d/([^/]+)`)},
}

var queryParams = []struct {
	name string
	kind ResourceType
}{
	{"slice_id", ResourceChart},
	{"chart_id", ResourceChart},
	{"dashboard_id", ResourceDashboard},
}

// Parse extracts the embedded resource from raw iframe HTML or a URL.
func Parse(input string) Target {
	input = strings.TrimSpace(input)
	if input == "" {
		return invalid("")
	}

	candidate, ok := extractSrc(input)
	if !ok {
		candidate = input
	}
	candidate = strings.TrimSpace(candidate)

	switch {
	case strings.HasPrefix(candidate, "//"):
		candidate = "https:" + candidate
	case strings.HasPrefix(candidate, "/"):
		// no base domain to resolve against
		return invalid(candidate)
	case strings.HasPrefix(strings.ToLower(candidate), "http"):
	default:
		return invalid(candidate)
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return invalid(candidate)
	}
	return match(u, candidate)
}

func extractSrc(input string) (string, bool) {
	for _, re := range srcPatterns {
		if m := re.FindStringSubmatch(input); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func match(u *url.URL, raw string) Target {
	for _, p := range pathPatterns {
		if m := p.re.FindStringSubmatch(u.Path); m != nil && m[1] != "" {
			return valid(p.kind, m[1], raw)
		}
	}

	q := u.Query()
	for _, p := range queryParams {
		if id := q.Get(p.name); id != "" {
			return valid(p.kind, id, raw)
		}
	}
	if id := formDataSliceID(q.Get("form_data")); id != "" {
		return valid(ResourceChart, id, raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if last := segments[len(segments)-1]; last != "" {
		return valid(ResourceChart, last, raw)
	}
	return invalid(raw)
}

// formDataSliceID reads slice_id out of an explore form_data payload.
func formDataSliceID(raw string) string {
	if raw == "" {
		return ""
	}
	var fd struct {
		SliceID json.Number `json:"slice_id"`
	}
	if err := json.Unmarshal([]byte(raw), &fd); err != nil {
		return ""
	}
	return fd.SliceID.String()
}

func valid(kind ResourceType, id, raw string) Target {
	return Target{Type: kind, ID: id, URL: raw, Valid: true}
}

func invalid(raw string) Target {
	return Target{Type: ResourceChart, URL: raw, Reason: reasonInvalid}
}
