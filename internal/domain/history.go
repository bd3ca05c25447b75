package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// HistoryKind is the closed set of user actions the history log records.
type HistoryKind string

const (
	KindSearch      HistoryKind = "search"
	KindConsult     HistoryKind = "psychology_consult"
	KindContentView HistoryKind = "content_view"
	KindAPITest     HistoryKind = "api_test"
)

// Valid reports whether k is one of the known kinds.
func (k HistoryKind) Valid() bool {
	switch k {
	case KindSearch, KindConsult, KindContentView, KindAPITest:
		return true
	}
	return false
}

// ParseHistoryKind accepts the canonical value or the short alias used on the CLI.
func ParseHistoryKind(raw string) (HistoryKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "search":
		return KindSearch, true
	case "psychology_consult", "consult":
		return KindConsult, true
	case "content_view", "content-view", "view":
		return KindContentView, true
	case "api_test", "api-test", "api":
		return KindAPITest, true
	}
	return "", false
}

// ActionKind describes how a kind is presented.
type ActionKind struct {
	Kind        HistoryKind
	Label       string
	Description string
}

// ActionKinds lists every kind in display order.
var ActionKinds = []ActionKind{
	{Kind: KindSearch, Label: "Search", Description: "Search queries"},
	{Kind: KindConsult, Label: "Consultation", Description: "Psychology consultation sessions"},
	{Kind: KindContentView, Label: "Content view", Description: "Viewed content"},
	{Kind: KindAPITest, Label: "API test", Description: "API endpoint checks"},
}

// GeneratedContent is the payload produced by the content-generation client.
type GeneratedContent struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ImageURL      string    `json:"image_url,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	RelatedImages []string  `json:"related_images,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SearchResult is attached to KindSearch records.
type SearchResult struct {
	Contents []GeneratedContent `json:"contents,omitempty"`
}

// ConsultResult is attached to KindConsult records.
type ConsultResult struct {
	Answer   string             `json:"answer,omitempty"`
	Contents []GeneratedContent `json:"contents,omitempty"`
}

// ContentViewResult is attached to KindContentView records.
type ContentViewResult struct {
	Content GeneratedContent `json:"content"`
}

// APITestResult is attached to KindAPITest records.
type APITestResult struct {
	Endpoint   string `json:"endpoint"`
	StatusCode int    `json:"status_code"`
	Success    bool   `json:"success"`
	LatencyMS  int64  `json:"latency_ms"`
	Body       string `json:"body,omitempty"`
}

// HistoryResult holds at most one typed payload. Raw carries payloads this
// version does not understand so they survive a load/save round trip.
type HistoryResult struct {
	Search      *SearchResult      `json:"search,omitempty"`
	Consult     *ConsultResult     `json:"consult,omitempty"`
	ContentView *ContentViewResult `json:"content_view,omitempty"`
	APITest     *APITestResult     `json:"api_test,omitempty"`
	Raw         json.RawMessage    `json:"raw,omitempty"`
}

// Empty reports whether no variant is set.
func (r *HistoryResult) Empty() bool {
	return r == nil || (r.Search == nil && r.Consult == nil && r.ContentView == nil && r.APITest == nil && len(r.Raw) == 0)
}

// HistoryRecord is one entry of the action log. Records are never mutated
// after creation.
type HistoryRecord struct {
	ID          string            `json:"id"`
	Kind        HistoryKind       `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Query       string            `json:"query,omitempty"`
	Result      *HistoryResult    `json:"result,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"timestamp"`
}

// NewHistoryRecord carries the caller-supplied fields of a record; the store
// assigns ID and CreatedAt.
type NewHistoryRecord struct {
	Kind        HistoryKind
	Title       string
	Description string
	Query       string
	Result      *HistoryResult
	Metadata    map[string]string
}

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range. A zero bound is open.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// HistoryFilter narrows the live set. Zero-valued fields do not filter.
type HistoryFilter struct {
	Kind      HistoryKind
	DateRange *DateRange
	Keyword   string
}

// IsZero reports whether the filter matches everything.
func (f HistoryFilter) IsZero() bool {
	return f.Kind == "" && f.DateRange == nil && strings.TrimSpace(f.Keyword) == ""
}

// HistoryStats summarises the live set.
type HistoryStats struct {
	Total     int
	ByKind    map[HistoryKind]int
	Today     int
	ThisWeek  int
	ThisMonth int
}
