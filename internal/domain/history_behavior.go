package domain

import "strings"

// Match reports whether rec passes every dimension of the filter. The keyword
// is a case-insensitive substring test OR'd across title, description and query.
func (f HistoryFilter) Match(rec HistoryRecord) bool {
	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}
	if f.DateRange != nil && !f.DateRange.Contains(rec.CreatedAt) {
		return false
	}
	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))
	if keyword == "" {
		return true
	}
	for _, field := range []string{rec.Title, rec.Description, rec.Query} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}

// Apply returns the records that match f, preserving order. The input slice
// is never modified.
func (f HistoryFilter) Apply(records []HistoryRecord) []HistoryRecord {
	out := make([]HistoryRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}
