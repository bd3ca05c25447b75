package helpers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/doeshing/mindtrail/internal/domain"
)

// KindStatistic is one row of the per-kind breakdown.
type KindStatistic struct {
	Kind  domain.HistoryKind
	Label string
	Count int
}

// ParseDateRange builds a half-open range from YYYY-MM-DD flags. until is
// inclusive on the command line, so the range ends at the start of the next
// day. Both empty yields nil.
func ParseDateRange(since, until string, loc *time.Location) (*domain.DateRange, error) {
	since, until = strings.TrimSpace(since), strings.TrimSpace(until)
	if since == "" && until == "" {
		return nil, nil
	}
	var r domain.DateRange
	if since != "" {
		t, err := time.ParseInLocation(domain.DateFormat, since, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --since date %q, want YYYY-MM-DD", since)
		}
		r.Start = t
	}
	if until != "" {
		t, err := time.ParseInLocation(domain.DateFormat, until, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --until date %q, want YYYY-MM-DD", until)
		}
		r.End = t.AddDate(0, 0, 1)
	}
	if !r.Start.IsZero() && !r.End.IsZero() && !r.Start.Before(r.End) {
		return nil, fmt.Errorf("--since %s is after --until %s", since, until)
	}
	return &r, nil
}

// KindLabel returns the display label for kind, or the raw value when unknown.
func KindLabel(kind domain.HistoryKind) string {
	for _, k := range domain.ActionKinds {
		if k.Kind == kind {
			return k.Label
		}
	}
	return string(kind)
}

// KindBreakdown orders the per-kind counts by catalogue order, followed by
// unknown kinds sorted by name. Kinds with zero records are included.
func KindBreakdown(byKind map[domain.HistoryKind]int) []KindStatistic {
	stats := make([]KindStatistic, 0, len(domain.ActionKinds))
	seen := make(map[domain.HistoryKind]bool, len(domain.ActionKinds))
	for _, k := range domain.ActionKinds {
		stats = append(stats, KindStatistic{Kind: k.Kind, Label: k.Label, Count: byKind[k.Kind]})
		seen[k.Kind] = true
	}

	var unknown []domain.HistoryKind
	for kind := range byKind {
		if !seen[kind] {
			unknown = append(unknown, kind)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	for _, kind := range unknown {
		stats = append(stats, KindStatistic{Kind: kind, Label: string(kind), Count: byKind[kind]})
	}
	return stats
}
