package domain_test

import (
	"testing"
	"time"

	"github.com/doeshing/mindtrail/internal/domain"
)

func TestHistoryFilter_Match(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := domain.HistoryRecord{
		ID:          "a",
		Kind:        domain.KindSearch,
		Title:       "Search: sleep",
		Description: "Looked for Anxiety tips",
		Query:       "sleep",
		CreatedAt:   base,
	}

	tests := []struct {
		name   string
		filter domain.HistoryFilter
		want   bool
	}{
		{name: "zero filter", filter: domain.HistoryFilter{}, want: true},
		{name: "kind match", filter: domain.HistoryFilter{Kind: domain.KindSearch}, want: true},
		{name: "kind mismatch", filter: domain.HistoryFilter{Kind: domain.KindAPITest}, want: false},
		{name: "keyword in description ignores case", filter: domain.HistoryFilter{Keyword: "anxiety"}, want: true},
		{name: "keyword in query", filter: domain.HistoryFilter{Keyword: "SLE"}, want: true},
		{name: "keyword absent", filter: domain.HistoryFilter{Keyword: "stress"}, want: false},
		{
			name:   "inside range",
			filter: domain.HistoryFilter{DateRange: &domain.DateRange{Start: base, End: base.Add(time.Hour)}},
			want:   true,
		},
		{
			name:   "end is exclusive",
			filter: domain.HistoryFilter{DateRange: &domain.DateRange{Start: base.Add(-time.Hour), End: base}},
			want:   false,
		},
		{
			name:   "kind and keyword are AND'd",
			filter: domain.HistoryFilter{Kind: domain.KindConsult, Keyword: "sleep"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(rec); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPickFallback(t *testing.T) {
	sets := []domain.FallbackImageSet{
		{Topic: "anxiety", References: []string{"a1", "a2"}},
		{Topic: "default", References: []string{"d1"}},
	}
	if got := domain.PickFallback(sets, "Coping with Anxiety at work"); len(got) != 2 || got[0] != "a1" {
		t.Fatalf("expected anxiety set, got %v", got)
	}
	if got := domain.PickFallback(sets, "sleep"); len(got) != 1 || got[0] != "d1" {
		t.Fatalf("expected default set, got %v", got)
	}
	if got := domain.PickFallback(nil, "sleep"); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestImageRequestsFor(t *testing.T) {
	reqs := domain.ImageRequestsFor("calm", []string{"u0", "u1"})
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[1].Key != "images_calm_1" || reqs[1].Reference != "u1" {
		t.Fatalf("unexpected request %+v", reqs[1])
	}
}
