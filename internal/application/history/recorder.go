package history

import (
	"context"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/ports"
)

const consultTitleRunes = 30

// Recorder builds well-formed records for each action kind.
type Recorder struct {
	History ports.HistoryManager
}

// RecordSearch logs a search query.
func (r Recorder) RecordSearch(ctx context.Context, query string, result *domain.SearchResult) domain.HistoryRecord {
	var res *domain.HistoryResult
	if result != nil {
		res = &domain.HistoryResult{Search: result}
	}
	return r.History.AddItem(ctx, domain.NewHistoryRecord{
		Kind:        domain.KindSearch,
		Title:       "Search: " + query,
		Description: "Search keyword: " + query,
		Query:       query,
		Result:      res,
	})
}

// RecordConsult logs a consultation question and its answer.
func (r Recorder) RecordConsult(ctx context.Context, question string, answer *domain.ConsultResult) domain.HistoryRecord {
	var res *domain.HistoryResult
	if answer != nil {
		res = &domain.HistoryResult{Consult: answer}
	}
	return r.History.AddItem(ctx, domain.NewHistoryRecord{
		Kind:        domain.KindConsult,
		Title:       "Consultation: " + Truncate(question, consultTitleRunes),
		Description: question,
		Query:       question,
		Result:      res,
	})
}

// RecordContentView logs that a piece of generated content was opened.
func (r Recorder) RecordContentView(ctx context.Context, title string, content *domain.GeneratedContent) domain.HistoryRecord {
	var res *domain.HistoryResult
	if content != nil {
		res = &domain.HistoryResult{ContentView: &domain.ContentViewResult{Content: *content}}
	}
	return r.History.AddItem(ctx, domain.NewHistoryRecord{
		Kind:        domain.KindContentView,
		Title:       "Viewed: " + title,
		Description: "Viewed content: " + title,
		Result:      res,
	})
}

// RecordAPITest logs an endpoint check.
func (r Recorder) RecordAPITest(ctx context.Context, endpoint string, result *domain.APITestResult) domain.HistoryRecord {
	var res *domain.HistoryResult
	if result != nil {
		res = &domain.HistoryResult{APITest: result}
	}
	return r.History.AddItem(ctx, domain.NewHistoryRecord{
		Kind:        domain.KindAPITest,
		Title:       "API test: " + endpoint,
		Description: "Tested API endpoint: " + endpoint,
		Query:       endpoint,
		Result:      res,
	})
}

// Truncate shortens s to n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
