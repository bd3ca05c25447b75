package history

import (
	"time"

	"github.com/doeshing/mindtrail/internal/domain"
)

const day = 24 * time.Hour

// Stats summarises the live set relative to the manager's clock.
func (m *Manager) Stats() domain.HistoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return computeStats(m.items, m.now())
}

func computeStats(records []domain.HistoryRecord, now time.Time) domain.HistoryStats {
	stats := domain.HistoryStats{
		Total:  len(records),
		ByKind: make(map[domain.HistoryKind]int),
	}
	for _, rec := range records {
		stats.ByKind[rec.Kind]++
		age := now.Sub(rec.CreatedAt)
		if age < day {
			stats.Today++
		}
		if age < 7*day {
			stats.ThisWeek++
		}
		if age < 30*day {
			stats.ThisMonth++
		}
	}
	return stats
}
