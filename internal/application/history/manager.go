// Package history implements the bounded, retention-managed action log.
//
// The in-memory record set is the source of truth. Every mutation updates it
// first and then writes the whole set to the durable store as a best-effort
// side effect: storage failures are logged and never roll back or block the
// in-memory change. A crash between the two steps loses that change on reload.
package history

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/ports"
)

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// Manager is the history store. It is safe for concurrent use; mutations are
// applied and persisted in call order.
type Manager struct {
	store    ports.KVStore
	settings domain.HistorySettings
	log      ports.Logger
	now      func() time.Time
	newID    func() string

	mu     sync.RWMutex
	items  []domain.HistoryRecord
	filter domain.HistoryFilter
}

// NewManager builds a Manager and loads the persisted set. It never fails:
// unreadable or corrupt data yields an empty log.
func NewManager(ctx context.Context, store ports.KVStore, settings domain.HistorySettings, log ports.Logger, opts ...Option) *Manager {
	if settings.MaxItems <= 0 {
		settings.MaxItems = domain.DefaultHistoryMaxItems
	}
	if settings.StorageKey == "" {
		settings.StorageKey = domain.DefaultHistoryStorageKey
	}
	m := &Manager{
		store:    store,
		settings: settings,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Reload(ctx)
	return m
}

// Reload replaces the live set with the persisted one, applying retention
// and capacity limits. The active filter is kept.
func (m *Manager) Reload(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = m.loadLocked(ctx)
}

func (m *Manager) loadLocked(ctx context.Context) []domain.HistoryRecord {
	fields := map[string]interface{}{"key": m.settings.StorageKey}
	raw, ok, err := m.store.Get(ctx, m.settings.StorageKey)
	if err != nil {
		m.log.Warn("history load failed, starting empty", withErr(fields, err))
		return nil
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	var records []domain.HistoryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		m.log.Warn("history data corrupt, starting empty", withErr(fields, err))
		return nil
	}

	loaded := len(records)
	records = normalize(records)
	if window := m.settings.RetentionWindow(); window > 0 {
		cutoff := m.now().Add(-window)
		kept := records[:0]
		for _, rec := range records {
			if rec.CreatedAt.After(cutoff) {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if len(records) > m.settings.MaxItems {
		records = records[:m.settings.MaxItems]
	}
	if len(records) != loaded {
		m.log.Info("history pruned on load", map[string]interface{}{
			"key":     m.settings.StorageKey,
			"loaded":  loaded,
			"kept":    len(records),
			"cleanup": m.settings.AutoCleanup,
		})
		m.persistLocked(ctx, records)
	}
	return records
}

// AddItem records a new action at the head of the log, evicting the oldest
// records beyond MaxItems. The returned record carries the assigned id and
// timestamp.
func (m *Manager) AddItem(ctx context.Context, data domain.NewHistoryRecord) domain.HistoryRecord {
	rec := domain.HistoryRecord{
		ID:          m.newID(),
		Kind:        data.Kind,
		Title:       data.Title,
		Description: data.Description,
		Query:       data.Query,
		Result:      data.Result,
		Metadata:    copyMetadata(data.Metadata),
		CreatedAt:   m.now(),
	}
	if !rec.Kind.Valid() {
		m.log.Warn("history record with unknown kind", map[string]interface{}{"kind": string(rec.Kind), "id": rec.ID})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// keep newest-first even if the wall clock steps backwards
	if len(m.items) > 0 && rec.CreatedAt.Before(m.items[0].CreatedAt) {
		rec.CreatedAt = m.items[0].CreatedAt
	}
	size := len(m.items) + 1
	if size > m.settings.MaxItems {
		size = m.settings.MaxItems
	}
	next := make([]domain.HistoryRecord, 0, size)
	next = append(next, rec)
	next = append(next, m.items[:size-1]...)
	m.items = next
	m.persistLocked(ctx, next)
	return cloneRecord(rec)
}

// RemoveItem deletes the record with id. Unknown ids are ignored.
func (m *Manager) RemoveItem(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, rec := range m.items {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	next := make([]domain.HistoryRecord, 0, len(m.items)-1)
	next = append(next, m.items[:idx]...)
	next = append(next, m.items[idx+1:]...)
	m.items = next
	m.persistLocked(ctx, next)
}

// ClearAll empties the log and erases the persisted set.
func (m *Manager) ClearAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	if err := m.store.Delete(ctx, m.settings.StorageKey); err != nil {
		m.log.Warn("history erase failed", withErr(map[string]interface{}{"key": m.settings.StorageKey}, err))
	}
}

// ClearByType removes every record of kind.
func (m *Manager) ClearByType(ctx context.Context, kind domain.HistoryKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]domain.HistoryRecord, 0, len(m.items))
	for _, rec := range m.items {
		if rec.Kind != kind {
			next = append(next, rec)
		}
	}
	if len(next) == len(m.items) {
		return
	}
	m.items = next
	m.persistLocked(ctx, next)
}

// GetItemByID looks up a live record.
func (m *Manager) GetItemByID(id string) (domain.HistoryRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.items {
		if rec.ID == id {
			return cloneRecord(rec), true
		}
	}
	return domain.HistoryRecord{}, false
}

// FilterItems replaces the active filter.
func (m *Manager) FilterItems(filter domain.HistoryFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
}

// ResetFilter clears the active filter.
func (m *Manager) ResetFilter() {
	m.FilterItems(domain.HistoryFilter{})
}

// Filter returns the active filter.
func (m *Manager) Filter() domain.HistoryFilter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter
}

// Items returns the live set, newest first.
func (m *Manager) Items() []domain.HistoryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRecords(m.items)
}

// FilteredItems returns the live set narrowed by the active filter.
func (m *Manager) FilteredItems() []domain.HistoryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRecords(m.filter.Apply(m.items))
}

// Len returns the number of live records.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Settings returns the effective settings.
func (m *Manager) Settings() domain.HistorySettings {
	return m.settings
}

func (m *Manager) persistLocked(ctx context.Context, records []domain.HistoryRecord) {
	fields := map[string]interface{}{"key": m.settings.StorageKey, "records": len(records)}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		m.log.Warn("history serialization failed", withErr(fields, err))
		return
	}
	if err := m.store.Set(ctx, m.settings.StorageKey, data); err != nil {
		m.log.Warn("history persist failed", withErr(fields, err))
	}
}

// normalize drops records without an id or with a repeated id and restores
// newest-first order.
func normalize(records []domain.HistoryRecord) []domain.HistoryRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneRecords(records []domain.HistoryRecord) []domain.HistoryRecord {
	out := make([]domain.HistoryRecord, len(records))
	for i, rec := range records {
		out[i] = cloneRecord(rec)
	}
	return out
}

// cloneRecord copies the metadata map; Result is shared and must be treated
// as read-only by callers.
func cloneRecord(rec domain.HistoryRecord) domain.HistoryRecord {
	rec.Metadata = copyMetadata(rec.Metadata)
	return rec
}

func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func withErr(fields map[string]interface{}, err error) map[string]interface{} {
	fields["error"] = err.Error()
	return fields
}

var _ ports.HistoryManager = (*Manager)(nil)
