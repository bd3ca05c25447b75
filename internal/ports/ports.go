// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The history store and image cache depend only on
// these interfaces, so tests can substitute in-memory fakes for real persistence
// and network access.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., KVStore, ImageProber)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/mindtrail/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.mindtrail/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// KVStore stores serialized blobs under string keys. The same contract backs
// both the durable store (survives restarts) and the volatile store (lives for
// the session). Get reports absence with ok=false and a nil error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ImageProber realizes an image reference, e.g. by confirming it loads.
type ImageProber interface {
	Probe(ctx context.Context, reference string) error
}

// ImageLookupClient returns candidate image references for a keyword.
type ImageLookupClient interface {
	Search(ctx context.Context, keyword string) ([]string, error)
}

// HistoryManager is the bounded, retention-managed action log.
// Mutations never fail: persistence problems are logged and the in-memory
// state stays authoritative.
type HistoryManager interface {
	AddItem(ctx context.Context, data domain.NewHistoryRecord) domain.HistoryRecord
	RemoveItem(ctx context.Context, id string)
	ClearAll(ctx context.Context)
	ClearByType(ctx context.Context, kind domain.HistoryKind)
	GetItemByID(id string) (domain.HistoryRecord, bool)
	FilterItems(filter domain.HistoryFilter)
	ResetFilter()
	Items() []domain.HistoryRecord
	FilteredItems() []domain.HistoryRecord
	Stats() domain.HistoryStats
}

// ImageResolver resolves image references with de-duplication. Resolution
// never fails outwardly.
type ImageResolver interface {
	Resolve(ctx context.Context, key, reference string) string
	PreloadBatch(ctx context.Context, requests []domain.ImageRequest)
	Lookup(key string) (string, bool)
	Clear()
	Size() int
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
