package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// FilePermissions is the permission for data files (rw-r--r--)
	FilePermissions = 0o644
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// History constants
const (
	DefaultHistoryMaxItems      = 1000
	DefaultHistoryStorageKey    = "psychology_assistant_history"
	DefaultHistoryRetentionDays = 30
	DefaultHistoryListLimit     = 20

	HistoryBackendFile   = "file"
	HistoryBackendSQLite = "sqlite"
)

// Image cache constants
const (
	// DefaultImageConcurrency bounds simultaneous resolutions per preload group.
	DefaultImageConcurrency = 4
	// DefaultImageTimeout is how long a caller waits on one resolution.
	DefaultImageTimeout = 5 * time.Second
	// DefaultImageGroupPause separates consecutive preload groups.
	DefaultImageGroupPause = 50 * time.Millisecond
	// DefaultProbeTimeout caps the underlying HTTP probe.
	DefaultProbeTimeout = 10 * time.Second
)

// Lookup constants
const (
	DefaultLookupEndpoint     = "https://api.unsplash.com/search/photos"
	DefaultLookupAccessKeyEnv = "UNSPLASH_ACCESS_KEY"
	DefaultLookupPerPage      = 6
	DefaultLookupRate         = 1.0
	FallbackDefaultTopic      = "default"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
	// DateFormat is used for CLI date flags
	DateFormat = "2006-01-02"
)
