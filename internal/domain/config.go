package domain

// Config mirrors ~/.mindtrail/config.yaml.
type Config struct {
	ConfigFormatVersion string          `yaml:"config_format_version"`
	History             HistorySettings `yaml:"history"`
	Images              ImageSettings   `yaml:"images"`
	Lookup              LookupSettings  `yaml:"lookup"`
	Logging             LoggingSettings `yaml:"logging"`
}

// HistorySettings configures the history store.
type HistorySettings struct {
	MaxItems      int    `yaml:"max_items"`
	StorageKey    string `yaml:"storage_key"`
	AutoCleanup   bool   `yaml:"auto_cleanup"`
	RetentionDays int    `yaml:"retention_days"`
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
}

// ImageSettings configures the image cache and its preload scheduler.
type ImageSettings struct {
	Concurrency  int    `yaml:"concurrency"`
	Timeout      string `yaml:"timeout"`
	GroupPause   string `yaml:"group_pause"`
	ProbeTimeout string `yaml:"probe_timeout"`
}

// LookupSettings configures the upstream image lookup client.
type LookupSettings struct {
	Endpoint      string             `yaml:"endpoint"`
	AccessKeyEnv  string             `yaml:"access_key_env"`
	PerPage       int                `yaml:"per_page"`
	RatePerSecond float64            `yaml:"rate_per_second"`
	Fallback      []FallbackImageSet `yaml:"fallback"`
}

// LoggingSettings configures log level and optional rotated file output.
type LoggingSettings struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}
