package config

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/mindtrail/assets"
	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/pkg/filesystem"
	"github.com/doeshing/mindtrail/internal/ports"
)

// Environment variables consulted by the loader.
const (
	EnvConfigPath           = "MINDTRAIL_CONFIG"
	EnvHistoryMaxItems      = "MINDTRAIL_HISTORY_MAX_ITEMS"
	EnvHistoryRetentionDays = "MINDTRAIL_HISTORY_RETENTION_DAYS"
	EnvLogLevel             = "MINDTRAIL_LOG_LEVEL"
)

// FileLoader loads YAML configuration from ~/.mindtrail/config.yaml (overridable via MINDTRAIL_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, errors.Wrap(err, "ensure config dir")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := writeDefault(path, cfg); err != nil {
				return domain.Config{}, err
			}
			return applyEnv(cfg), nil
		}
		return domain.Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	return applyEnv(hydrateDefaults(cfg)), nil
}

// Path returns the resolved config file path.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

// Save writes the given config back to disk.
func (l *FileLoader) Save(cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return errors.Wrap(err, "ensure config dir")
	}
	return errors.Wrapf(os.WriteFile(path, raw, domain.SecureFilePermissions), "write config %s", path)
}

// Reset overwrites the config with defaults and returns the default snapshot.
func (l *FileLoader) Reset() (domain.Config, error) {
	cfg := DefaultConfig()
	if err := l.Save(cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Backup copies the current config file to a timestamped backup.
func (l *FileLoader) Backup() (string, error) {
	path := l.resolvePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read config %s", path)
	}
	backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102T150405"))
	if err := os.WriteFile(backup, data, domain.SecureFilePermissions); err != nil {
		return "", errors.Wrapf(err, "write backup %s", backup)
	}
	return backup, nil
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return expandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".mindtrail", "config.yaml")
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal default config")
	}
	return errors.Wrapf(os.WriteFile(path, raw, domain.SecureFilePermissions), "write default config %s", path)
}

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() domain.Config {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		cfg = domain.Config{
			ConfigFormatVersion: "1",
			History:             domain.HistorySettings{AutoCleanup: true},
		}
	}
	return hydrateDefaults(cfg)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}

	h := &cfg.History
	if h.MaxItems <= 0 {
		h.MaxItems = domain.DefaultHistoryMaxItems
	}
	if h.StorageKey == "" {
		h.StorageKey = domain.DefaultHistoryStorageKey
	}
	if h.RetentionDays == 0 {
		h.RetentionDays = domain.DefaultHistoryRetentionDays
	}
	if h.Backend == "" {
		h.Backend = domain.HistoryBackendFile
	}
	h.Backend = strings.ToLower(h.Backend)
	if h.Path != "" {
		h.Path = expandPath(h.Path)
	}

	img := &cfg.Images
	if img.Concurrency == 0 {
		img.Concurrency = domain.DefaultImageConcurrency
	}
	if img.Timeout == "" {
		img.Timeout = domain.DefaultImageTimeout.String()
	}
	if img.GroupPause == "" {
		img.GroupPause = domain.DefaultImageGroupPause.String()
	}
	if img.ProbeTimeout == "" {
		img.ProbeTimeout = domain.DefaultProbeTimeout.String()
	}

	lk := &cfg.Lookup
	if lk.Endpoint == "" {
		lk.Endpoint = domain.DefaultLookupEndpoint
	}
	if lk.AccessKeyEnv == "" {
		lk.AccessKeyEnv = domain.DefaultLookupAccessKeyEnv
	}
	if lk.PerPage <= 0 {
		lk.PerPage = domain.DefaultLookupPerPage
	}
	if lk.RatePerSecond <= 0 {
		lk.RatePerSecond = domain.DefaultLookupRate
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.File != "" {
		cfg.Logging.File = expandPath(cfg.Logging.File)
	}
	return cfg
}

// applyEnv layers MINDTRAIL_* overrides on top of the file values. Unparsable
// values are ignored.
func applyEnv(cfg domain.Config) domain.Config {
	if n, ok := envInt(EnvHistoryMaxItems); ok {
		cfg.History.MaxItems = n
	}
	if n, ok := envInt(EnvHistoryRetentionDays); ok {
		cfg.History.RetentionDays = n
	}
	if lvl := strings.TrimSpace(os.Getenv(EnvLogLevel)); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg
}

func envInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
