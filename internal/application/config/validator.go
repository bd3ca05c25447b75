package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/doeshing/mindtrail/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := validateHistory(cfg.History); err != nil {
		return err
	}
	if err := validateImages(cfg.Images); err != nil {
		return err
	}
	if err := validateLookup(cfg.Lookup); err != nil {
		return err
	}
	return nil
}

func validateHistory(history domain.HistorySettings) error {
	if history.MaxItems < 1 {
		return fmt.Errorf("history.max_items must be >= 1, got %d", history.MaxItems)
	}
	if history.AutoCleanup && history.RetentionDays < 1 {
		return fmt.Errorf("history.retention_days must be >= 1 when auto_cleanup is on, got %d", history.RetentionDays)
	}
	switch history.Backend {
	case domain.HistoryBackendFile, domain.HistoryBackendSQLite:
	default:
		return fmt.Errorf("history.backend must be %s|%s, got %q", domain.HistoryBackendFile, domain.HistoryBackendSQLite, history.Backend)
	}
	return nil
}

func validateImages(images domain.ImageSettings) error {
	if images.Concurrency < 1 {
		return fmt.Errorf("images.concurrency must be >= 1, got %d", images.Concurrency)
	}
	timeout, err := time.ParseDuration(images.Timeout)
	if err != nil {
		return fmt.Errorf("images.timeout invalid: %w", err)
	}
	if timeout <= 0 {
		return errors.New("images.timeout must be > 0")
	}
	if images.GroupPause != "" {
		pause, err := time.ParseDuration(images.GroupPause)
		if err != nil {
			return fmt.Errorf("images.group_pause invalid: %w", err)
		}
		if pause < 0 {
			return errors.New("images.group_pause must be >= 0")
		}
	}
	if images.ProbeTimeout != "" {
		if _, err := time.ParseDuration(images.ProbeTimeout); err != nil {
			return fmt.Errorf("images.probe_timeout invalid: %w", err)
		}
	}
	return nil
}

func validateLookup(lookup domain.LookupSettings) error {
	if lookup.PerPage < 0 {
		return fmt.Errorf("lookup.per_page must be >= 0")
	}
	if lookup.RatePerSecond < 0 {
		return fmt.Errorf("lookup.rate_per_second must be >= 0")
	}
	for i, set := range lookup.Fallback {
		if set.Topic == "" {
			return fmt.Errorf("lookup.fallback[%d].topic must be set", i)
		}
	}
	return nil
}
