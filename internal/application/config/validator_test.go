package config

import (
	"testing"

	"github.com/doeshing/mindtrail/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		History: domain.HistorySettings{
			MaxItems:      1000,
			AutoCleanup:   true,
			RetentionDays: 30,
			Backend:       domain.HistoryBackendFile,
		},
		Images: domain.ImageSettings{Concurrency: 4, Timeout: "5s", GroupPause: "50ms"},
		Lookup: domain.LookupSettings{
			Fallback: []domain.FallbackImageSet{{Topic: "default", References: []string{"https://img/a.jpg"}}},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*domain.Config) {}},
		{name: "sqlite backend", mutate: func(c *domain.Config) { c.History.Backend = domain.HistoryBackendSQLite }},
		{name: "zero max items", mutate: func(c *domain.Config) { c.History.MaxItems = 0 }, wantErr: true},
		{name: "zero retention with cleanup", mutate: func(c *domain.Config) { c.History.RetentionDays = 0 }, wantErr: true},
		{name: "zero retention without cleanup", mutate: func(c *domain.Config) {
			c.History.AutoCleanup = false
			c.History.RetentionDays = 0
		}},
		{name: "unknown backend", mutate: func(c *domain.Config) { c.History.Backend = "redis" }, wantErr: true},
		{name: "zero concurrency", mutate: func(c *domain.Config) { c.Images.Concurrency = 0 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *domain.Config) { c.Images.Timeout = "0s" }, wantErr: true},
		{name: "bad timeout", mutate: func(c *domain.Config) { c.Images.Timeout = "soon" }, wantErr: true},
		{name: "negative pause", mutate: func(c *domain.Config) { c.Images.GroupPause = "-1s" }, wantErr: true},
		{name: "fallback without topic", mutate: func(c *domain.Config) {
			c.Lookup.Fallback = append(c.Lookup.Fallback, domain.FallbackImageSet{})
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
