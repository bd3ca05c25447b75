package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	configapp "github.com/doeshing/mindtrail/internal/application/config"
	"github.com/doeshing/mindtrail/internal/application/history"
	"github.com/doeshing/mindtrail/internal/application/imagecache"
	"github.com/doeshing/mindtrail/internal/application/imagesearch"
	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/infrastructure/config"
	"github.com/doeshing/mindtrail/internal/infrastructure/imagelookup"
	"github.com/doeshing/mindtrail/internal/infrastructure/kv"
	"github.com/doeshing/mindtrail/internal/infrastructure/probe"
	"github.com/doeshing/mindtrail/internal/pkg/logger"
	"github.com/doeshing/mindtrail/internal/ports"
)

// Options controls container construction.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config       domain.Config
	ConfigLoader *config.FileLoader
	Logger       ports.Logger

	DurableStore ports.KVStore
	SessionStore *kv.MemoryStore

	History  *history.Manager
	Recorder history.Recorder

	Registry     *prometheus.Registry
	ImageMetrics *imagecache.Metrics
	ImageCache   *imagecache.Cache
	ImageSearch  *imagesearch.Service

	closers []func() error
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := configapp.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", cfgLoader.Path(), err)
	}

	log := logger.New(cfg.Logging, opts.Verbose)
	c := &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Logger:       log,
		SessionStore: kv.NewMemoryStore(),
		Registry:     prometheus.NewRegistry(),
	}

	c.DurableStore = c.buildDurableStore(cfg.History)
	c.History = history.NewManager(ctx, c.DurableStore, cfg.History, log)
	c.Recorder = history.Recorder{History: c.History}

	c.ImageMetrics = imagecache.NewMetrics(c.Registry)
	prober := probe.NewHTTPProber(cfg.Images.ProbeTimeoutDuration())
	c.ImageCache = imagecache.New(prober, c.SessionStore, log, c.ImageMetrics, imagecache.ConfigFromSettings(cfg.Images))

	c.ImageSearch = &imagesearch.Service{
		Session:  c.SessionStore,
		Cache:    c.ImageCache,
		Logger:   log,
		Fallback: cfg.Lookup.Fallback,
	}
	if client := imagelookup.NewUnsplashClient(cfg.Lookup, cfg.Images.ProbeTimeoutDuration()); client.Configured() {
		c.ImageSearch.Lookup = client
	} else {
		log.Debug("image lookup not configured, using fallback sets", map[string]interface{}{"env": cfg.Lookup.AccessKeyEnv})
	}

	return c, nil
}

func (c *Container) buildDurableStore(settings domain.HistorySettings) ports.KVStore {
	if settings.Backend == domain.HistoryBackendSQLite {
		store := kv.NewSQLiteStore(settings.Path)
		if store.Degraded() {
			c.Logger.Warn("sqlite unavailable, falling back to file store", map[string]interface{}{"path": store.Path()})
		}
		c.closers = append(c.closers, store.Close)
		return store
	}
	return kv.NewFileStore(settings.Path)
}

// Close waits for background image work and releases storage handles.
func (c *Container) Close() error {
	if c.ImageSearch != nil {
		c.ImageSearch.Wait()
	}
	var first error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
