// Package daemon assembles and runs the mopd process: configuration,
// session storage, the embedded kernel, the pipeline runner, and the HTTP
// server. Config changes rebuild the runner in place; server and storage
// settings apply at startup only.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/moplabs/mopd/internal/config"
	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/gate"
	"github.com/moplabs/mopd/internal/kernel"
	"github.com/moplabs/mopd/internal/metrics"
	"github.com/moplabs/mopd/internal/model"
	"github.com/moplabs/mopd/internal/model/openai"
	"github.com/moplabs/mopd/internal/pipeline"
	"github.com/moplabs/mopd/internal/recorder"
	"github.com/moplabs/mopd/internal/server"
	"github.com/moplabs/mopd/internal/storage"
	"github.com/moplabs/mopd/internal/storage/memory"
	redisstore "github.com/moplabs/mopd/internal/storage/redis"
	"github.com/moplabs/mopd/internal/storage/sqldb"
	"github.com/moplabs/mopd/internal/tokens"
)

// Daemon owns the lifecycle of a mopd process. It can be embedded in a
// larger program or run standalone from cmd/mopd.
type Daemon struct {
	logger     *slog.Logger
	configPath string
	static     *config.Config
	watcher    *config.Watcher

	metrics *metrics.Metrics
	tokens  *tokens.Registry

	cfg      *config.Config
	store    storage.SessionStore
	rec      *recorder.Recorder
	kernel   *kernel.Service
	provider model.Provider
	runner   *pipeline.Runner
	server   *server.Server

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

var _ server.Analyzer = (*Daemon)(nil)

// New creates a Daemon. Without options it reads config.yaml from the
// working directory, falling back to environment variables and defaults.
func New(opts ...Option) (*Daemon, error) {
	d := &Daemon{
		logger:  slog.Default(),
		metrics: metrics.New(),
		tokens:  tokens.NewRegistry(),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if d.static == nil {
		path := d.configPath
		if path == "" {
			path = config.DefaultPath
		}
		d.watcher = config.NewWatcher(path, d.logger)
	}

	return d, nil
}

// Start loads configuration, opens storage, builds the pipeline runner, and
// starts the HTTP server in the background. When the config comes from a
// file, changes to it rebuild the runner without a restart.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ctx, d.cancel = context.WithCancel(ctx)

	cfg, err := d.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	d.cfg = cfg

	if d.store == nil {
		store, err := openStore(d.ctx, cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		d.store = store
	}
	d.rec = recorder.New(d.store, d.logger)

	// The kernel service outlives reloads so its decision history does too.
	d.kernel = kernel.New(d.logger, cfg.Kernel.HistoryLimit)

	if err := d.buildRunner(cfg); err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	d.server = server.New(server.Config{
		Port:           cfg.Server.Port,
		Runner:         d,
		Recorder:       d.rec,
		Store:          d.store,
		Kernel:         kernel.NewHandler(d.kernel),
		Metrics:        d.metrics,
		Logger:         d.logger,
		RequestTimeout: config.Duration(cfg.Server.RequestTimeout, 0),
	})

	go func() {
		if err := d.server.Start(); err != nil {
			d.logger.Error("server error", "error", err)
		}
	}()

	if d.watcher != nil {
		if err := d.watcher.Watch(d.ctx, d.onConfigChange); err != nil {
			d.logger.Warn("config watch unavailable", "error", err)
		}
	}

	d.logger.Info("daemon started",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"kernel", cfg.Kernel.Mode,
		"model", cfg.Model.Name)

	return nil
}

// Shutdown stops the HTTP server and closes resources. Runs that already
// started keep executing on their detached context and persist through the
// recorder until their own timeout.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Info("daemon shutting down")

	if d.cancel != nil {
		d.cancel()
	}
	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Error("server shutdown failed", "error", err)
			return err
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.logger.Error("config watcher close failed", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Error("store close failed", "error", err)
		}
	}

	d.logger.Info("daemon shutdown complete")
	return nil
}

// Run implements server.Analyzer by delegating to the current runner, so a
// reload never races an incoming request.
func (d *Daemon) Run(problem string) (string, <-chan domain.Update, error) {
	d.mu.RLock()
	r := d.runner
	d.mu.RUnlock()

	if r == nil {
		return "", nil, errors.New("daemon not started")
	}
	return r.Run(problem)
}

func (d *Daemon) loadConfig() (*config.Config, error) {
	if d.static != nil {
		return d.static, nil
	}
	return d.watcher.Load()
}

func (d *Daemon) onConfigChange(cfg *config.Config) {
	d.logger.Info("config changed, reloading")
	if err := d.reload(cfg); err != nil {
		d.logger.Error("reload failed", "error", err)
	}
}

// reload rebuilds the runner with the new kernel, model, and pipeline
// settings. Server and storage changes are logged but need a restart.
func (d *Daemon) reload(cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.Server != d.cfg.Server {
		d.logger.Warn("server settings changed; restart to apply")
	}
	if cfg.Storage != d.cfg.Storage {
		d.logger.Warn("storage settings changed; restart to apply")
	}

	if err := d.buildRunner(cfg); err != nil {
		return err
	}
	d.cfg = cfg

	d.logger.Info("reload complete",
		"kernel", cfg.Kernel.Mode,
		"model", cfg.Model.Name)
	return nil
}

// buildRunner is called with d.mu held.
func (d *Daemon) buildRunner(cfg *config.Config) error {
	g, err := d.buildGate(cfg)
	if err != nil {
		return err
	}

	p := d.provider
	if p == nil {
		p = buildModelProvider(cfg, d.logger)
	}

	d.runner = pipeline.New(pipeline.Config{
		Provider:     p,
		Gate:         g,
		Recorder:     d.rec,
		Stages:       pipeline.DefaultStages(cfg.Pipeline.IncludeRatings),
		Metrics:      d.metrics,
		Tokens:       d.tokens,
		Logger:       d.logger,
		Model:        cfg.Model.Name,
		MaxTokens:    cfg.Model.MaxTokens,
		Temperature:  float32(cfg.Model.Temperature),
		ConsultFinal: cfg.Kernel.ConsultFinal,
		RunTimeout:   config.Duration(cfg.Pipeline.RunTimeout, 5*time.Minute),
	})
	return nil
}

func (d *Daemon) buildGate(cfg *config.Config) (gate.Gate, error) {
	switch cfg.Kernel.Mode {
	case "", "local":
		return gate.NewLocal(d.kernel), nil
	case "remote":
		if cfg.Kernel.URL == "" {
			return nil, fmt.Errorf("kernel.url is required when kernel.mode is remote")
		}
		timeout := config.Duration(cfg.Kernel.Timeout, 10*time.Second)
		return gate.NewHTTP(cfg.Kernel.URL, gate.WithTimeout(timeout)), nil
	case "off":
		return gate.Open{}, nil
	default:
		return nil, fmt.Errorf("unknown kernel mode %q", cfg.Kernel.Mode)
	}
}

func buildModelProvider(cfg *config.Config, logger *slog.Logger) model.Provider {
	switch cfg.Model.Provider {
	case "mock":
		return model.NewMock()
	case "", "openai":
		if cfg.Model.APIKey == "" {
			logger.Warn("no model api key configured, using canned responses")
			return model.NewMock()
		}
		opts := []openai.ClientOption{openai.WithModel(cfg.Model.Name)}
		if cfg.Model.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Model.BaseURL))
		}
		return openai.NewClient(cfg.Model.APIKey, opts...)
	default:
		logger.Warn("unknown model provider, using canned responses",
			"provider", cfg.Model.Provider)
		return model.NewMock()
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.SessionStore, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.New(), nil
	case "redis":
		return redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			TTL:      config.Duration(cfg.Storage.Redis.TTL, 0),
		})
	case "", "sqlite":
		return sqldb.NewSQLite(cfg.Storage.DSN)
	default:
		return sqldb.New(sqldb.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
	}
}
