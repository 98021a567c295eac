package daemon

import (
	"log/slog"

	"github.com/moplabs/mopd/internal/config"
	"github.com/moplabs/mopd/internal/model"
	"github.com/moplabs/mopd/internal/storage"
)

// Option is a functional option for configuring a Daemon.
type Option func(*Daemon) error

// WithConfigFile reads configuration from path and watches it for changes
// (default: config.yaml in the working directory).
func WithConfigFile(path string) Option {
	return func(d *Daemon) error {
		d.configPath = path
		return nil
	}
}

// WithConfig uses a fixed configuration. No file is read or watched.
func WithConfig(cfg *config.Config) Option {
	return func(d *Daemon) error {
		d.static = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) error {
		d.logger = logger
		return nil
	}
}

// WithStore sets a custom session store, overriding the storage section of
// the configuration. The daemon closes it on Shutdown.
func WithStore(store storage.SessionStore) Option {
	return func(d *Daemon) error {
		d.store = store
		return nil
	}
}

// WithModelProvider sets a custom model provider, overriding the model
// section of the configuration.
func WithModelProvider(provider model.Provider) Option {
	return func(d *Daemon) error {
		d.provider = provider
		return nil
	}
}
