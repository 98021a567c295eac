// Package config loads the daemon configuration: an optional config.yaml,
// MOPD_ environment overrides, defaults, and ${VAR} substitution for
// secret-bearing fields. A Watcher reloads on file changes.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file consulted when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Kernel   KernelConfig   `koanf:"kernel"`
	Model    ModelConfig    `koanf:"model"`
	Pipeline PipelineConfig `koanf:"pipeline"`
}

type ServerConfig struct {
	Port int `koanf:"port"`

	// RequestTimeout bounds the JSON routes; the analyze stream is exempt.
	RequestTimeout string `koanf:"request_timeout"`
}

type StorageConfig struct {
	// Driver selects the session store: sqlite, redis, or memory.
	Driver string `koanf:"driver"`

	// DSN is the sqlite data source name.
	DSN string `koanf:"dsn"`

	Redis RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`

	// TTL expires session records; empty or zero keeps them forever.
	TTL string `koanf:"ttl"`
}

type KernelConfig struct {
	// Mode selects the gate: local (embedded oracle), remote (consult URL
	// over HTTP), or off (never stop).
	Mode string `koanf:"mode"`

	// URL is the remote kernel base URL, used when mode is remote.
	URL string `koanf:"url"`

	// Timeout bounds each remote consult.
	Timeout string `koanf:"timeout"`

	// ConsultFinal also consults the kernel after the last stage.
	ConsultFinal bool `koanf:"consult_final"`

	HistoryLimit int `koanf:"history_limit"`
}

type ModelConfig struct {
	// Provider selects openai or mock. openai with no API key falls back to
	// mock so the daemon stays usable keyless.
	Provider string `koanf:"provider"`

	// Name is the model requested for every stage.
	Name string `koanf:"name"`

	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`

	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

type PipelineConfig struct {
	// RunTimeout bounds one run end to end.
	RunTimeout string `koanf:"run_timeout"`

	// IncludeRatings inserts the ratings stage before summary.
	IncludeRatings bool `koanf:"include_ratings"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the file at path (a missing file is fine), overlays MOPD_
// environment variables (MOPD_SERVER__PORT=9000 sets server.port), applies
// defaults, and substitutes ${VAR} references in secret-bearing fields.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Environment variables override file config.
	if err := k.Load(env.Provider("MOPD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "MOPD_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Model.APIKey = substituteEnvVars(cfg.Model.APIKey)
	cfg.Model.BaseURL = substituteEnvVars(cfg.Model.BaseURL)
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)
	cfg.Storage.Redis.Password = substituteEnvVars(cfg.Storage.Redis.Password)
	cfg.Kernel.URL = substituteEnvVars(cfg.Kernel.URL)

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":            8000,
		"server.request_timeout": "30s",
		"storage.driver":         "sqlite",
		"storage.dsn":            "mopd.db",
		"storage.redis.addr":     "localhost:6379",
		"kernel.mode":            "local",
		"kernel.timeout":         "10s",
		"kernel.history_limit":   100,
		"model.provider":         "openai",
		"model.name":             "gpt-4o",
		"model.max_tokens":       2000,
		"model.temperature":      0.7,
		"pipeline.run_timeout":   "5m",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Duration parses s, returning fallback when s is empty or malformed.
// Config durations are strings ("30s", "5m") so they read naturally in
// YAML and the environment.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
