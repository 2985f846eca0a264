// Package app assembles the transcription pipeline from configuration.
// Both binaries build their registry, staging store, cache, and
// orchestrator through the same constructors so a job behaves the same
// whether it was submitted on the command line or over HTTP.
package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/kbukum/scribe/config"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/resilience"
	"github.com/kbukum/scribe/service"
	"github.com/kbukum/scribe/staging"
	"github.com/kbukum/scribe/storage"
	"github.com/kbukum/scribe/storage/local"
	"github.com/kbukum/scribe/storage/s3"
	"github.com/kbukum/scribe/transcription"
	"github.com/kbukum/scribe/transcription/batch"
	"github.com/kbukum/scribe/transcription/whisper"
	"github.com/kbukum/scribe/validation"
)

// StorageConfig selects and configures the blob backend for staging.
type StorageConfig struct {
	// Backend is "local" or "s3". Empty defaults to local.
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=local s3"`

	Local LocalStorageConfig `mapstructure:"local"`
	S3    s3.Config          `mapstructure:"s3"`
}

// LocalStorageConfig configures the filesystem blob backend.
type LocalStorageConfig struct {
	// BasePath is the staging root. Empty defaults to a directory under
	// the OS temp dir.
	BasePath string `mapstructure:"base_path"`
}

// CacheConfig configures the chunk transcript cache.
type CacheConfig struct {
	// Path is the cache file location. Empty keeps the cache in memory
	// only.
	Path string `mapstructure:"path"`
}

// RateLimitConfig is the process-wide provider request budget.
type RateLimitConfig struct {
	// Requests per window across all jobs. Zero disables limiting.
	Requests int `mapstructure:"requests"`
	// Window is the budget interval, default 1s.
	Window time.Duration `mapstructure:"window"`
	// Burst capacity, defaults to Requests.
	Burst int `mapstructure:"burst"`
}

// Config is the root configuration for both scribe binaries.
type Config struct {
	Logging      logger.Config                    `mapstructure:"logging"`
	Server       service.ServerConfig             `mapstructure:"server"`
	Orchestrator transcription.OrchestratorConfig `mapstructure:"orchestrator"`
	RateLimit    RateLimitConfig                  `mapstructure:"rate_limit"`
	Staging      staging.Config                   `mapstructure:"staging"`
	Storage      StorageConfig                    `mapstructure:"storage"`
	Cache        CacheConfig                      `mapstructure:"cache"`
	Whisper      whisper.Config                   `mapstructure:"whisper"`
	// Batch is validated in NewRegistry, only when its endpoint is set.
	Batch batch.Config `mapstructure:"batch" validate:"-"`
}

// LoadConfig reads the named service's configuration, applying the
// loader's file search and SCRIBE_* environment overrides.
func LoadConfig(serviceName, configFile string) (*Config, error) {
	var cfg Config
	err := config.Load(serviceName, &cfg, config.LoaderConfig{
		ConfigFile: configFile,
		Defaults: map[string]any{
			"logging.level":  "info",
			"logging.format": "console",
		},
	})
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewBlobStore builds the configured blob backend.
func NewBlobStore(ctx context.Context, cfg StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case "", "local":
		base := cfg.Local.BasePath
		if base == "" {
			base = filepath.Join(os.TempDir(), "scribe-staging")
		}
		return local.New(base)
	case "s3":
		return s3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("app: unknown storage backend %q", cfg.Backend)
	}
}

// NewRegistry builds the provider registry. Whisper is always
// registered; the batch provider joins when its endpoint is configured.
func NewRegistry(cfg *Config) (*transcription.Registry, error) {
	reg := transcription.NewRegistry()
	if err := reg.Register(whisper.New(cfg.Whisper)); err != nil {
		return nil, err
	}
	if cfg.Batch.URL != "" {
		if err := validation.Validate(cfg.Batch); err != nil {
			return nil, err
		}
		if err := reg.Register(batch.New(cfg.Batch)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewOrchestrator wires the orchestrator with staging, cache, metrics
// and an optional process-wide rate limiter. The returned cache is
// saved by the orchestrator after each job.
func NewOrchestrator(ctx context.Context, cfg *Config, reg *transcription.Registry, log *logger.Logger) (*transcription.Orchestrator, error) {
	blobs, err := NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	stagingCfg := cfg.Staging
	stagingLog := log
	opts := []transcription.Option{
		transcription.WithLogger(log),
		transcription.WithMetrics(metrics),
		transcription.WithStagingFactory(func(jobID string) *staging.Store {
			jobCfg := stagingCfg
			jobCfg.Prefix = path.Join("jobs", jobID)
			return staging.NewStore(blobs, jobCfg, stagingLog)
		}),
	}

	cache, err := transcription.OpenFileCache(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	opts = append(opts, transcription.WithCache(cache))

	if cfg.RateLimit.Requests > 0 {
		opts = append(opts, transcription.WithLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:     "providers",
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
			Burst:    cfg.RateLimit.Burst,
		})))
	}

	return transcription.NewOrchestrator(reg, cfg.Orchestrator, opts...), nil
}
