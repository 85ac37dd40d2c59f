// Package app assembles the runtime components shared by the jobfill binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jobfill/jobfill/internal/autofill"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/mapping"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/profile"
	"github.com/jobfill/jobfill/internal/storage"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Objects  *storage.MinIOClient
	Store    profile.Backend
	Profiles *profile.Manager
	Mappings *mapping.Registry
	Service  *autofill.Service
}

// New connects the profile store and object storage selected by cfg and
// builds the autofill service over them. metrics may be nil.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics}

	if cfg.Store.Backend == config.StoreS3 || cfg.Mapping.Source == config.MappingS3 {
		objects, err := storage.NewMinIOClient(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("connecting to object storage: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensuring bucket %s: %w", objects.Bucket(), err)
		}
		a.Objects = objects
		logger.Info("Connected to object storage",
			zap.String("endpoint", cfg.S3.Endpoint),
			zap.String("bucket", objects.Bucket()),
		)
	}

	var objects profile.ObjectStore
	if a.Objects != nil {
		objects = a.Objects
	}
	store, err := profile.Open(ctx, cfg, objects)
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}
	a.Store = store

	a.Profiles = profile.NewManager(store,
		profile.WithKey(cfg.Store.Key),
		profile.WithLogger(logger.Named("profile")),
		profile.WithMetrics(metrics),
	)
	logger.Info("Profile store ready", zap.String("backend", a.Profiles.Backend()))

	source, err := a.mappingSource()
	if err != nil {
		store.Close()
		return nil, err
	}
	a.Mappings = mapping.NewRegistry(source,
		mapping.WithLogger(logger.Named("mapping")),
		mapping.WithMetrics(metrics),
	)

	a.Service = autofill.NewService(a.Mappings, a.Profiles,
		autofill.WithLogger(logger.Named("autofill")),
		autofill.WithMetrics(metrics),
	)
	return a, nil
}

func (a *App) mappingSource() (mapping.Source, error) {
	switch a.Config.Mapping.Source {
	case config.MappingEmbedded, "":
		return mapping.EmbeddedSource{}, nil
	case config.MappingFile:
		if a.Config.Mapping.Path == "" {
			return nil, errors.New("MAPPING_PATH is required when MAPPING_SOURCE is file")
		}
		return mapping.FileSource{Path: a.Config.Mapping.Path}, nil
	case config.MappingS3:
		return mapping.ObjectSource{Store: a.Objects, Key: a.Config.Mapping.Object}, nil
	default:
		return nil, fmt.Errorf("unknown mapping source %q", a.Config.Mapping.Source)
	}
}

// Checks returns the readiness probes for the wired dependencies.
func (a *App) Checks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"mappings": func(ctx context.Context) error {
			a.Mappings.Load(ctx)
			return a.Mappings.Err()
		},
	}
	if h, ok := a.Store.(interface{ Health(context.Context) error }); ok {
		checks["store"] = h.Health
	}
	if a.Objects != nil {
		checks["objects"] = a.Objects.Health
	}
	return checks
}

// Close releases the profile store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// NewLogger creates a configured zap logger
func NewLogger(env config.Environment, level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if env == config.EnvProduction {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		// Fall back to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
