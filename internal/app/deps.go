package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/auth"
	"github.com/reflecta/reflecta/internal/config"
	"github.com/reflecta/reflecta/internal/credentials"
	"github.com/reflecta/reflecta/internal/db"
	"github.com/reflecta/reflecta/internal/handlers"
	"github.com/reflecta/reflecta/internal/middleware"
	"github.com/reflecta/reflecta/internal/reflections"
	"github.com/reflecta/reflecta/internal/repositories"
	"github.com/reflecta/reflecta/internal/settings"
	"github.com/reflecta/reflecta/internal/storage"
	"github.com/reflecta/reflecta/internal/tokens"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. A nil pool selects the in-memory repositories.
func buildDependencies(pool db.Pool, cfg config.Config) handlers.Dependencies {
	rate := cfg.Server.AuthRate
	deps := handlers.Dependencies{
		Tokens:      tokens.NewManager(cfg.Server.JWTSecret, cfg.Server.TokenTTL),
		AuthLimiter: middleware.NewAttemptLimiter(rate, rate, 10*time.Minute),
		TrustProxy:  cfg.Server.TrustProxy,
		Location:    time.Local,
	}

	if pool == nil {
		deps.Accounts = repositories.NewMemoryAccountRepository()
		deps.Reflections = repositories.NewMemoryReflectionRepository()
		return deps
	}

	deps.Accounts = repositories.NewPostgresAccountRepository(pool)
	deps.Reflections = repositories.NewPostgresReflectionRepository(pool)
	deps.DB = pool
	return deps
}

// clientDeps is the object graph behind the client commands. The credential
// store is owned here and shared by reference with the API client and services.
type clientDeps struct {
	Keyring     credentials.Keyring
	Session     *credentials.Store
	API         *api.Client
	Auth        *auth.Service
	Reflections *reflections.Service
	Settings    *settings.Store
	Exports     func(ctx context.Context) (storage.Exporter, error)
}

// buildClient opens the configured keyring and wires the client services over it.
func buildClient(cfg config.Config, logger *slog.Logger) (*clientDeps, error) {
	kv, err := openKeyring(cfg.Keyring)
	if err != nil {
		return nil, err
	}
	return newClientDeps(kv, cfg, logger)
}

func newClientDeps(kv credentials.Keyring, cfg config.Config, logger *slog.Logger) (*clientDeps, error) {
	store := credentials.NewStore(kv)

	client, err := api.New(api.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Store:   store,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return &clientDeps{
		Keyring:     kv,
		Session:     store,
		API:         client,
		Auth:        auth.NewService(client, store),
		Reflections: reflections.NewService(client),
		Settings:    settings.NewStore(kv),
		Exports: func(ctx context.Context) (storage.Exporter, error) {
			return newExporter(ctx, cfg.Export)
		},
	}, nil
}

func openKeyring(cfg config.KeyringConfig) (credentials.Keyring, error) {
	switch cfg.Backend {
	case config.KeyringOS:
		return credentials.NewOSKeyring(credentials.DefaultService), nil
	case config.KeyringMemory:
		return credentials.NewMemoryKeyring(), nil
	case config.KeyringFile, "":
		var (
			key []byte
			err error
		)
		if cfg.Key != "" {
			key, err = credentials.DecodeKey(cfg.Key)
		} else {
			key, err = credentials.LoadOrCreateKey(cfg.KeyPath)
		}
		if err != nil {
			return nil, fmt.Errorf("keyring key: %w", err)
		}
		return credentials.NewFileKeyring(cfg.Path, key)
	default:
		return nil, fmt.Errorf("unknown keyring backend %q", cfg.Backend)
	}
}

// newExporter targets the configured bucket, falling back to a local directory.
func newExporter(ctx context.Context, cfg config.ExportConfig) (storage.Exporter, error) {
	if cfg.ObjectStore.Bucket == "" {
		return storage.Exporter{Storage: storage.NewDirStorage(cfg.Dir)}, nil
	}
	s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return storage.Exporter{}, err
	}
	return storage.Exporter{Storage: s3}, nil
}
