package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-site/pkg/sitecontent"
	"github.com/tendant/simple-site/pkg/sitecontent/auth"
	"github.com/tendant/simple-site/pkg/sitecontent/imaging"
	"github.com/tendant/simple-site/pkg/sitecontent/lock"
	"github.com/tendant/simple-site/pkg/sitecontent/objectkey"
	"github.com/tendant/simple-site/pkg/sitecontent/repo/memory"
	repopg "github.com/tendant/simple-site/pkg/sitecontent/repo/postgres"
	reposqlite "github.com/tendant/simple-site/pkg/sitecontent/repo/sqlite"
	fsstorage "github.com/tendant/simple-site/pkg/sitecontent/storage/fs"
	memorystorage "github.com/tendant/simple-site/pkg/sitecontent/storage/memory"
	s3storage "github.com/tendant/simple-site/pkg/sitecontent/storage/s3"
	"github.com/tendant/simple-site/pkg/sitecontent/urlstrategy"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		Storage:            StorageConfig{Type: "memory"},
		JWTExpiry:          auth.DefaultTokenExpiry,
		BcryptCost:         auth.DefaultBcryptCost,
		MaxUploadBytes:     sitecontent.DefaultMaxUploadBytes,
		AllowedMimeTypes:   append([]string(nil), sitecontent.DefaultAllowedMimeTypes...),
		RateLimitWindow:    15 * time.Minute,
		RateLimitMax:       100,
		UploadRateLimitMax: 10,
		RequestTimeout:     30 * time.Second,
		URLStrategy:        string(urlstrategy.StrategyTypeAppRouted),
		ObjectKeyGenerator: "git-like",
		CORSAllowedOrigins: []string{"*"},
		ActivityLog:        "store",
		LogFormat:          "text",
		LogLevel:           "info",
	}
}

// ServerConfig represents server configuration for the simple-site service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	BaseURL     string // public base URL used for app-routed links

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	AutoMigrate  bool   // apply pending migrations when the repository is built

	Storage StorageConfig

	// RedisURL enables the distributed order lock; empty keeps it in-process
	RedisURL string

	// Accounts
	JWTSecret  string
	JWTExpiry  time.Duration
	BcryptCost int

	// Uploads
	MaxUploadBytes   int64
	AllowedMimeTypes []string

	// HTTP limits
	RateLimitWindow    time.Duration
	RateLimitMax       int
	UploadRateLimitMax int
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
	TrustProxy         bool // take client addresses from X-Forwarded-For / X-Real-IP

	URLStrategy        string // "app", "cdn", "storage-delegated"
	CDNBaseURL         string
	ObjectKeyGenerator string // "git-like", "flat", "owner-aware"

	ActivityLog string // "store", "log", "both", "off"
	LogFormat   string // "text", "json"
	LogLevel    string
}

// StorageConfig selects and configures the blob store
type StorageConfig struct {
	Type string // "memory", "fs", "s3"

	// fs
	BaseDir   string
	URLPrefix string

	// s3
	S3 s3storage.Config
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("storage base directory is required for fs storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type '%s'", c.Storage.Type)
	}

	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTExpiry <= 0 {
		return errors.New("jwt_expiry must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if len(c.AllowedMimeTypes) == 0 {
		return errors.New("allowed_mime_types must not be empty")
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMax <= 0 || c.UploadRateLimitMax <= 0 {
		return errors.New("rate limit window and maximums must be positive")
	}

	switch urlstrategy.StrategyType(c.URLStrategy) {
	case urlstrategy.StrategyTypeAppRouted, urlstrategy.StrategyTypeStorageDelegated:
	case urlstrategy.StrategyTypeCDN:
		if c.CDNBaseURL == "" {
			return errors.New("cdn_base_url is required for the cdn url strategy")
		}
	default:
		return fmt.Errorf("unknown url strategy '%s'", c.URLStrategy)
	}

	if _, err := objectkey.ByName(c.ObjectKeyGenerator); err != nil {
		return err
	}

	switch c.ActivityLog {
	case "store", "log", "both", "off":
	default:
		return fmt.Errorf("activity_log must be 'store', 'log', 'both' or 'off', got '%s'", c.ActivityLog)
	}

	return nil
}

// Components are the built pieces of a running server. Close releases the
// connections they hold.
type Components struct {
	Service    sitecontent.Service
	Repository sitecontent.Repository
	BlobStore  sitecontent.BlobStore

	closers []func() error
}

// Close releases everything Build opened, in reverse order
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (sitecontent.Service, error) {
	components, err := c.Build(ctx, logger)
	if err != nil {
		return nil, err
	}
	return components.Service, nil
}

// Build wires the repository, blob store, locker and service described by c.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	components := &Components{}

	repo, closeRepo, err := c.BuildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	components.Repository = repo
	components.closers = append(components.closers, closeRepo)

	store, err := c.BuildBlobStore(ctx)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}
	components.BlobStore = store

	options := []sitecontent.Option{
		sitecontent.WithRepository(repo),
		sitecontent.WithBlobStore(store),
		sitecontent.WithTransformer(imaging.New()),
		sitecontent.WithPasswordHasher(auth.NewBcryptHasher(c.BcryptCost)),
		sitecontent.WithLogger(logger),
		sitecontent.WithMaxUploadBytes(c.MaxUploadBytes),
		sitecontent.WithAllowedMimeTypes(c.AllowedMimeTypes...),
	}

	issuer, err := auth.NewJWTIssuer(c.JWTSecret, c.JWTExpiry)
	if err != nil {
		components.Close()
		return nil, err
	}
	options = append(options, sitecontent.WithTokenIssuer(issuer))

	if c.RedisURL != "" {
		locker, err := lock.NewRedisFromURL(ctx, c.RedisURL)
		if err != nil {
			components.Close()
			return nil, fmt.Errorf("failed to build locker: %w", err)
		}
		components.closers = append(components.closers, locker.Close)
		options = append(options, sitecontent.WithLocker(locker))
	}

	keys, err := objectkey.ByName(c.ObjectKeyGenerator)
	if err != nil {
		components.Close()
		return nil, err
	}
	options = append(options, sitecontent.WithKeyGenerator(keys))

	urls, err := urlstrategy.New(urlstrategy.Config{
		Type:       urlstrategy.StrategyType(c.URLStrategy),
		BaseURL:    c.BaseURL,
		CDNBaseURL: c.CDNBaseURL,
		BlobStore:  store,
	})
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to build url strategy: %w", err)
	}
	options = append(options, sitecontent.WithURLBuilder(urls))

	switch c.ActivityLog {
	case "log":
		options = append(options, sitecontent.WithActivityRecorder(sitecontent.NewLoggingActivityRecorder(logger)))
	case "both":
		options = append(options, sitecontent.WithActivityRecorder(sitecontent.MultiActivityRecorder{
			sitecontent.NewRepositoryActivityRecorder(repo),
			sitecontent.NewLoggingActivityRecorder(logger),
		}))
	case "off":
		options = append(options, sitecontent.WithActivityRecorder(sitecontent.NewNoopActivityRecorder()))
	}

	svc, err := sitecontent.New(options...)
	if err != nil {
		components.Close()
		return nil, err
	}
	components.Service = svc
	return components, nil
}

// BuildRepository opens the configured record store. The returned func
// releases its connections.
func (c *ServerConfig) BuildRepository(ctx context.Context) (sitecontent.Repository, func() error, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), func() error { return nil }, nil

	case "postgres":
		if c.AutoMigrate {
			if err := repopg.MigrateUp(c.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		repo, err := repopg.Open(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() error { repo.Close(); return nil }, nil

	case "sqlite":
		repo, err := reposqlite.Open(c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if c.AutoMigrate {
			if err := reposqlite.MigrateUp(repo.DB()); err != nil {
				repo.Close()
				return nil, nil, err
			}
		}
		return repo, repo.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildBlobStore creates the configured blob store
func (c *ServerConfig) BuildBlobStore(ctx context.Context) (sitecontent.BlobStore, error) {
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.Storage.BaseDir,
			URLPrefix: c.Storage.URLPrefix,
		})

	case "s3":
		return s3storage.New(ctx, c.Storage.S3)

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}
