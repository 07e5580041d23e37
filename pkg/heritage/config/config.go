package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/swadeshi/heritage/internal/logger"
	"github.com/swadeshi/heritage/pkg/heritage"
	redisevents "github.com/swadeshi/heritage/pkg/heritage/events/redis"
	"github.com/swadeshi/heritage/pkg/heritage/imagestore/inline"
	s3store "github.com/swadeshi/heritage/pkg/heritage/imagestore/s3"
	"github.com/swadeshi/heritage/pkg/heritage/repo/memory"
	repopg "github.com/swadeshi/heritage/pkg/heritage/repo/postgres"
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
		DBSchema:           "heritage",
		ImageStore:         "inline",
		Policy:             heritage.PolicyAutoPublish,
		MaxImages:          heritage.DefaultMaxImages,
		MaxImageBytes:      heritage.DefaultMaxImageBytes,
		EventChannelPrefix: "heritage",
		EnableEventLogging: true,
		ReconcileSchedule:  "@every 1h",
	}
}

// ServerConfig represents server configuration for the heritage service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: heritage)
	AutoMigrate  bool   // apply the embedded schema on startup

	// Image storage: "inline" keeps data URIs in the entry, "s3" uploads
	ImageStore string
	S3         s3store.Config

	// Contribution workflow
	Policy        heritage.Policy
	MaxImages     int
	MaxImageBytes int64

	// Events
	RedisAddr          string // empty disables redis publishing
	RedisPassword      string
	RedisDB            int
	EventChannelPrefix string
	EnableEventLogging bool

	// Maintenance; empty disables the schedule
	ReconcileSchedule string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.ImageStore {
	case "inline":
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when image store is s3")
		}
	default:
		return fmt.Errorf("image store must be 'inline' or 's3', got: %s", c.ImageStore)
	}

	if !c.Policy.IsValid() {
		return fmt.Errorf("publication policy must be '%s' or '%s', got: %s",
			heritage.PolicyAutoPublish, heritage.PolicyModerationQueue, c.Policy)
	}

	if c.MaxImages <= 0 {
		return fmt.Errorf("max images must be positive, got: %d", c.MaxImages)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("max image bytes must be positive, got: %d", c.MaxImageBytes)
	}

	return nil
}

// Runtime bundles what BuildService wires, so callers can reach the
// repository for maintenance and close connections on shutdown.
type Runtime struct {
	Service    heritage.Service
	Repository heritage.Repository

	closers []func()
}

// Close releases pools and clients opened by BuildService.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context, log logger.Logger) (*Runtime, error) {
	rt := &Runtime{}
	var options []heritage.Option

	// Set up repository
	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	if closeRepo != nil {
		rt.closers = append(rt.closers, closeRepo)
	}
	rt.Repository = repo
	options = append(options, heritage.WithRepository(repo))

	// Set up image store
	store, err := c.buildImageStore()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build image store %s: %w", c.ImageStore, err)
	}
	options = append(options, heritage.WithImageStore(store))

	// Set up event sinks
	var sinks []heritage.EventSink
	if c.EnableEventLogging {
		sinks = append(sinks, heritage.NewLoggingEventSink(log))
	}
	if c.RedisAddr != "" {
		client, err := redisevents.Connect(ctx, redisevents.ConnectOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		}, log)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect event publisher: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		sinks = append(sinks, redisevents.New(client, c.EventChannelPrefix))
	}
	if len(sinks) > 0 {
		options = append(options, heritage.WithEventSink(heritage.NewMultiEventSink(sinks...)))
	}

	options = append(options,
		heritage.WithLogger(log),
		heritage.WithPolicy(c.Policy),
		heritage.WithMediaLimits(heritage.MediaLimits{MaxImages: c.MaxImages, MaxImageBytes: c.MaxImageBytes}),
	)

	svc, err := heritage.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (heritage.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := NewPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
			}
		}
		return repopg.NewWithPool(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildImageStore() (heritage.ImageStore, error) {
	switch c.ImageStore {
	case "inline":
		return inline.New(), nil
	case "s3":
		return s3store.New(c.S3)
	default:
		return nil, fmt.Errorf("unsupported image store: %s", c.ImageStore)
	}
}

// NewPool opens a pgx pool whose sessions use schema as search_path.
// When the schema does not exist yet it is created first.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		ident := pgx.Identifier{schema}.Sanitize()
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
				return err
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+ident)
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}
