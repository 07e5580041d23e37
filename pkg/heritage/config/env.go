package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/swadeshi/heritage/pkg/heritage"
	s3store "github.com/swadeshi/heritage/pkg/heritage/imagestore/s3"
)

// EnvConfig is the environment surface read by WithEnv.
type EnvConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// DATABASE_URL: "memory" or a postgres:// / postgresql:// connection string
	DatabaseURL string `env:"DATABASE_URL" env-default:"memory"`
	DBSchema    string `env:"DB_SCHEMA" env-default:"heritage"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" env-default:"false"`

	// IMAGE_STORE_URL: "inline://" or "s3://bucket?region=..&endpoint=..&path_style=true&prefix=.."
	ImageStoreURL      string `env:"IMAGE_STORE_URL" env-default:"inline://"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `env:"AWS_REGION" env-default:"us-east-1"`
	S3PublicBaseURL    string `env:"S3_PUBLIC_BASE_URL"`

	PublicationPolicy string `env:"PUBLICATION_POLICY" env-default:"auto-publish"`
	MaxImages         int    `env:"MAX_IMAGES" env-default:"5"`
	MaxImageBytes     int64  `env:"MAX_IMAGE_BYTES" env-default:"5242880"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisDB            int    `env:"REDIS_DB" env-default:"0"`
	EventChannelPrefix string `env:"EVENT_CHANNEL_PREFIX" env-default:"heritage"`
	EventLogging       bool   `env:"EVENT_LOGGING" env-default:"true"`

	// RECONCILE_SCHEDULE: cron expression; "" or "off" disables
	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" env-default:"@every 1h"`
}

// WithEnv reads EnvConfig from the process environment and applies it.
// Unset variables take their documented defaults, so options that must win
// over the environment belong after WithEnv.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env EnvConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return env.apply(c)
	}
}

func (e EnvConfig) apply(c *ServerConfig) error {
	c.Port = e.Port
	c.Environment = e.Environment

	if err := applyDatabaseURL(e.DatabaseURL, c); err != nil {
		return err
	}
	c.DBSchema = e.DBSchema
	c.AutoMigrate = e.AutoMigrate

	if err := e.applyImageStore(c); err != nil {
		return err
	}

	c.Policy = heritage.Policy(e.PublicationPolicy)
	c.MaxImages = e.MaxImages
	c.MaxImageBytes = e.MaxImageBytes

	c.RedisAddr = e.RedisAddr
	c.RedisPassword = e.RedisPassword
	c.RedisDB = e.RedisDB
	c.EventChannelPrefix = e.EventChannelPrefix
	c.EnableEventLogging = e.EventLogging

	c.ReconcileSchedule = strings.TrimSpace(e.ReconcileSchedule)
	if strings.EqualFold(c.ReconcileSchedule, "off") {
		c.ReconcileSchedule = ""
	}
	return nil
}

// applyDatabaseURL detects the database type from the URL scheme
func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	if dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
		return nil
	}

	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}

func (e EnvConfig) applyImageStore(c *ServerConfig) error {
	raw := e.ImageStoreURL
	if raw == "" || raw == "inline" || raw == "inline://" {
		c.ImageStore = "inline"
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" {
		return fmt.Errorf("unsupported IMAGE_STORE_URL format: %s (use 'inline://' or 's3://bucket')", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in IMAGE_STORE_URL")
	}

	q := u.Query()
	cfg := s3store.Config{
		Bucket:          u.Host,
		Region:          e.AWSRegion,
		AccessKeyID:     e.AWSAccessKeyID,
		SecretAccessKey: e.AWSSecretAccessKey,
		Endpoint:        q.Get("endpoint"),
		Prefix:          strings.Trim(q.Get("prefix"), "/"),
		PublicBaseURL:   e.S3PublicBaseURL,
	}
	if region := q.Get("region"); region != "" {
		cfg.Region = region
	}
	if cfg.UsePathStyle, err = queryBool(q, "path_style"); err != nil {
		return err
	}
	if cfg.CreateBucketIfNotExist, err = queryBool(q, "create_bucket"); err != nil {
		return err
	}
	if sse := q.Get("sse"); sse != "" {
		cfg.EnableSSE = true
		cfg.SSEAlgorithm = sse
		cfg.SSEKMSKeyID = q.Get("kms_key_id")
	}

	c.ImageStore = "s3"
	c.S3 = cfg
	return nil
}

func queryBool(q url.Values, key string) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for IMAGE_STORE_URL %s: %w", key, err)
	}
	return parsed, nil
}
