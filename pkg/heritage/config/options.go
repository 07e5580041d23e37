package config

import (
	"fmt"

	"github.com/swadeshi/heritage/pkg/heritage"
	s3store "github.com/swadeshi/heritage/pkg/heritage/imagestore/s3"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate applies the embedded schema when the repository is built
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithInlineImages keeps images as data URIs inside entries
func WithInlineImages() Option {
	return func(c *ServerConfig) error {
		c.ImageStore = "inline"
		return nil
	}
}

// WithS3Images uploads images to an S3-compatible bucket
func WithS3Images(cfg s3store.Config) Option {
	return func(c *ServerConfig) error {
		if cfg.Bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if cfg.Region == "" {
			cfg.Region = "us-east-1"
		}
		c.ImageStore = "s3"
		c.S3 = cfg
		return nil
	}
}

// WithPolicy sets the publication policy for new submissions
func WithPolicy(policy heritage.Policy) Option {
	return func(c *ServerConfig) error {
		if !policy.IsValid() {
			return fmt.Errorf("unknown publication policy: %s", policy)
		}
		c.Policy = policy
		return nil
	}
}

// WithMediaLimits sets the per-entry image count and per-image size limits
func WithMediaLimits(maxImages int, maxImageBytes int64) Option {
	return func(c *ServerConfig) error {
		if maxImages <= 0 {
			return fmt.Errorf("max images must be positive, got: %d", maxImages)
		}
		if maxImageBytes <= 0 {
			return fmt.Errorf("max image bytes must be positive, got: %d", maxImageBytes)
		}
		c.MaxImages = maxImages
		c.MaxImageBytes = maxImageBytes
		return nil
	}
}

// WithRedisEvents publishes lifecycle events to Redis pub/sub
func WithRedisEvents(addr, password string, db int, channelPrefix string) Option {
	return func(c *ServerConfig) error {
		if addr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		c.RedisAddr = addr
		c.RedisPassword = password
		c.RedisDB = db
		if channelPrefix != "" {
			c.EventChannelPrefix = channelPrefix
		}
		return nil
	}
}

// WithEventLogging enables or disables event logging
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithReconcileSchedule sets the cron expression for count reconciliation.
// An empty schedule disables it.
func WithReconcileSchedule(schedule string) Option {
	return func(c *ServerConfig) error {
		c.ReconcileSchedule = schedule
		return nil
	}
}
