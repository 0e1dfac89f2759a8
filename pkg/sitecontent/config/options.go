package config

import (
	"fmt"
	"time"

	"github.com/tendant/simple-site/pkg/sitecontent/objectkey"
	"github.com/tendant/simple-site/pkg/sitecontent/urlstrategy"
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

// WithBaseURL sets the public base URL used in app-routed links
func WithBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.BaseURL = baseURL
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
		case "postgres", "sqlite":
			if url == "" {
				return fmt.Errorf("database URL is required for %s", dbType)
			}
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'sqlite', got: %s", dbType)
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithAutoMigrate applies pending migrations when the repository is built
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage keeps blobs in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: "memory"}
		return nil
	}
}

// WithFilesystemStorage stores blobs under baseDir
func WithFilesystemStorage(baseDir, urlPrefix string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("base directory cannot be empty for filesystem storage")
		}
		c.Storage = StorageConfig{Type: "fs", BaseDir: baseDir, URLPrefix: urlPrefix}
		return nil
	}
}

// WithS3Storage stores blobs in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("bucket cannot be empty for S3 storage")
		}
		c.Storage.Type = "s3"
		c.Storage.S3.Bucket = bucket
		c.Storage.S3.Region = region
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.Storage.S3.AccessKeyID = accessKeyID
		c.Storage.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points the S3 client at an S3-compatible service such as MinIO
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.Storage.S3.Endpoint = endpoint
		c.Storage.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithRedisLocks serializes carousel ordering through redis
func WithRedisLocks(redisURL string) Option {
	return func(c *ServerConfig) error {
		c.RedisURL = redisURL
		return nil
	}
}

// WithJWT sets the token signing secret and lifetime
func WithJWT(secret string, expiry time.Duration) Option {
	return func(c *ServerConfig) error {
		if secret == "" {
			return fmt.Errorf("JWT secret cannot be empty")
		}
		c.JWTSecret = secret
		if expiry > 0 {
			c.JWTExpiry = expiry
		}
		return nil
	}
}

// WithBcryptCost sets the password digest cost
func WithBcryptCost(cost int) Option {
	return func(c *ServerConfig) error {
		c.BcryptCost = cost
		return nil
	}
}

// WithUploadLimits sets the maximum upload size and the accepted image types
func WithUploadLimits(maxBytes int64, mimeTypes ...string) Option {
	return func(c *ServerConfig) error {
		if maxBytes > 0 {
			c.MaxUploadBytes = maxBytes
		}
		if len(mimeTypes) > 0 {
			c.AllowedMimeTypes = mimeTypes
		}
		return nil
	}
}

// WithRateLimits sets the per-IP request budget for the window
func WithRateLimits(window time.Duration, max, uploadMax int) Option {
	return func(c *ServerConfig) error {
		if window <= 0 || max <= 0 || uploadMax <= 0 {
			return fmt.Errorf("rate limit window and maximums must be positive")
		}
		c.RateLimitWindow = window
		c.RateLimitMax = max
		c.UploadRateLimitMax = uploadMax
		return nil
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser
func WithCORSOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.CORSAllowedOrigins = origins
		return nil
	}
}

// WithTrustProxy takes client addresses from forwarded headers. Rate limits
// and activity entries use them.
func WithTrustProxy(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.TrustProxy = enabled
		return nil
	}
}

// WithCDNURLs points links at a CDN in front of the blob store
func WithCDNURLs(cdnBaseURL string) Option {
	return func(c *ServerConfig) error {
		if cdnBaseURL == "" {
			return fmt.Errorf("CDN base URL cannot be empty for CDN strategy")
		}
		c.URLStrategy = string(urlstrategy.StrategyTypeCDN)
		c.CDNBaseURL = cdnBaseURL
		return nil
	}
}

// WithStorageDelegatedURLs asks the blob store for signed links
func WithStorageDelegatedURLs() Option {
	return func(c *ServerConfig) error {
		c.URLStrategy = string(urlstrategy.StrategyTypeStorageDelegated)
		return nil
	}
}

// WithObjectKeyGenerator sets the object key generation strategy
// Valid values: "git-like", "flat", "owner-aware"
func WithObjectKeyGenerator(generator string) Option {
	return func(c *ServerConfig) error {
		if _, err := objectkey.ByName(generator); err != nil {
			return err
		}
		c.ObjectKeyGenerator = generator
		return nil
	}
}

// WithActivityLog selects where activity entries go: "store", "log", "both" or "off"
func WithActivityLog(mode string) Option {
	return func(c *ServerConfig) error {
		c.ActivityLog = mode
		return nil
	}
}

// WithLogging sets the log format ("text" or "json") and level
func WithLogging(format, level string) Option {
	return func(c *ServerConfig) error {
		if format != "" {
			c.LogFormat = format
		}
		if level != "" {
			c.LogLevel = level
		}
		return nil
	}
}
