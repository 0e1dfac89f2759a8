package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// fileConfig mirrors the environment variables the server reads. It is
// filled by cleanenv from the environment or from a config file; zero values
// leave the current setting untouched.
type fileConfig struct {
	Port        string `yaml:"port" toml:"port" json:"port" env:"PORT"`
	Environment string `yaml:"environment" toml:"environment" json:"environment" env:"ENVIRONMENT"`
	BaseURL     string `yaml:"base_url" toml:"base_url" json:"base_url" env:"BASE_URL"`

	DatabaseURL string `yaml:"database_url" toml:"database_url" json:"database_url" env:"DATABASE_URL"`
	AutoMigrate string `yaml:"auto_migrate" toml:"auto_migrate" json:"auto_migrate" env:"AUTO_MIGRATE"`

	StorageURL       string `yaml:"storage_url" toml:"storage_url" json:"storage_url" env:"STORAGE_URL"`
	S3AccessKeyID    string `yaml:"s3_access_key_id" toml:"s3_access_key_id" json:"s3_access_key_id" env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `yaml:"s3_secret_access_key" toml:"s3_secret_access_key" json:"s3_secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	RedisURL         string `yaml:"redis_url" toml:"redis_url" json:"redis_url" env:"REDIS_URL"`
	JWTSecret        string `yaml:"jwt_secret" toml:"jwt_secret" json:"jwt_secret" env:"JWT_SECRET"`
	JWTExpiry        string `yaml:"jwt_expiry" toml:"jwt_expiry" json:"jwt_expiry" env:"JWT_EXPIRY"`
	BcryptCost       int    `yaml:"bcrypt_cost" toml:"bcrypt_cost" json:"bcrypt_cost" env:"BCRYPT_COST"`
	MaxUploadBytes   int64  `yaml:"max_upload_bytes" toml:"max_upload_bytes" json:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	AllowedMimeTypes string `yaml:"allowed_mime_types" toml:"allowed_mime_types" json:"allowed_mime_types" env:"ALLOWED_MIME_TYPES"`

	RateLimitWindow    string `yaml:"rate_limit_window" toml:"rate_limit_window" json:"rate_limit_window" env:"RATE_LIMIT_WINDOW"`
	RateLimitMax       int    `yaml:"rate_limit_max" toml:"rate_limit_max" json:"rate_limit_max" env:"RATE_LIMIT_MAX"`
	UploadRateLimitMax int    `yaml:"upload_rate_limit_max" toml:"upload_rate_limit_max" json:"upload_rate_limit_max" env:"UPLOAD_RATE_LIMIT_MAX"`
	RequestTimeout     string `yaml:"request_timeout" toml:"request_timeout" json:"request_timeout" env:"REQUEST_TIMEOUT"`
	CORSOrigins        string `yaml:"cors_allowed_origins" toml:"cors_allowed_origins" json:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	TrustProxy         string `yaml:"trust_proxy" toml:"trust_proxy" json:"trust_proxy" env:"TRUST_PROXY"`

	URLStrategy        string `yaml:"url_strategy" toml:"url_strategy" json:"url_strategy" env:"URL_STRATEGY"`
	CDNBaseURL         string `yaml:"cdn_base_url" toml:"cdn_base_url" json:"cdn_base_url" env:"CDN_BASE_URL"`
	ObjectKeyGenerator string `yaml:"object_key_generator" toml:"object_key_generator" json:"object_key_generator" env:"OBJECT_KEY_GENERATOR"`

	ActivityLog string `yaml:"activity_log" toml:"activity_log" json:"activity_log" env:"ACTIVITY_LOG"`
	LogFormat   string `yaml:"log_format" toml:"log_format" json:"log_format" env:"LOG_FORMAT"`
	LogLevel    string `yaml:"log_level" toml:"log_level" json:"log_level" env:"LOG_LEVEL"`
}

// WithEnv reads configuration from environment variables.
//
// Supported variables:
//
//	PORT, ENVIRONMENT, BASE_URL
//	DATABASE_URL          memory | postgres://... | postgresql://... | sqlite://path
//	AUTO_MIGRATE          true | false
//	STORAGE_URL           memory:// | file:///dir | s3://bucket?region=...&endpoint=...&path_style=true&prefix=...
//	S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY
//	REDIS_URL             redis://host:6379/0 enables the distributed order lock
//	JWT_SECRET, JWT_EXPIRY (e.g. 168h), BCRYPT_COST
//	MAX_UPLOAD_BYTES, ALLOWED_MIME_TYPES (comma separated)
//	RATE_LIMIT_WINDOW, RATE_LIMIT_MAX, UPLOAD_RATE_LIMIT_MAX, REQUEST_TIMEOUT
//	CORS_ALLOWED_ORIGINS (comma separated)
//	TRUST_PROXY           true behind a proxy that sets X-Forwarded-For
//	URL_STRATEGY, CDN_BASE_URL, OBJECT_KEY_GENERATOR
//	ACTIVITY_LOG, LOG_FORMAT, LOG_LEVEL
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var fc fileConfig
		if err := cleanenv.ReadEnv(&fc); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return fc.apply(c)
	}
}

// WithConfigFile reads a YAML, TOML, JSON or .env file. Environment variables
// override values from the file.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		var fc fileConfig
		if err := cleanenv.ReadConfig(path, &fc); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return fc.apply(c)
	}
}

func (fc *fileConfig) apply(c *ServerConfig) error {
	setString(&c.Port, fc.Port)
	setString(&c.Environment, fc.Environment)
	setString(&c.BaseURL, fc.BaseURL)
	setString(&c.RedisURL, fc.RedisURL)
	setString(&c.JWTSecret, fc.JWTSecret)
	setString(&c.URLStrategy, fc.URLStrategy)
	setString(&c.CDNBaseURL, fc.CDNBaseURL)
	setString(&c.ObjectKeyGenerator, fc.ObjectKeyGenerator)
	setString(&c.ActivityLog, fc.ActivityLog)
	setString(&c.LogFormat, fc.LogFormat)
	setString(&c.LogLevel, fc.LogLevel)

	if fc.DatabaseURL != "" {
		if err := applyDatabaseURL(fc.DatabaseURL, c); err != nil {
			return err
		}
	}
	if fc.AutoMigrate != "" {
		v, err := strconv.ParseBool(fc.AutoMigrate)
		if err != nil {
			return fmt.Errorf("invalid AUTO_MIGRATE: %w", err)
		}
		c.AutoMigrate = v
	}

	if fc.StorageURL != "" {
		if err := applyStorageURL(fc.StorageURL, c); err != nil {
			return err
		}
	}
	setString(&c.Storage.S3.AccessKeyID, fc.S3AccessKeyID)
	setString(&c.Storage.S3.SecretAccessKey, fc.S3SecretKey)

	if err := setDuration(&c.JWTExpiry, "JWT_EXPIRY", fc.JWTExpiry); err != nil {
		return err
	}
	if err := setDuration(&c.RateLimitWindow, "RATE_LIMIT_WINDOW", fc.RateLimitWindow); err != nil {
		return err
	}
	if err := setDuration(&c.RequestTimeout, "REQUEST_TIMEOUT", fc.RequestTimeout); err != nil {
		return err
	}

	if fc.BcryptCost != 0 {
		c.BcryptCost = fc.BcryptCost
	}
	if fc.MaxUploadBytes != 0 {
		c.MaxUploadBytes = fc.MaxUploadBytes
	}
	if fc.RateLimitMax != 0 {
		c.RateLimitMax = fc.RateLimitMax
	}
	if fc.UploadRateLimitMax != 0 {
		c.UploadRateLimitMax = fc.UploadRateLimitMax
	}
	if list := splitList(fc.AllowedMimeTypes); len(list) > 0 {
		c.AllowedMimeTypes = list
	}
	if list := splitList(fc.CORSOrigins); len(list) > 0 {
		c.CORSAllowedOrigins = list
	}
	if fc.TrustProxy != "" {
		v, err := strconv.ParseBool(fc.TrustProxy)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY: %w", err)
		}
		c.TrustProxy = v
	}

	return nil
}

func applyDatabaseURL(raw string, c *ServerConfig) error {
	switch {
	case raw == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = raw
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return fmt.Errorf("DATABASE_URL %q has no sqlite path", raw)
		}
		c.DatabaseType = "sqlite"
		c.DatabaseURL = path
	default:
		return fmt.Errorf("unsupported DATABASE_URL %q: use memory, postgres:// or sqlite://", raw)
	}
	return nil
}

func applyStorageURL(raw string, c *ServerConfig) error {
	switch {
	case raw == "memory" || raw == "memory://":
		c.Storage.Type = "memory"
		return nil

	case strings.HasPrefix(raw, "file://"):
		dir := strings.TrimPrefix(raw, "file://")
		if dir == "" {
			return fmt.Errorf("STORAGE_URL %q has no directory", raw)
		}
		c.Storage.Type = "fs"
		c.Storage.BaseDir = dir
		return nil

	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("STORAGE_URL %q has no bucket", raw)
		}
		q := u.Query()
		c.Storage.Type = "s3"
		c.Storage.S3.Bucket = u.Host
		c.Storage.S3.Region = q.Get("region")
		c.Storage.S3.Endpoint = q.Get("endpoint")
		c.Storage.S3.Prefix = q.Get("prefix")
		if v := q.Get("path_style"); v != "" {
			pathStyle, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
			}
			c.Storage.S3.UsePathStyle = pathStyle
		}
		if v := q.Get("create_bucket"); v != "" {
			create, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid create_bucket in STORAGE_URL: %w", err)
			}
			c.Storage.S3.CreateBucketIfNotExist = create
		}
		return nil

	default:
		return fmt.Errorf("unsupported STORAGE_URL %q: use memory://, file:// or s3://", raw)
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
