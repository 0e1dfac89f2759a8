package config

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tendant/simple-site/pkg/sitecontent"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(WithJWT(testSecret, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DatabaseType != "memory" || cfg.Storage.Type != "memory" {
		t.Errorf("expected memory backends, got %s/%s", cfg.DatabaseType, cfg.Storage.Type)
	}
	if cfg.JWTExpiry != 7*24*time.Hour {
		t.Errorf("expected 7 day token expiry, got %s", cfg.JWTExpiry)
	}
	if cfg.MaxUploadBytes != 5<<20 {
		t.Errorf("expected 5MiB upload cap, got %d", cfg.MaxUploadBytes)
	}
	if cfg.RateLimitWindow != 15*time.Minute || cfg.RateLimitMax != 100 || cfg.UploadRateLimitMax != 10 {
		t.Errorf("unexpected rate limits %s/%d/%d", cfg.RateLimitWindow, cfg.RateLimitMax, cfg.UploadRateLimitMax)
	}
	if strings.Join(cfg.AllowedMimeTypes, ",") != "image/jpeg,image/png,image/webp" {
		t.Errorf("unexpected mime types %v", cfg.AllowedMimeTypes)
	}
	if cfg.IsProduction() {
		t.Error("expected development environment by default")
	}
	if cfg.TrustProxy {
		t.Error("forwarded headers must not be trusted by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"missing JWT secret", nil},
		{"postgres without URL", []Option{WithJWT(testSecret, 0), func(c *ServerConfig) error { c.DatabaseType = "postgres"; return nil }}},
		{"unknown database", []Option{WithJWT(testSecret, 0), func(c *ServerConfig) error { c.DatabaseType = "mongo"; return nil }}},
		{"fs without directory", []Option{WithJWT(testSecret, 0), func(c *ServerConfig) error { c.Storage.Type = "fs"; return nil }}},
		{"s3 without bucket", []Option{WithJWT(testSecret, 0), func(c *ServerConfig) error { c.Storage.Type = "s3"; return nil }}},
		{"cdn without base URL", []Option{WithJWT(testSecret, 0), func(c *ServerConfig) error { c.URLStrategy = "cdn"; return nil }}},
		{"unknown url strategy", []Option{WithJWT(testSecret, 0), func(c *ServerConfig) error { c.URLStrategy = "magic"; return nil }}},
		{"unknown activity log", []Option{WithJWT(testSecret, 0), WithActivityLog("email")}},
		{"zero upload cap", []Option{WithJWT(testSecret, 0), func(c *ServerConfig) error { c.MaxUploadBytes = 0; return nil }}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.opts...); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestOptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty port", WithPort("")},
		{"empty environment", WithEnvironment("")},
		{"unknown database", WithDatabase("mysql", "mysql://localhost")},
		{"sqlite without path", WithDatabase("sqlite", "")},
		{"fs without directory", WithFilesystemStorage("", "")},
		{"s3 without bucket", WithS3Storage("", "us-east-1")},
		{"empty JWT secret", WithJWT("", time.Hour)},
		{"zero rate limit", WithRateLimits(time.Minute, 0, 1)},
		{"empty CDN", WithCDNURLs("")},
		{"unknown key generator", WithObjectKeyGenerator("random")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(WithJWT(testSecret, 0), tt.opt); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestComposedOptions(t *testing.T) {
	cfg, err := Load(
		WithPort("9090"),
		WithEnvironment("production"),
		WithBaseURL("https://api.example.com"),
		WithDatabase("sqlite", "site.db"),
		WithAutoMigrate(true),
		WithS3Storage("site-bucket", "eu-west-1"),
		WithS3Credentials("key", "secret"),
		WithS3Endpoint("http://localhost:9000", true),
		WithRedisLocks("redis://localhost:6379/0"),
		WithJWT(testSecret, time.Hour),
		WithBcryptCost(10),
		WithUploadLimits(1<<20, "image/png"),
		WithRateLimits(time.Minute, 20, 2),
		WithCORSOrigins("https://example.com"),
		WithStorageDelegatedURLs(),
		WithObjectKeyGenerator("owner-aware"),
		WithActivityLog("both"),
		WithLogging("json", "debug"),
	)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != "9090" || !cfg.IsProduction() || cfg.BaseURL != "https://api.example.com" {
		t.Errorf("server options not applied: %s %s %s", cfg.Port, cfg.Environment, cfg.BaseURL)
	}
	if cfg.DatabaseType != "sqlite" || cfg.DatabaseURL != "site.db" || !cfg.AutoMigrate {
		t.Errorf("database options not applied: %s %s %t", cfg.DatabaseType, cfg.DatabaseURL, cfg.AutoMigrate)
	}
	if cfg.Storage.Type != "s3" || cfg.Storage.S3.Bucket != "site-bucket" || !cfg.Storage.S3.UsePathStyle {
		t.Errorf("storage options not applied: %+v", cfg.Storage)
	}
	if cfg.JWTExpiry != time.Hour || cfg.BcryptCost != 10 {
		t.Errorf("account options not applied: %s %d", cfg.JWTExpiry, cfg.BcryptCost)
	}
	if cfg.MaxUploadBytes != 1<<20 || len(cfg.AllowedMimeTypes) != 1 {
		t.Errorf("upload options not applied: %d %v", cfg.MaxUploadBytes, cfg.AllowedMimeTypes)
	}
	if cfg.URLStrategy != "storage-delegated" || cfg.ObjectKeyGenerator != "owner-aware" {
		t.Errorf("link options not applied: %s %s", cfg.URLStrategy, cfg.ObjectKeyGenerator)
	}
	if cfg.LogFormat != "json" || cfg.LogLevel != "debug" || cfg.ActivityLog != "both" {
		t.Errorf("logging options not applied: %s %s %s", cfg.LogFormat, cfg.LogLevel, cfg.ActivityLog)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// exercise registers an account, creates a website and uploads one image
func exercise(t *testing.T, svc sitecontent.Service) *sitecontent.Child {
	t.Helper()
	ctx := context.Background()

	session, err := svc.Register(ctx, sitecontent.RegisterRequest{Username: "builder", Email: "builder@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	caller := sitecontent.Caller{PrincipalID: session.Principal.ID}

	site, err := svc.CreateWebsite(ctx, sitecontent.CreateWebsiteRequest{Caller: caller, Name: "Built", About: "from config"})
	if err != nil {
		t.Fatalf("create website failed: %v", err)
	}

	child, err := svc.CreateChild(ctx, sitecontent.CreateChildRequest{
		Caller:    caller,
		WebsiteID: site.ID,
		Kind:      sitecontent.ChildKindMedia,
		Upload:    &sitecontent.Upload{FileName: "pixel.png", Reader: bytes.NewReader(pngBytes(t))},
	})
	if err != nil {
		t.Fatalf("create child failed: %v", err)
	}
	return child
}

func TestBuildMemory(t *testing.T) {
	cfg, err := Load(WithJWT(testSecret, 0), WithBcryptCost(4), WithBaseURL("https://api.example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	components, err := cfg.Build(context.Background(), quietLogger())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer components.Close()

	child := exercise(t, components.Service)
	if !strings.HasPrefix(child.URL, "https://api.example.com/uploads/") {
		t.Errorf("expected app-routed link, got %s", child.URL)
	}
	if err := components.Service.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestBuildSQLiteAndFilesystem(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(
		WithJWT(testSecret, 0),
		WithBcryptCost(4),
		WithDatabase("sqlite", filepath.Join(dir, "site.db")),
		WithAutoMigrate(true),
		WithFilesystemStorage(filepath.Join(dir, "uploads"), ""),
		WithCDNURLs("https://cdn.example.com"),
		WithObjectKeyGenerator("flat"),
		WithActivityLog("off"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	components, err := cfg.Build(context.Background(), quietLogger())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer components.Close()

	child := exercise(t, components.Service)
	if !strings.HasPrefix(child.URL, "https://cdn.example.com/") {
		t.Errorf("expected CDN link, got %s", child.URL)
	}

	keys, err := components.Repository.ListObjectKeys(context.Background())
	if err != nil {
		t.Fatalf("list keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != child.ObjectKey {
		t.Errorf("expected [%s], got %v", child.ObjectKey, keys)
	}

	if _, err := components.BlobStore.GetObjectMeta(context.Background(), child.ObjectKey); err != nil {
		t.Errorf("expected blob on disk: %v", err)
	}
}

func TestBuildStorageDelegatedRequiresSigner(t *testing.T) {
	cfg, err := Load(WithJWT(testSecret, 0), WithStorageDelegatedURLs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := cfg.BuildService(context.Background(), quietLogger()); err == nil {
		t.Error("expected error: memory storage cannot sign links")
	}
}
