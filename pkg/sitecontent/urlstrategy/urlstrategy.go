// Package urlstrategy decides how the public link of a stored image is built.
package urlstrategy

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tendant/simple-site/pkg/sitecontent"
)

// StrategyType represents the type of URL strategy
type StrategyType string

const (
	// StrategyTypeAppRouted serves blobs through the application's /uploads route
	StrategyTypeAppRouted StrategyType = "app"

	// StrategyTypeCDN points links straight at a CDN in front of the blob store
	StrategyTypeCDN StrategyType = "cdn"

	// StrategyTypeStorageDelegated asks the blob store for a signed link
	StrategyTypeStorageDelegated StrategyType = "storage-delegated"
)

// AppRoutedStrategy builds links under the application's own uploads route,
// e.g. https://api.example.com/uploads/media/objects/ab/cd.jpg
type AppRoutedStrategy struct {
	BaseURL    string // e.g. "https://api.example.com", empty for relative links
	UploadPath string // defaults to "/uploads"
}

// NewAppRoutedStrategy creates an app-routed strategy
func NewAppRoutedStrategy(baseURL string) *AppRoutedStrategy {
	return &AppRoutedStrategy{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		UploadPath: "/uploads",
	}
}

func (s *AppRoutedStrategy) BuildURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", fmt.Errorf("object key is required")
	}
	uploadPath := s.UploadPath
	if uploadPath == "" {
		uploadPath = "/uploads"
	}
	return fmt.Sprintf("%s%s/%s", s.BaseURL, uploadPath, escapeKey(objectKey)), nil
}

// CDNStrategy generates links that point directly to a CDN
type CDNStrategy struct {
	CDNBaseURL string // e.g. "https://cdn.example.com"
}

// NewCDNStrategy creates a new CDN URL strategy
func NewCDNStrategy(cdnBaseURL string) *CDNStrategy {
	return &CDNStrategy{CDNBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

func (s *CDNStrategy) BuildURL(ctx context.Context, objectKey string) (string, error) {
	if s.CDNBaseURL == "" {
		return "", fmt.Errorf("CDN base URL not configured")
	}
	return fmt.Sprintf("%s/%s", s.CDNBaseURL, escapeKey(objectKey)), nil
}

// StorageDelegatedStrategy delegates link generation to the blob store,
// e.g. S3 presigned GETs
type StorageDelegatedStrategy struct {
	Signer sitecontent.PreviewURLSigner
}

// NewStorageDelegatedStrategy creates a new storage-delegated URL strategy
func NewStorageDelegatedStrategy(signer sitecontent.PreviewURLSigner) *StorageDelegatedStrategy {
	return &StorageDelegatedStrategy{Signer: signer}
}

func (s *StorageDelegatedStrategy) BuildURL(ctx context.Context, objectKey string) (string, error) {
	return s.Signer.GetPreviewURL(ctx, objectKey)
}

// Config holds configuration for URL strategy creation
type Config struct {
	Type       StrategyType
	BaseURL    string                // For app-routed strategy
	CDNBaseURL string                // For CDN strategy
	BlobStore  sitecontent.BlobStore // For storage-delegated strategy
}

// New creates a URL strategy based on the configuration
func New(config Config) (sitecontent.URLBuilder, error) {
	switch config.Type {
	case "", StrategyTypeAppRouted:
		return NewAppRoutedStrategy(config.BaseURL), nil

	case StrategyTypeCDN:
		if config.CDNBaseURL == "" {
			return nil, fmt.Errorf("CDN base URL is required for CDN strategy")
		}
		return NewCDNStrategy(config.CDNBaseURL), nil

	case StrategyTypeStorageDelegated:
		signer, ok := config.BlobStore.(sitecontent.PreviewURLSigner)
		if !ok {
			return nil, fmt.Errorf("blob store %T cannot sign links for storage-delegated strategy", config.BlobStore)
		}
		return NewStorageDelegatedStrategy(signer), nil

	default:
		return nil, fmt.Errorf("unknown URL strategy type: %s", config.Type)
	}
}

func escapeKey(objectKey string) string {
	parts := strings.Split(objectKey, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
