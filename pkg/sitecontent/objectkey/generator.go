package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// FlatGenerator keeps every blob of a website under one directory
// Structure: {kind}/{website}/{object}.{ext}
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(websiteID, objectID uuid.UUID, metadata *sitecontent.KeyMetadata) string {
	return fmt.Sprintf("%s/%s/%s%s", kindDir(metadata), websiteID, objectID, extension(metadata))
}

// GitLikeGenerator provides Git-style sharded storage per child kind
// Structure: {kind}/objects/ab/cd1234ef5678_filename.{ext}
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) GenerateKey(websiteID, objectID uuid.UUID, metadata *sitecontent.KeyMetadata) string {
	// Use objectID for sharding since it's unique and random
	objectIDStr := strings.ReplaceAll(objectID.String(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 {
		shardLength = 2
	}
	if shardLength > len(objectIDStr)-1 {
		shardLength = len(objectIDStr) - 1
	}

	shardDir := objectIDStr[:shardLength]
	filename := objectIDStr[shardLength:]
	if stem := fileStem(metadata); stem != "" {
		filename = fmt.Sprintf("%s_%s", filename, stem)
	}

	return fmt.Sprintf("%s/objects/%s/%s%s", kindDir(metadata), shardDir, filename, extension(metadata))
}

// OwnerAwareGenerator prefixes keys with the owning principal so one
// account's blobs can be listed or removed together
// Structure: owners/{owner}/{base key}
type OwnerAwareGenerator struct {
	BaseGenerator sitecontent.KeyGenerator
	DefaultOwner  string
}

func NewOwnerAwareGenerator() *OwnerAwareGenerator {
	return &OwnerAwareGenerator{
		BaseGenerator: NewGitLikeGenerator(),
		DefaultOwner:  "shared",
	}
}

func (g *OwnerAwareGenerator) GenerateKey(websiteID, objectID uuid.UUID, metadata *sitecontent.KeyMetadata) string {
	owner := g.DefaultOwner
	if metadata != nil && metadata.OwnerID != uuid.Nil {
		owner = metadata.OwnerID.String()
	}
	return fmt.Sprintf("owners/%s/%s", owner, g.BaseGenerator.GenerateKey(websiteID, objectID, metadata))
}

// CustomFuncGenerator allows callers to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(websiteID, objectID uuid.UUID, metadata *sitecontent.KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(websiteID, objectID uuid.UUID, metadata *sitecontent.KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(websiteID, objectID uuid.UUID, metadata *sitecontent.KeyMetadata) string {
	return g.GenerateFunc(websiteID, objectID, metadata)
}

// ByName returns the generator configured by name: "flat", "git-like" or "owner-aware".
func ByName(name string) (sitecontent.KeyGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "git-like", "gitlike":
		return NewGitLikeGenerator(), nil
	case "flat":
		return NewFlatGenerator(), nil
	case "owner-aware", "owner":
		return NewOwnerAwareGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key generator %q", name)
	}
}

func kindDir(metadata *sitecontent.KeyMetadata) string {
	if metadata == nil || metadata.Kind == "" {
		return "misc"
	}
	return sanitizePathComponent(string(metadata.Kind))
}

// extension follows the stored MIME type, not the client's file name, since
// images are re-encoded before they are written.
func extension(metadata *sitecontent.KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	switch metadata.MimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func fileStem(metadata *sitecontent.KeyMetadata) string {
	if metadata == nil || metadata.FileName == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(metadata.FileName, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = sanitizeFilename(stem)
	if stem == "." || stem == ".." || strings.Trim(stem, "_.") == "" {
		return ""
	}
	if len(stem) > 64 {
		stem = stem[:64]
	}
	return stem
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	// Replace problematic characters for filesystem compatibility
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"#", "_",
		"%", "_",
	)
	return replacer.Replace(filename)
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(sanitizeFilename(component))
}
