package sitecontent

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for blob storage backends
type BlobStore interface {
	// Upload writes content under objectKey
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams writes content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download opens content for reading
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes content. Deleting a missing key returns ErrObjectNotFound
	// or nil, depending on the backend.
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// BlobLister is implemented by blob stores that can enumerate their keys.
// The orphan sweep requires it.
type BlobLister interface {
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)
}

// PreviewURLSigner is implemented by blob stores that can hand out
// time-limited direct links (for example S3 presigned GETs).
type PreviewURLSigner interface {
	GetPreviewURL(ctx context.Context, objectKey string) (string, error)
}

// Repository defines the interface for record persistence
type Repository interface {
	// Principal operations
	CreatePrincipal(ctx context.Context, principal *Principal) error
	GetPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (*Principal, error)

	// Website operations
	CreateWebsite(ctx context.Context, website *Website) error
	GetWebsite(ctx context.Context, id uuid.UUID) (*Website, error)
	UpdateWebsite(ctx context.Context, website *Website) error
	// DeleteWebsite removes the website and all of its children
	DeleteWebsite(ctx context.Context, id uuid.UUID) error
	ListWebsitesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Website, error)

	// Child operations
	CreateChild(ctx context.Context, child *Child) error
	GetChild(ctx context.Context, id uuid.UUID) (*Child, error)
	UpdateChild(ctx context.Context, child *Child) error
	DeleteChild(ctx context.Context, id uuid.UUID) error
	ListChildren(ctx context.Context, filter ChildFilter) ([]*Child, error)
	CountChildren(ctx context.Context, websiteID uuid.UUID, kind ChildKind) (int, error)
	// MaxChildOrder returns the highest order among the website's children of kind, or 0
	MaxChildOrder(ctx context.Context, websiteID uuid.UUID, kind ChildKind) (int, error)
	// SetChildOrder updates order and updated_at only when childID is a carousel
	// child of websiteID. It reports whether a row matched.
	SetChildOrder(ctx context.Context, websiteID, childID uuid.UUID, order int, updatedAt time.Time) (bool, error)
	// ListObjectKeys returns every blob key referenced by a child
	ListObjectKeys(ctx context.Context) ([]string, error)

	// Activity operations
	AppendActivity(ctx context.Context, entry *ActivityEntry) error
	ListActivity(ctx context.Context, principalID uuid.UUID, limit int) ([]*ActivityEntry, error)

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}

// StatsReporter is implemented by repositories that can report row counts
// per table. The check-db command uses it.
type StatsReporter interface {
	Stats(ctx context.Context) (map[string]int, error)
}

// ActivityRecorder receives an entry for every mutating operation.
// Failures are logged by the service and never returned to the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, entry *ActivityEntry) error
}

// Transformer normalizes uploaded images
type Transformer interface {
	Transform(ctx context.Context, reader io.Reader, constraints Constraints) (*TransformResult, error)
}

// PasswordHasher produces and checks credential digests
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// TokenIssuer issues and verifies bearer tokens
type TokenIssuer interface {
	IssueToken(claims Claims) (token string, expiresAt time.Time, err error)
	VerifyToken(token string) (*Claims, error)
}

// Locker serializes short critical sections keyed by name
type Locker interface {
	// Lock blocks until the named lock is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyGenerator names blobs. Keys must be collision resistant.
type KeyGenerator interface {
	GenerateKey(websiteID, objectID uuid.UUID, metadata *KeyMetadata) string
}

// URLBuilder produces the public link for a stored blob
type URLBuilder interface {
	BuildURL(ctx context.Context, objectKey string) (string, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Kind     ChildKind
	FileName string
	MimeType string
	OwnerID  uuid.UUID
}

// Constraints bound the output of a Transformer
type Constraints struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// TransformResult is the normalized image and its metadata
type TransformResult struct {
	Data     []byte
	Width    int
	Height   int
	MimeType string
}

// ChildFilter selects children for listing
type ChildFilter struct {
	WebsiteID  uuid.UUID
	Kind       ChildKind
	ActiveOnly bool
}
