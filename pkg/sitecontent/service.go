package sitecontent

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-site library
type Service interface {
	// Account operations
	Register(ctx context.Context, req RegisterRequest) (*Session, error)
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	GetPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)
	Authenticate(ctx context.Context, token string) (*Claims, error)

	// Website operations
	CreateWebsite(ctx context.Context, req CreateWebsiteRequest) (*Website, error)
	GetWebsite(ctx context.Context, principalID, websiteID uuid.UUID) (*WebsiteDetails, error)
	ListWebsites(ctx context.Context, principalID uuid.UUID) ([]*WebsiteSummary, error)
	UpdateWebsite(ctx context.Context, req UpdateWebsiteRequest) (*Website, error)
	DeleteWebsite(ctx context.Context, caller Caller, websiteID uuid.UUID) error

	// Child operations
	CreateChild(ctx context.Context, req CreateChildRequest) (*Child, error)
	GetChild(ctx context.Context, principalID, childID uuid.UUID) (*Child, error)
	UpdateChild(ctx context.Context, req UpdateChildRequest) (*Child, error)
	DeleteChild(ctx context.Context, caller Caller, childID uuid.UUID) error
	ReorderChildren(ctx context.Context, req ReorderChildrenRequest) error
	ListChildrenByParent(ctx context.Context, req ListChildrenRequest) ([]*Child, error)

	// Blob access for serving uploaded files
	OpenBlob(ctx context.Context, objectKey string) (io.ReadCloser, *ObjectMeta, error)

	// Activity operations
	ListActivity(ctx context.Context, principalID uuid.UUID, limit int) ([]*ActivityEntry, error)

	// Ping checks the record store
	Ping(ctx context.Context) error
}
