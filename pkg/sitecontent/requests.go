package sitecontent

import (
	"io"

	"github.com/google/uuid"
)

// Request DTOs

// Caller identifies who is performing an operation and from where.
// IPAddress and UserAgent are copied into activity entries.
type Caller struct {
	PrincipalID uuid.UUID
	IPAddress   string
	UserAgent   string
}

// RegisterRequest contains parameters for creating an account
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginRequest contains parameters for authenticating an account
type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// CreateWebsiteRequest contains parameters for creating a website
type CreateWebsiteRequest struct {
	Caller Caller
	Name   string
	About  string
}

// UpdateWebsiteRequest patches a website. Nil fields keep their value.
type UpdateWebsiteRequest struct {
	Caller    Caller
	WebsiteID uuid.UUID
	Name      *string
	About     *string
}

// Upload is an image supplied with a create or update call.
type Upload struct {
	FileName string
	// MimeType is the type declared by the client. The service sniffs the
	// content and validates the sniffed type.
	MimeType string
	Reader   io.Reader
}

// CreateChildRequest contains parameters for attaching a child to a website
type CreateChildRequest struct {
	Caller    Caller
	WebsiteID uuid.UUID
	Kind      ChildKind

	// Carousel fields
	Title    string
	Subtitle *string
	Active   *bool
	Order    *int

	// Upload is required for every kind
	Upload *Upload
}

// UpdateChildRequest patches a child. Nil fields keep their value and a nil
// Upload keeps the current blob.
type UpdateChildRequest struct {
	Caller  Caller
	ChildID uuid.UUID

	Title    *string
	Subtitle *string
	Active   *bool
	Order    *int

	Upload *Upload
}

// OrderAssignment moves one child to a new order position
type OrderAssignment struct {
	ChildID uuid.UUID `json:"id"`
	Order   int       `json:"order"`
}

// ReorderChildrenRequest applies a batch of order assignments within a website
type ReorderChildrenRequest struct {
	Caller      Caller
	WebsiteID   uuid.UUID
	Assignments []OrderAssignment
}

// ListChildrenRequest selects a website's children.
//
// When OwnerScoped is true, PrincipalID must own the website and every child
// is returned. Otherwise only public children are returned and no ownership
// check is made.
type ListChildrenRequest struct {
	PrincipalID uuid.UUID
	WebsiteID   uuid.UUID
	Kind        ChildKind
	OwnerScoped bool
}
