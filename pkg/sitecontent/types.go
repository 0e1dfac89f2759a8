package sitecontent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChildKind distinguishes the two child resource variants attached to a website.
type ChildKind string

// Child kind constants (typed).
const (
	ChildKindMedia    ChildKind = "media"
	ChildKindCarousel ChildKind = "carousel"
)

// IsValid reports whether k is a known child kind.
func (k ChildKind) IsValid() bool {
	switch k {
	case ChildKindMedia, ChildKindCarousel:
		return true
	default:
		return false
	}
}

// ActivityAction is the tag recorded on every activity entry.
type ActivityAction string

// Activity action constants (typed).
const (
	ActionRegister           ActivityAction = "register"
	ActionLogin              ActivityAction = "login"
	ActionCreateWebsite      ActivityAction = "create_website"
	ActionUpdateWebsite      ActivityAction = "update_website"
	ActionDeleteWebsite      ActivityAction = "delete_website"
	ActionCreateMedia        ActivityAction = "create_media"
	ActionUpdateMedia        ActivityAction = "update_media"
	ActionDeleteMedia        ActivityAction = "delete_media"
	ActionCreateCarouselItem ActivityAction = "create_carousel_item"
	ActionUpdateCarouselItem ActivityAction = "update_carousel_item"
	ActionDeleteCarouselItem ActivityAction = "delete_carousel_item"
	ActionReorderCarousel    ActivityAction = "reorder_carousel"
)

// childAction maps a child kind and verb to its activity tag.
func childAction(kind ChildKind, verb string) ActivityAction {
	if kind == ChildKindCarousel {
		switch verb {
		case "create":
			return ActionCreateCarouselItem
		case "update":
			return ActionUpdateCarouselItem
		case "delete":
			return ActionDeleteCarouselItem
		}
	}
	switch verb {
	case "create":
		return ActionCreateMedia
	case "update":
		return ActionUpdateMedia
	default:
		return ActionDeleteMedia
	}
}

// Principal is an authenticated account.
type Principal struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Website is the parent resource. Name is globally unique.
type Website struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	About     string    `json:"about"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Child is a media item or carousel item attached to exactly one website.
//
// Media items use Width, Height, FileName, SizeBytes and MimeType.
// Carousel items use Title, Subtitle, Active and Order. Both carry the
// blob reference (ObjectKey) and timestamps.
type Child struct {
	ID        uuid.UUID `json:"id" db:"id"`
	WebsiteID uuid.UUID `json:"website_id" db:"website_id"`
	Kind      ChildKind `json:"kind" db:"kind"`
	ObjectKey string    `json:"object_key" db:"object_key"`

	Width     int    `json:"width,omitempty" db:"width"`
	Height    int    `json:"height,omitempty" db:"height"`
	FileName  string `json:"file_name,omitempty" db:"file_name"`
	SizeBytes int64  `json:"size_bytes,omitempty" db:"size_bytes"`
	MimeType  string `json:"mime_type,omitempty" db:"mime_type"`

	Title    string  `json:"title,omitempty" db:"title"`
	Subtitle *string `json:"subtitle,omitempty" db:"subtitle"`
	Active   bool    `json:"active" db:"active"`
	Order    int     `json:"order" db:"sort_order"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Computed fields (not persisted - populated by service layer)
	URL string `json:"url,omitempty" db:"-"`
}

// IsPublic reports whether the child may be served on the anonymous read path.
// Media items carry no flag and are always public.
func (c *Child) IsPublic() bool {
	if c.Kind == ChildKindCarousel {
		return c.Active
	}
	return true
}

// PublicChild is the public-safe projection of a Child.
type PublicChild struct {
	ID        uuid.UUID `json:"id"`
	Kind      ChildKind `json:"kind"`
	URL       string    `json:"url"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Title     string    `json:"title,omitempty"`
	Subtitle  *string   `json:"subtitle,omitempty"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the public-safe projection of c.
func (c *Child) Public() PublicChild {
	return PublicChild{
		ID:        c.ID,
		Kind:      c.Kind,
		URL:       c.URL,
		Width:     c.Width,
		Height:    c.Height,
		Title:     c.Title,
		Subtitle:  c.Subtitle,
		Order:     c.Order,
		CreatedAt: c.CreatedAt,
	}
}

// WebsiteDetails is a website together with all of its children.
type WebsiteDetails struct {
	Website
	Media    []*Child `json:"media"`
	Carousel []*Child `json:"carousel"`
}

// WebsiteSummary is a website with child counts, as shown on the owner's dashboard.
type WebsiteSummary struct {
	Website
	MediaCount    int `json:"media_count"`
	CarouselCount int `json:"carousel_count"`
}

// ActivityEntry is an append-only audit record of a mutating operation.
type ActivityEntry struct {
	ID          uuid.UUID       `json:"id"`
	PrincipalID uuid.UUID       `json:"principal_id"`
	Action      ActivityAction  `json:"action"`
	Details     json.RawMessage `json:"details,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Session is returned after registration or login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Principal *Principal `json:"user"`
}

// Claims are the identity facts carried in a bearer token.
type Claims struct {
	PrincipalID uuid.UUID
	Username    string
	Email       string
	ExpiresAt   time.Time
}
