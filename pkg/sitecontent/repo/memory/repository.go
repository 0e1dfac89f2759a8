package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// Repository implements sitecontent.Repository using in-memory storage
type Repository struct {
	mu         sync.RWMutex
	principals map[uuid.UUID]*sitecontent.Principal
	websites   map[uuid.UUID]*sitecontent.Website
	children   map[uuid.UUID]*sitecontent.Child
	activity   []*sitecontent.ActivityEntry

	principalsByEmail    map[string]uuid.UUID
	principalsByUsername map[string]uuid.UUID
	websitesByName       map[string]uuid.UUID
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		principals:           make(map[uuid.UUID]*sitecontent.Principal),
		websites:             make(map[uuid.UUID]*sitecontent.Website),
		children:             make(map[uuid.UUID]*sitecontent.Child),
		principalsByEmail:    make(map[string]uuid.UUID),
		principalsByUsername: make(map[string]uuid.UUID),
		websitesByName:       make(map[string]uuid.UUID),
	}
}

// Principal operations

func (r *Repository) CreatePrincipal(ctx context.Context, principal *sitecontent.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.principalsByEmail[principal.Email]; exists {
		return fmt.Errorf("%w: email %s", sitecontent.ErrDuplicate, principal.Email)
	}
	if _, exists := r.principalsByUsername[principal.Username]; exists {
		return fmt.Errorf("%w: username %s", sitecontent.ErrDuplicate, principal.Username)
	}

	principalCopy := *principal
	r.principals[principal.ID] = &principalCopy
	r.principalsByEmail[principal.Email] = principal.ID
	r.principalsByUsername[principal.Username] = principal.ID
	return nil
}

func (r *Repository) GetPrincipal(ctx context.Context, id uuid.UUID) (*sitecontent.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	principal, exists := r.principals[id]
	if !exists {
		return nil, sitecontent.ErrNotFound
	}
	principalCopy := *principal
	return &principalCopy, nil
}

func (r *Repository) GetPrincipalByEmail(ctx context.Context, email string) (*sitecontent.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.principalsByEmail[email]
	if !exists {
		return nil, sitecontent.ErrNotFound
	}
	principalCopy := *r.principals[id]
	return &principalCopy, nil
}

// Website operations

func (r *Repository) CreateWebsite(ctx context.Context, website *sitecontent.Website) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.websitesByName[website.Name]; exists {
		return fmt.Errorf("%w: website name %s", sitecontent.ErrDuplicate, website.Name)
	}

	websiteCopy := *website
	r.websites[website.ID] = &websiteCopy
	r.websitesByName[website.Name] = website.ID
	return nil
}

func (r *Repository) GetWebsite(ctx context.Context, id uuid.UUID) (*sitecontent.Website, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	website, exists := r.websites[id]
	if !exists {
		return nil, sitecontent.ErrNotFound
	}
	websiteCopy := *website
	return &websiteCopy, nil
}

func (r *Repository) UpdateWebsite(ctx context.Context, website *sitecontent.Website) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.websites[website.ID]
	if !exists {
		return sitecontent.ErrNotFound
	}
	if existing.Name != website.Name {
		if _, taken := r.websitesByName[website.Name]; taken {
			return fmt.Errorf("%w: website name %s", sitecontent.ErrDuplicate, website.Name)
		}
		delete(r.websitesByName, existing.Name)
		r.websitesByName[website.Name] = website.ID
	}

	websiteCopy := *website
	r.websites[website.ID] = &websiteCopy
	return nil
}

func (r *Repository) DeleteWebsite(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	website, exists := r.websites[id]
	if !exists {
		return sitecontent.ErrNotFound
	}
	for childID, child := range r.children {
		if child.WebsiteID == id {
			delete(r.children, childID)
		}
	}
	delete(r.websitesByName, website.Name)
	delete(r.websites, id)
	return nil
}

func (r *Repository) ListWebsitesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*sitecontent.Website, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*sitecontent.Website{}
	for _, website := range r.websites {
		if website.OwnerID == ownerID {
			websiteCopy := *website
			result = append(result, &websiteCopy)
		}
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Child operations

func (r *Repository) CreateChild(ctx context.Context, child *sitecontent.Child) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.websites[child.WebsiteID]; !exists {
		return fmt.Errorf("%w: website %s", sitecontent.ErrNotFound, child.WebsiteID)
	}
	if _, exists := r.children[child.ID]; exists {
		return fmt.Errorf("%w: child %s", sitecontent.ErrDuplicate, child.ID)
	}
	r.children[child.ID] = copyChild(child)
	return nil
}

func (r *Repository) GetChild(ctx context.Context, id uuid.UUID) (*sitecontent.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	child, exists := r.children[id]
	if !exists {
		return nil, sitecontent.ErrNotFound
	}
	return copyChild(child), nil
}

func (r *Repository) UpdateChild(ctx context.Context, child *sitecontent.Child) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.children[child.ID]; !exists {
		return sitecontent.ErrNotFound
	}
	r.children[child.ID] = copyChild(child)
	return nil
}

func (r *Repository) DeleteChild(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.children[id]; !exists {
		return sitecontent.ErrNotFound
	}
	delete(r.children, id)
	return nil
}

func (r *Repository) ListChildren(ctx context.Context, filter sitecontent.ChildFilter) ([]*sitecontent.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*sitecontent.Child{}
	for _, child := range r.children {
		if child.WebsiteID != filter.WebsiteID {
			continue
		}
		if filter.Kind != "" && child.Kind != filter.Kind {
			continue
		}
		if filter.ActiveOnly && !child.IsPublic() {
			continue
		}
		result = append(result, copyChild(child))
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Kind == sitecontent.ChildKindCarousel && a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if a.Kind == sitecontent.ChildKindCarousel {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return result, nil
}

func (r *Repository) CountChildren(ctx context.Context, websiteID uuid.UUID, kind sitecontent.ChildKind) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, child := range r.children {
		if child.WebsiteID == websiteID && child.Kind == kind {
			count++
		}
	}
	return count, nil
}

func (r *Repository) MaxChildOrder(ctx context.Context, websiteID uuid.UUID, kind sitecontent.ChildKind) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	maxOrder := 0
	for _, child := range r.children {
		if child.WebsiteID == websiteID && child.Kind == kind && child.Order > maxOrder {
			maxOrder = child.Order
		}
	}
	return maxOrder, nil
}

func (r *Repository) SetChildOrder(ctx context.Context, websiteID, childID uuid.UUID, order int, updatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	child, exists := r.children[childID]
	if !exists || child.WebsiteID != websiteID || child.Kind != sitecontent.ChildKindCarousel {
		return false, nil
	}
	child.Order = order
	child.UpdatedAt = updatedAt
	return true, nil
}

func (r *Repository) ListObjectKeys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.children))
	for _, child := range r.children {
		if child.ObjectKey != "" {
			keys = append(keys, child.ObjectKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Activity operations

func (r *Repository) AppendActivity(ctx context.Context, entry *sitecontent.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entryCopy := *entry
	entryCopy.Details = append([]byte(nil), entry.Details...)
	r.activity = append(r.activity, &entryCopy)
	return nil
}

// ListActivity returns the principal's entries, newest first.
func (r *Repository) ListActivity(ctx context.Context, principalID uuid.UUID, limit int) ([]*sitecontent.ActivityEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*sitecontent.ActivityEntry{}
	for i := len(r.activity) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if r.activity[i].PrincipalID == principalID {
			entryCopy := *r.activity[i]
			result = append(result, &entryCopy)
		}
	}
	return result, nil
}

// Ping always succeeds
func (r *Repository) Ping(ctx context.Context) error {
	return nil
}

// Stats returns row counts per table.
func (r *Repository) Stats(ctx context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[string]int{
		"users":          len(r.principals),
		"websites":       len(r.websites),
		"images":         0,
		"carousel_items": 0,
		"activity_logs":  len(r.activity),
	}
	for _, child := range r.children {
		if child.Kind == sitecontent.ChildKindCarousel {
			stats["carousel_items"]++
		} else {
			stats["images"]++
		}
	}
	return stats, nil
}

func copyChild(c *sitecontent.Child) *sitecontent.Child {
	childCopy := *c
	if c.Subtitle != nil {
		subtitle := *c.Subtitle
		childCopy.Subtitle = &subtitle
	}
	childCopy.URL = ""
	return &childCopy
}
