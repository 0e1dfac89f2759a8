package sitecontent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxWebsiteNameLength  = 100
	maxWebsiteAboutLength = 5000
)

func (s *service) CreateWebsite(ctx context.Context, req CreateWebsiteRequest) (*Website, error) {
	name, err := normalizeWebsiteName(req.Name)
	if err != nil {
		return nil, err
	}
	about, err := normalizeAbout(req.About)
	if err != nil {
		return nil, err
	}
	if req.Caller.PrincipalID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	now := s.now()
	website := &Website{
		ID:        uuid.New(),
		Name:      name,
		About:     about,
		OwnerID:   req.Caller.PrincipalID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repository.CreateWebsite(ctx, website); err != nil {
		s.logger.Error("failed to create website", "name", name, "error", err)
		return nil, &WebsiteError{WebsiteID: website.ID, Op: "create", Err: classify(err)}
	}

	s.recordActivity(ctx, req.Caller, ActionCreateWebsite, map[string]interface{}{
		"website_id": website.ID,
		"name":       website.Name,
	})
	return website, nil
}

// GetWebsite returns the caller's website with every child attached.
func (s *service) GetWebsite(ctx context.Context, principalID, websiteID uuid.UUID) (*WebsiteDetails, error) {
	website, err := s.authorizeWebsite(ctx, principalID, websiteID)
	if err != nil {
		return nil, err
	}

	media, err := s.repository.ListChildren(ctx, ChildFilter{WebsiteID: websiteID, Kind: ChildKindMedia})
	if err != nil {
		return nil, &WebsiteError{WebsiteID: websiteID, Op: "get", Err: classify(err)}
	}
	carousel, err := s.repository.ListChildren(ctx, ChildFilter{WebsiteID: websiteID, Kind: ChildKindCarousel})
	if err != nil {
		return nil, &WebsiteError{WebsiteID: websiteID, Op: "get", Err: classify(err)}
	}
	s.fillURLs(ctx, media)
	s.fillURLs(ctx, carousel)

	return &WebsiteDetails{Website: *website, Media: media, Carousel: carousel}, nil
}

func (s *service) ListWebsites(ctx context.Context, principalID uuid.UUID) ([]*WebsiteSummary, error) {
	if principalID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	websites, err := s.repository.ListWebsitesByOwner(ctx, principalID)
	if err != nil {
		return nil, classify(err)
	}

	summaries := make([]*WebsiteSummary, 0, len(websites))
	for _, w := range websites {
		mediaCount, err := s.repository.CountChildren(ctx, w.ID, ChildKindMedia)
		if err != nil {
			return nil, &WebsiteError{WebsiteID: w.ID, Op: "list", Err: classify(err)}
		}
		carouselCount, err := s.repository.CountChildren(ctx, w.ID, ChildKindCarousel)
		if err != nil {
			return nil, &WebsiteError{WebsiteID: w.ID, Op: "list", Err: classify(err)}
		}
		summaries = append(summaries, &WebsiteSummary{
			Website:       *w,
			MediaCount:    mediaCount,
			CarouselCount: carouselCount,
		})
	}
	return summaries, nil
}

func (s *service) UpdateWebsite(ctx context.Context, req UpdateWebsiteRequest) (*Website, error) {
	var name, about string
	var err error
	if req.Name != nil {
		if name, err = normalizeWebsiteName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.About != nil {
		if about, err = normalizeAbout(*req.About); err != nil {
			return nil, err
		}
	}

	website, err := s.authorizeWebsite(ctx, req.Caller.PrincipalID, req.WebsiteID)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if req.Name != nil {
		website.Name = name
		changed = append(changed, "name")
	}
	if req.About != nil {
		website.About = about
		changed = append(changed, "about")
	}
	website.UpdatedAt = s.now()

	if err := s.repository.UpdateWebsite(ctx, website); err != nil {
		s.logger.Error("failed to update website", "website_id", website.ID, "error", err)
		return nil, &WebsiteError{WebsiteID: website.ID, Op: "update", Err: classify(err)}
	}

	s.recordActivity(ctx, req.Caller, ActionUpdateWebsite, map[string]interface{}{
		"website_id": website.ID,
		"fields":     changed,
	})
	return website, nil
}

// DeleteWebsite removes the website and all of its children in one repository
// call, then deletes every blob the children referenced.
func (s *service) DeleteWebsite(ctx context.Context, caller Caller, websiteID uuid.UUID) error {
	website, err := s.authorizeWebsite(ctx, caller.PrincipalID, websiteID)
	if err != nil {
		return err
	}

	children, err := s.repository.ListChildren(ctx, ChildFilter{WebsiteID: websiteID})
	if err != nil {
		return &WebsiteError{WebsiteID: websiteID, Op: "delete", Err: classify(err)}
	}

	if err := s.repository.DeleteWebsite(ctx, websiteID); err != nil {
		s.logger.Error("failed to delete website", "website_id", websiteID, "error", err)
		return &WebsiteError{WebsiteID: websiteID, Op: "delete", Err: classify(err)}
	}

	// Children created after the listing above lose their rows to the cascade
	// and their blobs to the sweep.
	for _, c := range children {
		s.discardBlob(ctx, c.ObjectKey, "website deleted")
	}

	s.recordActivity(ctx, caller, ActionDeleteWebsite, map[string]interface{}{
		"website_id": website.ID,
		"name":       website.Name,
		"children":   len(children),
	})
	return nil
}

func normalizeWebsiteName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", invalid("name", "name is required")
	}
	if utf8.RuneCountInString(n) > maxWebsiteNameLength {
		return "", invalid("name", fmt.Sprintf("name must be at most %d characters", maxWebsiteNameLength))
	}
	return n, nil
}

func normalizeAbout(about string) (string, error) {
	a := strings.TrimSpace(about)
	if a == "" {
		return "", invalid("about", "about is required")
	}
	if utf8.RuneCountInString(a) > maxWebsiteAboutLength {
		return "", invalid("about", fmt.Sprintf("about must be at most %d characters", maxWebsiteAboutLength))
	}
	return a, nil
}
