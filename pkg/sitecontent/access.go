package sitecontent

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// authorizeWebsite is the single ownership predicate used by every website
// and child operation. A missing website and a website owned by someone else
// produce the same error.
func (s *service) authorizeWebsite(ctx context.Context, principalID, websiteID uuid.UUID) (*Website, error) {
	if principalID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	website, err := s.repository.GetWebsite(ctx, websiteID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &WebsiteError{WebsiteID: websiteID, Op: "authorize", Err: ErrNotFoundOrForbidden}
		}
		return nil, &WebsiteError{WebsiteID: websiteID, Op: "authorize", Err: classify(err)}
	}
	if website.OwnerID != principalID {
		return nil, &WebsiteError{WebsiteID: websiteID, Op: "authorize", Err: ErrNotFoundOrForbidden}
	}
	return website, nil
}

// authorizeChild loads a child and checks that principalID owns its website.
func (s *service) authorizeChild(ctx context.Context, principalID, childID uuid.UUID) (*Child, *Website, error) {
	if principalID == uuid.Nil {
		return nil, nil, ErrUnauthenticated
	}

	child, err := s.repository.GetChild(ctx, childID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, &ChildError{ChildID: childID, Op: "authorize", Err: ErrNotFoundOrForbidden}
		}
		return nil, nil, &ChildError{ChildID: childID, Op: "authorize", Err: classify(err)}
	}

	website, err := s.authorizeWebsite(ctx, principalID, child.WebsiteID)
	if err != nil {
		if errors.Is(err, ErrNotFoundOrForbidden) {
			return nil, nil, &ChildError{ChildID: childID, Op: "authorize", Err: ErrNotFoundOrForbidden}
		}
		return nil, nil, err
	}
	return child, website, nil
}
