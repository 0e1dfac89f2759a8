package sitecontent

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxTitleLength    = 100
	maxSubtitleLength = 200
)

func (s *service) CreateChild(ctx context.Context, req CreateChildRequest) (*Child, error) {
	if !req.Kind.IsValid() {
		return nil, invalid("kind", fmt.Sprintf("unknown kind %q", req.Kind))
	}

	now := s.now()
	child := &Child{
		ID:        uuid.New(),
		WebsiteID: req.WebsiteID,
		Kind:      req.Kind,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if req.Kind == ChildKindCarousel {
		title, err := normalizeTitle(req.Title)
		if err != nil {
			return nil, err
		}
		subtitle, err := normalizeSubtitle(req.Subtitle)
		if err != nil {
			return nil, err
		}
		child.Title = title
		child.Subtitle = subtitle
		if req.Active != nil {
			child.Active = *req.Active
		}
		if req.Order != nil {
			if *req.Order < 0 {
				return nil, invalid("order", "order must not be negative")
			}
			child.Order = *req.Order
		}
	} else if err := rejectCarouselFields(req.Title != "", req.Subtitle, req.Active, req.Order); err != nil {
		return nil, err
	}

	data, _, err := s.readUpload(req.Upload)
	if err != nil {
		return nil, err
	}

	website, err := s.authorizeWebsite(ctx, req.Caller.PrincipalID, req.WebsiteID)
	if err != nil {
		return nil, err
	}

	result, err := s.normalize(ctx, data)
	if err != nil {
		s.logger.Error("failed to normalize image", "website_id", website.ID, "kind", req.Kind, "error", err)
		return nil, &ChildError{ChildID: child.ID, Op: "create", Err: err}
	}

	key := s.objectKey(website.ID, website.OwnerID, child.Kind, req.Upload, result.MimeType)
	if err := s.writeBlob(ctx, key, result); err != nil {
		s.logger.Error("failed to store image", "website_id", website.ID, "object_key", key, "error", err)
		return nil, &ChildError{ChildID: child.ID, Op: "create", Err: err}
	}
	applyBlob(child, key, req.Upload, result)

	if err := s.insertChild(ctx, child, req.Order == nil); err != nil {
		s.discardBlob(ctx, key, "create failed")
		s.logger.Error("failed to create child", "website_id", website.ID, "kind", child.Kind, "error", err)
		return nil, &ChildError{ChildID: child.ID, Op: "create", Err: err}
	}

	details := map[string]interface{}{
		"website_id": website.ID,
		"child_id":   child.ID,
		"object_key": child.ObjectKey,
	}
	if child.Kind == ChildKindCarousel {
		details["title"] = child.Title
		details["order"] = child.Order
	} else {
		details["file_name"] = child.FileName
	}
	s.recordActivity(ctx, req.Caller, childAction(child.Kind, "create"), details)

	s.fillURL(ctx, child)
	return child, nil
}

// insertChild commits the record. Carousel items without an explicit order are
// appended after their siblings while holding the website's order lock.
func (s *service) insertChild(ctx context.Context, child *Child, assignOrder bool) error {
	if child.Kind != ChildKindCarousel || !assignOrder {
		return classify(s.repository.CreateChild(ctx, child))
	}

	unlock, err := s.locker.Lock(ctx, "carousel-order:"+child.WebsiteID.String())
	if err != nil {
		return classify(err)
	}
	defer unlock()

	maxOrder, err := s.repository.MaxChildOrder(ctx, child.WebsiteID, ChildKindCarousel)
	if err != nil {
		return classify(err)
	}
	child.Order = maxOrder + 1
	return classify(s.repository.CreateChild(ctx, child))
}

func (s *service) GetChild(ctx context.Context, principalID, childID uuid.UUID) (*Child, error) {
	child, _, err := s.authorizeChild(ctx, principalID, childID)
	if err != nil {
		return nil, err
	}
	s.fillURL(ctx, child)
	return child, nil
}

// UpdateChild merges the patch into the child. A replacement image is written
// under a new key before the record is updated; the previous blob is deleted
// only after the update commits.
func (s *service) UpdateChild(ctx context.Context, req UpdateChildRequest) (*Child, error) {
	var data []byte
	if req.Upload != nil {
		var err error
		if data, _, err = s.readUpload(req.Upload); err != nil {
			return nil, err
		}
	}

	current, website, err := s.authorizeChild(ctx, req.Caller.PrincipalID, req.ChildID)
	if err != nil {
		return nil, err
	}

	updated := *current
	changed, err := applyPatch(&updated, req)
	if err != nil {
		return nil, err
	}

	var newKey string
	if data != nil {
		result, err := s.normalize(ctx, data)
		if err != nil {
			s.logger.Error("failed to normalize image", "child_id", current.ID, "error", err)
			return nil, &ChildError{ChildID: current.ID, Op: "update", Err: err}
		}
		newKey = s.objectKey(website.ID, website.OwnerID, current.Kind, req.Upload, result.MimeType)
		if err := s.writeBlob(ctx, newKey, result); err != nil {
			s.logger.Error("failed to store image", "child_id", current.ID, "object_key", newKey, "error", err)
			return nil, &ChildError{ChildID: current.ID, Op: "update", Err: err}
		}
		applyBlob(&updated, newKey, req.Upload, result)
		changed = append(changed, "image")
	}
	updated.UpdatedAt = s.now()

	if err := s.repository.UpdateChild(ctx, &updated); err != nil {
		s.discardBlob(ctx, newKey, "update failed")
		s.logger.Error("failed to update child", "child_id", current.ID, "error", err)
		return nil, &ChildError{ChildID: current.ID, Op: "update", Err: classify(err)}
	}
	if newKey != "" {
		s.discardBlob(ctx, current.ObjectKey, "replaced")
	}

	s.recordActivity(ctx, req.Caller, childAction(updated.Kind, "update"), map[string]interface{}{
		"website_id": website.ID,
		"child_id":   updated.ID,
		"fields":     changed,
	})

	s.fillURL(ctx, &updated)
	return &updated, nil
}

// DeleteChild removes the record and then its blob. A crash between the two
// leaves an orphan blob for the sweep, never a record pointing at nothing.
func (s *service) DeleteChild(ctx context.Context, caller Caller, childID uuid.UUID) error {
	child, website, err := s.authorizeChild(ctx, caller.PrincipalID, childID)
	if err != nil {
		return err
	}

	if err := s.repository.DeleteChild(ctx, child.ID); err != nil {
		s.logger.Error("failed to delete child", "child_id", child.ID, "error", err)
		return &ChildError{ChildID: child.ID, Op: "delete", Err: classify(err)}
	}
	s.discardBlob(ctx, child.ObjectKey, "deleted")

	s.recordActivity(ctx, caller, childAction(child.Kind, "delete"), map[string]interface{}{
		"website_id": website.ID,
		"child_id":   child.ID,
		"object_key": child.ObjectKey,
	})
	return nil
}

// ReorderChildren applies order assignments to the website's carousel items.
// Assignments naming a child that is not a carousel item of the website are
// ignored; the call still succeeds. Each assignment is a single update, so a
// failure part way leaves the earlier assignments applied.
func (s *service) ReorderChildren(ctx context.Context, req ReorderChildrenRequest) error {
	if len(req.Assignments) == 0 {
		return invalid("items", "at least one assignment is required")
	}
	for _, a := range req.Assignments {
		if a.ChildID == uuid.Nil {
			return invalid("id", "every assignment needs an id")
		}
		if a.Order < 0 {
			return invalid("order", "order must not be negative")
		}
	}

	website, err := s.authorizeWebsite(ctx, req.Caller.PrincipalID, req.WebsiteID)
	if err != nil {
		return err
	}

	applied := 0
	var ignored []uuid.UUID
	now := s.now()
	for _, a := range req.Assignments {
		ok, err := s.repository.SetChildOrder(ctx, website.ID, a.ChildID, a.Order, now)
		if err != nil {
			s.logger.Error("failed to reorder child", "website_id", website.ID, "child_id", a.ChildID, "error", err)
			return &WebsiteError{WebsiteID: website.ID, Op: "reorder", Err: classify(err)}
		}
		if !ok {
			ignored = append(ignored, a.ChildID)
			continue
		}
		applied++
	}
	if len(ignored) > 0 {
		s.logger.Debug("ignored reorder assignments", "website_id", website.ID, "child_ids", ignored)
	}

	s.recordActivity(ctx, req.Caller, ActionReorderCarousel, map[string]interface{}{
		"website_id": website.ID,
		"applied":    applied,
		"ignored":    len(ignored),
	})
	return nil
}

// ListChildrenByParent runs a fresh query on every call. Carousel items come
// back by order ascending and media items newest first.
func (s *service) ListChildrenByParent(ctx context.Context, req ListChildrenRequest) ([]*Child, error) {
	if !req.Kind.IsValid() {
		return nil, invalid("kind", fmt.Sprintf("unknown kind %q", req.Kind))
	}

	filter := ChildFilter{WebsiteID: req.WebsiteID, Kind: req.Kind}
	if req.OwnerScoped {
		if _, err := s.authorizeWebsite(ctx, req.PrincipalID, req.WebsiteID); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.repository.GetWebsite(ctx, req.WebsiteID); err != nil {
			return nil, &WebsiteError{WebsiteID: req.WebsiteID, Op: "list", Err: classify(err)}
		}
		filter.ActiveOnly = true
	}

	children, err := s.repository.ListChildren(ctx, filter)
	if err != nil {
		return nil, &WebsiteError{WebsiteID: req.WebsiteID, Op: "list", Err: classify(err)}
	}
	if !req.OwnerScoped {
		public := children[:0]
		for _, c := range children {
			if c.IsPublic() {
				public = append(public, c)
			}
		}
		children = public
	}
	s.fillURLs(ctx, children)
	return children, nil
}

// OpenBlob streams a stored image for the uploads route.
func (s *service) OpenBlob(ctx context.Context, objectKey string) (io.ReadCloser, *ObjectMeta, error) {
	if !validObjectKey(objectKey) {
		return nil, nil, &StorageError{Key: objectKey, Op: "open", Err: ErrNotFoundOrForbidden}
	}

	meta, err := s.blobStore.GetObjectMeta(ctx, objectKey)
	if err != nil {
		return nil, nil, &StorageError{Key: objectKey, Op: "open", Err: classify(err)}
	}
	rc, err := s.blobStore.Download(ctx, objectKey)
	if err != nil {
		return nil, nil, &StorageError{Key: objectKey, Op: "open", Err: classify(err)}
	}
	return rc, meta, nil
}

// applyPatch merges non-nil fields into child and returns the names of the
// fields that were supplied.
func applyPatch(child *Child, req UpdateChildRequest) ([]string, error) {
	if child.Kind != ChildKindCarousel {
		if err := rejectCarouselFields(req.Title != nil, req.Subtitle, req.Active, req.Order); err != nil {
			return nil, err
		}
		return []string{}, nil
	}

	changed := []string{}
	if req.Title != nil {
		title, err := normalizeTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		child.Title = title
		changed = append(changed, "title")
	}
	if req.Subtitle != nil {
		subtitle, err := normalizeSubtitle(req.Subtitle)
		if err != nil {
			return nil, err
		}
		child.Subtitle = subtitle
		changed = append(changed, "subtitle")
	}
	if req.Active != nil {
		child.Active = *req.Active
		changed = append(changed, "active")
	}
	if req.Order != nil {
		if *req.Order < 0 {
			return nil, invalid("order", "order must not be negative")
		}
		child.Order = *req.Order
		changed = append(changed, "order")
	}
	return changed, nil
}

func applyBlob(child *Child, key string, upload *Upload, result *TransformResult) {
	child.ObjectKey = key
	child.Width = result.Width
	child.Height = result.Height
	child.SizeBytes = int64(len(result.Data))
	child.MimeType = result.MimeType
	child.FileName = cleanFileName(upload.FileName)
}

func rejectCarouselFields(hasTitle bool, subtitle *string, active *bool, order *int) error {
	switch {
	case hasTitle:
		return invalid("title", "only carousel items have a title")
	case subtitle != nil:
		return invalid("subtitle", "only carousel items have a subtitle")
	case active != nil:
		return invalid("active", "only carousel items have an active flag")
	case order != nil:
		return invalid("order", "only carousel items have an order")
	}
	return nil
}

func normalizeTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", invalid("title", "title is required")
	}
	if utf8.RuneCountInString(t) > maxTitleLength {
		return "", invalid("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	return t, nil
}

// normalizeSubtitle trims the subtitle; an empty result clears it.
func normalizeSubtitle(subtitle *string) (*string, error) {
	if subtitle == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*subtitle)
	if utf8.RuneCountInString(t) > maxSubtitleLength {
		return nil, invalid("subtitle", fmt.Sprintf("subtitle must be at most %d characters", maxSubtitleLength))
	}
	if t == "" {
		return nil, nil
	}
	return &t, nil
}

// cleanFileName keeps only the last path element of a client supplied name.
func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
