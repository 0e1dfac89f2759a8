package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// UpdateChildRequest is the JSON body for patching a child without a new image
type UpdateChildRequest struct {
	Title    *string `json:"title,omitempty"`
	Subtitle *string `json:"subtitle,omitempty"`
	Active   *bool   `json:"active,omitempty"`
	Order    *int    `json:"order,omitempty"`
}

// ReorderRequest is the body of a carousel reorder: a bare array of
// {id, order} pairs, or the same array under "items"
type ReorderRequest struct {
	Items []sitecontent.OrderAssignment `json:"items"`
}

// childForm holds the fields of a multipart create or update
type childForm struct {
	title    *string
	subtitle *string
	active   *bool
	order    *int
	upload   *sitecontent.Upload

	multipart *multipart.Form
}

// CreateChild attaches a media or carousel item to one of the caller's websites
func (s *Server) CreateChild(w http.ResponseWriter, r *http.Request) {
	websiteID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	kind, ok := s.pathKind(w, r)
	if !ok {
		return
	}

	form, err := s.parseChildForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer form.close()

	req := sitecontent.CreateChildRequest{
		Caller:    caller(r),
		WebsiteID: websiteID,
		Kind:      kind,
		Subtitle:  form.subtitle,
		Active:    form.active,
		Order:     form.order,
		Upload:    form.upload,
	}
	if form.title != nil {
		req.Title = *form.title
	}

	child, err := s.svc.CreateChild(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("Child created", "child_id", child.ID.String(), "kind", string(kind), "website_id", websiteID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, child)
}

// ListPublicChildren is the anonymous read path: active items only, public fields only
func (s *Server) ListPublicChildren(w http.ResponseWriter, r *http.Request) {
	websiteID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	kind, ok := s.pathKind(w, r)
	if !ok {
		return
	}

	children, err := s.svc.ListChildrenByParent(r.Context(), sitecontent.ListChildrenRequest{
		WebsiteID: websiteID,
		Kind:      kind,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	public := make([]sitecontent.PublicChild, 0, len(children))
	for _, c := range children {
		public = append(public, c.Public())
	}
	render.JSON(w, r, public)
}

// ListAllChildren returns every child of one of the caller's websites
func (s *Server) ListAllChildren(w http.ResponseWriter, r *http.Request) {
	websiteID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	kind, ok := s.pathKind(w, r)
	if !ok {
		return
	}

	children, err := s.svc.ListChildrenByParent(r.Context(), sitecontent.ListChildrenRequest{
		PrincipalID: caller(r).PrincipalID,
		WebsiteID:   websiteID,
		Kind:        kind,
		OwnerScoped: true,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if children == nil {
		children = []*sitecontent.Child{}
	}
	render.JSON(w, r, children)
}

// ReorderChildren applies a batch of carousel order assignments
func (s *Server) ReorderChildren(w http.ResponseWriter, r *http.Request) {
	websiteID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	kind, ok := s.pathKind(w, r)
	if !ok {
		return
	}
	if kind != sitecontent.ChildKindCarousel {
		s.writeError(w, r, &sitecontent.ValidationError{Field: "kind", Message: "only carousel items can be reordered"})
		return
	}

	items, err := decodeAssignments(r.Body)
	if err != nil {
		s.writeError(w, r, badBody(err))
		return
	}

	if err := s.svc.ReorderChildren(r.Context(), sitecontent.ReorderChildrenRequest{
		Caller:      caller(r),
		WebsiteID:   websiteID,
		Assignments: items,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"message": "Carousel reordered successfully"})
}

// GetChild returns one child of the given kind owned by the caller
func (s *Server) GetChild(kind sitecontent.ChildKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		child, ok := s.ownedChild(w, r, kind)
		if !ok {
			return
		}
		render.JSON(w, r, child)
	}
}

// UpdateChild patches a child from a JSON body, or from a multipart form
// when a replacement image is sent
func (s *Server) UpdateChild(kind sitecontent.ChildKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := s.ownedChild(w, r, kind)
		if !ok {
			return
		}

		req := sitecontent.UpdateChildRequest{Caller: caller(r), ChildID: current.ID}
		if isMultipart(r) {
			form, err := s.parseChildForm(w, r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			defer form.close()
			req.Title, req.Subtitle, req.Active, req.Order, req.Upload = form.title, form.subtitle, form.active, form.order, form.upload
		} else {
			var body UpdateChildRequest
			if err := render.DecodeJSON(r.Body, &body); err != nil {
				s.writeError(w, r, badBody(err))
				return
			}
			req.Title, req.Subtitle, req.Active, req.Order = body.Title, body.Subtitle, body.Active, body.Order
		}

		child, err := s.svc.UpdateChild(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		render.JSON(w, r, child)
	}
}

// DeleteChild removes a child and its image
func (s *Server) DeleteChild(kind sitecontent.ChildKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		child, ok := s.ownedChild(w, r, kind)
		if !ok {
			return
		}

		if err := s.svc.DeleteChild(r.Context(), caller(r), child.ID); err != nil {
			s.writeError(w, r, err)
			return
		}

		s.logger.Info("Child deleted", "child_id", child.ID.String(), "kind", string(kind))
		render.JSON(w, r, map[string]string{"message": "Deleted successfully"})
	}
}

// ownedChild loads the {id} child for the caller. A child of another kind
// is reported as missing.
func (s *Server) ownedChild(w http.ResponseWriter, r *http.Request, kind sitecontent.ChildKind) (*sitecontent.Child, bool) {
	childID, ok := s.pathID(w, r)
	if !ok {
		return nil, false
	}

	child, err := s.svc.GetChild(r.Context(), caller(r).PrincipalID, childID)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if child.Kind != kind {
		s.writeError(w, r, sitecontent.ErrNotFoundOrForbidden)
		return nil, false
	}
	return child, true
}

// parseChildForm reads a multipart form with an optional "image" file and
// the carousel text fields
func (s *Server) parseChildForm(w http.ResponseWriter, r *http.Request) (*childForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
			return nil, &sitecontent.ValidationError{Field: "image", Message: "file too large"}
		case errors.Is(err, http.ErrNotMultipart):
			return nil, &sitecontent.ValidationError{Field: "body", Message: "expected multipart/form-data"}
		default:
			return nil, &sitecontent.ValidationError{Field: "body", Message: "malformed multipart form"}
		}
	}

	form := &childForm{multipart: r.MultipartForm}
	values := r.MultipartForm.Value
	if v, ok := values["title"]; ok && len(v) > 0 {
		form.title = &v[0]
	}
	if v, ok := values["subtitle"]; ok && len(v) > 0 {
		form.subtitle = &v[0]
	}
	if v, ok := values["active"]; ok && len(v) > 0 && v[0] != "" {
		active, err := strconv.ParseBool(v[0])
		if err != nil {
			form.close()
			return nil, &sitecontent.ValidationError{Field: "active", Message: "active must be true or false"}
		}
		form.active = &active
	}
	if v, ok := values["order"]; ok && len(v) > 0 && v[0] != "" {
		order, err := strconv.Atoi(strings.TrimSpace(v[0]))
		if err != nil {
			form.close()
			return nil, &sitecontent.ValidationError{Field: "order", Message: "order must be an integer"}
		}
		form.order = &order
	}

	files := r.MultipartForm.File["image"]
	if len(files) > 0 {
		upload, err := openUpload(files[0])
		if err != nil {
			form.close()
			return nil, err
		}
		form.upload = upload
	}
	return form, nil
}

func openUpload(header *multipart.FileHeader) (*sitecontent.Upload, error) {
	file, err := header.Open()
	if err != nil {
		return nil, &sitecontent.ValidationError{Field: "image", Message: "failed to read upload"}
	}
	return &sitecontent.Upload{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Reader:   file,
	}, nil
}

// close releases the uploaded file and the multipart temp files
func (f *childForm) close() {
	if f.upload != nil {
		if c, ok := f.upload.Reader.(io.Closer); ok {
			c.Close()
		}
	}
	if f.multipart != nil {
		f.multipart.RemoveAll()
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// decodeAssignments accepts either a bare array or {"items": [...]}
func decodeAssignments(body io.Reader) ([]sitecontent.OrderAssignment, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var items []sitecontent.OrderAssignment
		if err := render.DecodeJSON(strings.NewReader(trimmed), &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var req ReorderRequest
	if err := render.DecodeJSON(strings.NewReader(trimmed), &req); err != nil {
		return nil, err
	}
	return req.Items, nil
}
