package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// CreateWebsiteRequest is the request body for creating a website
type CreateWebsiteRequest struct {
	Name  string `json:"name"`
	About string `json:"about"`
}

// UpdateWebsiteRequest is the request body for patching a website.
// Omitted fields keep their value.
type UpdateWebsiteRequest struct {
	Name  *string `json:"name,omitempty"`
	About *string `json:"about,omitempty"`
}

// CreateWebsite creates a website owned by the caller
func (s *Server) CreateWebsite(w http.ResponseWriter, r *http.Request) {
	var req CreateWebsiteRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, badBody(err))
		return
	}

	website, err := s.svc.CreateWebsite(r.Context(), sitecontent.CreateWebsiteRequest{
		Caller: caller(r),
		Name:   req.Name,
		About:  req.About,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("Website created", "website_id", website.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, website)
}

// ListWebsites lists the caller's websites with child counts
func (s *Server) ListWebsites(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.svc.ListWebsites(r.Context(), caller(r).PrincipalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, summaries)
}

// GetWebsite returns one of the caller's websites with all of its children
func (s *Server) GetWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	details, err := s.svc.GetWebsite(r.Context(), caller(r).PrincipalID, websiteID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, details)
}

// UpdateWebsite patches one of the caller's websites
func (s *Server) UpdateWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req UpdateWebsiteRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, badBody(err))
		return
	}

	website, err := s.svc.UpdateWebsite(r.Context(), sitecontent.UpdateWebsiteRequest{
		Caller:    caller(r),
		WebsiteID: websiteID,
		Name:      req.Name,
		About:     req.About,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, website)
}

// DeleteWebsite deletes one of the caller's websites and everything on it
func (s *Server) DeleteWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.svc.DeleteWebsite(r.Context(), caller(r), websiteID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("Website deleted", "website_id", websiteID.String())
	render.JSON(w, r, map[string]string{"message": "Website deleted successfully"})
}

// pathID parses the {id} URL parameter. A malformed id cannot name an
// existing resource, so it answers 404 like any other unknown id.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, sitecontent.ErrNotFoundOrForbidden)
		return uuid.Nil, false
	}
	return id, true
}

// pathKind parses the {kind} URL parameter
func (s *Server) pathKind(w http.ResponseWriter, r *http.Request) (sitecontent.ChildKind, bool) {
	kind := sitecontent.ChildKind(chi.URLParam(r, "kind"))
	if !kind.IsValid() {
		s.writeMessage(w, r, http.StatusNotFound, "route not found")
		return "", false
	}
	return kind, true
}
