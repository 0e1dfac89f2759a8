package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// RegisterRequest is the request body for creating an account
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for signing in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns a session for it
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, badBody(err))
		return
	}

	session, err := s.svc.Register(r.Context(), sitecontent.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("Account registered", "principal_id", session.Principal.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, session)
}

// Login exchanges credentials for a session
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, badBody(err))
		return
	}

	session, err := s.svc.Login(r.Context(), sitecontent.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.JSON(w, r, session)
}

// Me returns the authenticated account
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	principal, err := s.svc.GetPrincipal(r.Context(), claims.PrincipalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"user": principal})
}

// ListActivity returns the caller's most recent activity entries
func (s *Server) ListActivity(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, &sitecontent.ValidationError{Field: "limit", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := s.svc.ListActivity(r.Context(), claims.PrincipalID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, entries)
}

func badBody(err error) error {
	return &sitecontent.ValidationError{Field: "body", Message: "invalid JSON body: " + err.Error()}
}
