package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// ErrorResponse is the envelope every failed request is rendered with
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// statusFor maps the service error taxonomy to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, sitecontent.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, sitecontent.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, sitecontent.ErrNotFoundOrForbidden):
		return http.StatusNotFound
	case errors.Is(err, sitecontent.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, sitecontent.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with the status its class maps to. Server-side
// failures are logged and, in production, rendered without their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{}

	var ve *sitecontent.ValidationError
	switch {
	case errors.As(err, &ve):
		resp.Error = ve.Error()
		if ve.Field != "" {
			resp.Details = map[string]string{"field": ve.Field, "message": ve.Message}
		}
	case status == http.StatusNotFound:
		resp.Error = sitecontent.ErrNotFoundOrForbidden.Error()
	case status == http.StatusUnauthorized:
		resp.Error = publicMessage(err, sitecontent.ErrUnauthenticated)
	case status == http.StatusConflict:
		resp.Error = sitecontent.ErrConflict.Error()
	case status == http.StatusGatewayTimeout:
		resp.Error = sitecontent.ErrTimeout.Error()
	default:
		resp.Error = "internal server error"
		if errors.Is(err, sitecontent.ErrProcessingFailed) {
			resp.Error = sitecontent.ErrProcessingFailed.Error()
		}
		if !s.production {
			resp.Details = err.Error()
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// publicMessage returns the reason attached to a sentinel, e.g. "invalid
// credentials", when err wraps the sentinel directly.
func publicMessage(err, sentinel error) string {
	if errors.Unwrap(err) == sentinel {
		return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	}
	return sentinel.Error()
}

func (s *Server) writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}
