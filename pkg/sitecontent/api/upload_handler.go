package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ServeUpload streams a stored image by object key
func (s *Server) ServeUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	rc, meta, err := s.svc.OpenBlob(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	h := w.Header()
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	if meta.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if meta.ETag != "" {
		h.Set("ETag", meta.ETag)
	}
	h.Set("Cache-Control", "public, max-age=86400")

	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("upload stream interrupted", "object_key", key, "error", err)
	}
}
