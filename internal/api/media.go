package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/pkg/blob"
)

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if err := blob.ValidatePath(path); err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	rc, contentType, err := s.media.Open(r.Context(), path)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		observe.Logger(r.Context()).Error("open media", "path", path, "err", err)
		writeError(w, http.StatusBadGateway, "failed to read media")
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		observe.Logger(r.Context()).Debug("stream media", "path", path, "err", err)
	}
}
