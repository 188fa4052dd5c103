package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fpang/autopost/internal/caption"
	"github.com/fpang/autopost/internal/photostore"
)

func (s *server) handleDrivePhotos(w http.ResponseWriter, r *http.Request) {
	folderID := strings.TrimSpace(r.URL.Query().Get("folder_id"))
	if folderID == "" {
		httpError(w, http.StatusBadRequest, "folder_id is required")
		return
	}
	photos, err := s.Photos.ListPhotos(r.Context(), folderID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if photos == nil {
		photos = []photostore.Photo{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

func (s *server) handleDriveRaw(w http.ResponseWriter, r *http.Request) {
	data, mimeType, err := s.Photos.DownloadPhoto(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type generateRequest struct {
	FileID string `json:"file_id"`
	Tone   string `json:"tone"`
}

func (s *server) handleGenerateCaption(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FileID == "" {
		httpError(w, http.StatusBadRequest, "file_id is required")
		return
	}
	if req.Tone == "" {
		req.Tone = caption.DefaultTone
	}

	ctx := r.Context()
	data, _, err := s.Photos.DownloadPhoto(ctx, req.FileID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	meta := s.Extractor.Extract(ctx, data)
	jpeg, err := s.compress(data)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := s.Composer.Compose(ctx, []caption.Image{{Data: jpeg, MimeType: "image/jpeg"}}, req.Tone, meta.Date, meta.LocationName)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, caption.ErrNoBackend) {
			status = http.StatusBadRequest
		}
		httpError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"caption": text})
}
