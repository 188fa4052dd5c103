package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fpang/autopost/internal/publish"
	"github.com/rs/zerolog/log"
)

type manualPostRequest struct {
	FileIDs []string `json:"file_ids"`
	Caption string   `json:"caption"`
}

func (s *server) handleManualPost(w http.ResponseWriter, r *http.Request) {
	var req manualPostRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := publish.CheckBatch(len(req.FileIDs)); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.Poster.PostNow(r.Context(), req.FileIDs, req.Caption)
	if err != nil {
		log.Error().Err(err).Int("photoCount", len(req.FileIDs)).Msg("Manual post failed")
		httpError(w, publishErrorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"media_id": res.MediaID,
		"type":     res.Type,
	})
}

// publishErrorStatus maps configuration and reachability problems to 400
// so the UI can tell them apart from platform failures.
func publishErrorStatus(err error) int {
	var probe *publish.ProbeError
	switch {
	case errors.Is(err, publish.ErrBatchSize), errors.Is(err, publish.ErrPublicURL), errors.As(err, &probe):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *server) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Tokens.Status(r.Context()))
}

type tokenExchangeRequest struct {
	ShortLivedToken string `json:"short_lived_token"`
}

func (s *server) handleTokenExchange(w http.ResponseWriter, r *http.Request) {
	var req tokenExchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	short := strings.TrimSpace(req.ShortLivedToken)
	if short == "" {
		httpError(w, http.StatusBadRequest, "short_lived_token is required")
		return
	}

	token, err := s.Tokens.Exchange(r.Context(), short)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	st := s.Tokens.Status(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"days_left":     st.DaysLeft,
		"token_preview": preview(token),
	})
}

func preview(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "…"
}
