package api

import (
	"net/http"
	"strings"

	"github.com/fpang/autopost/internal/store"
	"github.com/rs/zerolog/log"
)

func (s *server) handleTimezone(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.Scheduler.Location())
	respondJSON(w, http.StatusOK, map[string]string{
		"timezone":     s.Scheduler.Location().String(),
		"utc_offset":   now.Format("-0700"),
		"current_time": now.Format("03:04 PM"),
	})
}

func (s *server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Store.LoadConfig(r.Context()).Value)
}

func (s *server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	cfg := store.DefaultScheduleConfig()
	if err := decodeJSON(r, &cfg); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg.FolderID = strings.TrimSpace(cfg.FolderID)

	saved, err := s.Store.SaveConfig(r.Context(), cfg)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.Scheduler.Reschedule(saved); err != nil {
		log.Error().Err(err).Msg("Reschedule after config save failed")
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "config": saved})
}

func (s *server) handlePostedIDs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Store.LoadPosted(r.Context()).Value.Sorted())
}

func (s *server) handleMarkPosted(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.MarkPosted(r.Context(), r.PathValue("id")); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *server) handleUnmarkPosted(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.UnmarkPosted(r.Context(), r.PathValue("id")); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *server) handlePending(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Store.LoadPending(r.Context()).Value)
}

func (s *server) handleApprove(w http.ResponseWriter, r *http.Request) {
	found, err := s.Poster.Approve(r.Context(), r.PathValue("id"))
	if !found && err == nil {
		httpError(w, http.StatusNotFound, "Pending post not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *server) handleReject(w http.ResponseWriter, r *http.Request) {
	found, err := s.Poster.Reject(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		httpError(w, http.StatusNotFound, "Pending post not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Store.LoadHistory(r.Context()).Value)
}

func (s *server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	if !s.Scheduler.TriggerNow() {
		httpError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "Job triggered, check History tab in ~30s",
	})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Status.Report(r.Context(), s.Scheduler.NextRun()))
}
