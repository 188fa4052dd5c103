// Package api is the HTTP surface: schedule management, approvals, manual
// posting, token management, and a thin Drive browser for the UI.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fpang/autopost/internal/caption"
	"github.com/fpang/autopost/internal/instagram"
	"github.com/fpang/autopost/internal/media"
	"github.com/fpang/autopost/internal/metrics"
	"github.com/fpang/autopost/internal/photostore"
	"github.com/fpang/autopost/internal/scheduler"
	"github.com/fpang/autopost/internal/store"
)

// Scheduler is the part of scheduler.Service the API drives.
type Scheduler interface {
	Reschedule(cfg store.ScheduleConfig) error
	TriggerNow() bool
	NextRun() *time.Time
	Location() *time.Location
}

// Poster runs approval actions and manual posts.
type Poster interface {
	Approve(ctx context.Context, id string) (bool, error)
	Reject(ctx context.Context, id string) (bool, error)
	PostNow(ctx context.Context, fileIDs []string, caption string) (scheduler.PostResult, error)
}

// StatusSource builds the pre-flight report.
type StatusSource interface {
	Report(ctx context.Context, nextRun *time.Time) scheduler.Report
}

// TokenService reports on and replaces the publish token.
type TokenService interface {
	Status(ctx context.Context) instagram.TokenStatus
	Exchange(ctx context.Context, shortLived string) (string, error)
}

// PhotoSource lists and downloads Drive photos.
type PhotoSource interface {
	ListPhotos(ctx context.Context, folderID string) ([]photostore.Photo, error)
	DownloadPhoto(ctx context.Context, fileID string) ([]byte, string, error)
}

// CaptionComposer writes captions for the generate endpoint.
type CaptionComposer interface {
	Compose(ctx context.Context, images []caption.Image, tone, date, location string) (string, error)
}

// MetadataExtractor reads date and place for the generate endpoint.
type MetadataExtractor interface {
	Extract(ctx context.Context, data []byte) media.Metadata
}

// Deps wires the handlers. TempDir, when set, is served at /temp/ for
// locally staged images.
type Deps struct {
	Store     *store.Store
	Scheduler Scheduler
	Poster    Poster
	Status    StatusSource
	Tokens    TokenService
	Photos    PhotoSource
	Composer  CaptionComposer
	Extractor MetadataExtractor

	TempDir     string
	CORSOrigins []string
}

type server struct {
	Deps
	compress func([]byte) ([]byte, error)
	now      func() time.Time
}

// NewHandler returns the full HTTP handler with middleware applied.
func NewHandler(d Deps) http.Handler {
	s := &server{Deps: d, compress: media.Compress, now: time.Now}
	return s.handler()
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())
	if s.TempDir != "" {
		mux.Handle("GET /temp/", http.StripPrefix("/temp/", noDirListing(http.FileServer(http.Dir(s.TempDir)))))
	}

	mux.HandleFunc("GET /schedule/timezone", s.handleTimezone)
	mux.HandleFunc("GET /schedule/config", s.handleGetConfig)
	mux.HandleFunc("POST /schedule/config", s.handleSaveConfig)
	mux.HandleFunc("GET /schedule/posted-ids", s.handlePostedIDs)
	mux.HandleFunc("POST /schedule/posted-ids/{id}", s.handleMarkPosted)
	mux.HandleFunc("DELETE /schedule/posted-ids/{id}", s.handleUnmarkPosted)
	mux.HandleFunc("GET /schedule/pending", s.handlePending)
	mux.HandleFunc("POST /schedule/pending/{id}/approve", s.handleApprove)
	mux.HandleFunc("DELETE /schedule/pending/{id}", s.handleReject)
	mux.HandleFunc("GET /schedule/history", s.handleHistory)
	mux.HandleFunc("POST /schedule/run-now", s.handleRunNow)
	mux.HandleFunc("GET /schedule/status", s.handleStatus)

	mux.HandleFunc("POST /instagram/post", s.handleManualPost)
	mux.HandleFunc("GET /instagram/token-status", s.handleTokenStatus)
	mux.HandleFunc("POST /instagram/token-exchange", s.handleTokenExchange)

	mux.HandleFunc("GET /drive/photos", s.handleDrivePhotos)
	mux.HandleFunc("GET /drive/photo/{id}/raw", s.handleDriveRaw)
	mux.HandleFunc("POST /caption/generate", s.handleGenerateCaption)

	return withLogging(withCORS(s.CORSOrigins, metrics.Middleware(mux)))
}
