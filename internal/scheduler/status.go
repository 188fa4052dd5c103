package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fpang/autopost/internal/instagram"
	"github.com/fpang/autopost/internal/photostore"
	"github.com/fpang/autopost/internal/publish"
)

// Check is one pre-flight item.
type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// PoolPhoto is an unposted photo the next tick may pick from.
type PoolPhoto struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Report is the schedule status view.
type Report struct {
	NextRun      *time.Time  `json:"next_run"`
	Checks       []Check     `json:"checks"`
	AllOK        bool        `json:"all_ok"`
	UpcomingPool []PoolPhoto `json:"upcoming_pool"`
}

// TokenReporter summarizes the publish token.
type TokenReporter interface {
	Status(ctx context.Context) instagram.TokenStatus
}

// HealthProber checks that a public base URL reaches this process.
type HealthProber interface {
	ProbeHealth(ctx context.Context, base string) error
}

// FolderLookup resolves a folder id to its name.
type FolderLookup interface {
	FolderInfo(ctx context.Context, folderID string) (photostore.Folder, error)
}

// StatusReporter builds pre-flight reports.
type StatusReporter struct {
	ctrl    *Controller
	tokens  TokenReporter
	prober  HealthProber
	stager  publish.Stager
	folders FolderLookup
}

// NewStatusReporter creates a StatusReporter. folders may be nil.
func NewStatusReporter(ctrl *Controller, tokens TokenReporter, prober HealthProber, stager publish.Stager, folders FolderLookup) *StatusReporter {
	return &StatusReporter{ctrl: ctrl, tokens: tokens, prober: prober, stager: stager, folders: folders}
}

// Report runs every check. nextRun comes from the Service.
func (r *StatusReporter) Report(ctx context.Context, nextRun *time.Time) Report {
	cfg := r.ctrl.store.LoadConfig(ctx).Value
	rep := Report{NextRun: nextRun, UpcomingPool: []PoolPhoto{}}

	if cfg.Enabled {
		rep.Checks = append(rep.Checks, Check{Name: "Auto-schedule", OK: true, Message: "Enabled"})
	} else {
		rep.Checks = append(rep.Checks, Check{Name: "Auto-schedule", Message: "Disabled, turn on in the Schedule tab"})
	}

	folderID := strings.TrimSpace(cfg.FolderID)
	rep.Checks = append(rep.Checks, r.folderCheck(ctx, folderID))

	fresh, pool := r.freshCheck(ctx, folderID)
	rep.Checks = append(rep.Checks, fresh)
	rep.UpcomingPool = append(rep.UpcomingPool, pool...)

	rep.Checks = append(rep.Checks, r.publicURLCheck(ctx), r.tokenCheck(ctx))

	rep.AllOK = true
	for _, c := range rep.Checks {
		rep.AllOK = rep.AllOK && c.OK
	}
	return rep
}

func (r *StatusReporter) folderCheck(ctx context.Context, folderID string) Check {
	c := Check{Name: "Drive folder"}
	if folderID == "" {
		c.Message = "No folder ID set, add one in the Schedule tab"
		return c
	}
	c.OK = true
	c.Message = "Folder configured"
	if r.folders != nil {
		if f, err := r.folders.FolderInfo(ctx, folderID); err == nil && f.Name != "" {
			c.Message = fmt.Sprintf("Folder configured (%s)", f.Name)
		}
	}
	return c
}

// freshCheck counts unposted photos. No format filter is applied here, so
// the pool can be larger than what a multi-mode tick would consider.
func (r *StatusReporter) freshCheck(ctx context.Context, folderID string) (Check, []PoolPhoto) {
	c := Check{Name: "Fresh photos"}
	if folderID == "" {
		c.Message = "Set a folder first"
		return c, nil
	}
	photos, err := r.ctrl.photos.ListPhotos(ctx, folderID)
	if err != nil {
		c.Message = "Drive error: " + err.Error()
		return c, nil
	}
	posted := r.ctrl.store.LoadPosted(ctx).Value

	var pool []PoolPhoto
	for _, p := range photos {
		if !posted.Has(p.ID) {
			pool = append(pool, PoolPhoto{ID: p.ID, Name: p.Name})
		}
	}
	if len(pool) == 0 {
		c.Message = "All photos already posted, unmark some in the Manual tab"
		return c, nil
	}
	c.OK = true
	c.Message = fmt.Sprintf("%d unposted %s available", len(pool), plural(len(pool), "photo"))
	return c, pool
}

func (r *StatusReporter) publicURLCheck(ctx context.Context) Check {
	c := Check{Name: "Public image URL"}
	if r.stager == nil {
		c.Message = "No image staging configured"
		return c
	}

	based, ok := r.stager.(interface{ BaseURL() string })
	if !ok {
		if err := r.stager.Check(); err != nil {
			c.Message = err.Error()
			return c
		}
		c.OK = true
		c.Message = "Images staged to object storage"
		return c
	}

	base := strings.TrimRight(based.BaseURL(), "/")
	if err := r.stager.Check(); err != nil {
		if errors.Is(err, publish.ErrPublicURL) {
			c.Message = "PUBLIC_BASE_URL not set or points to localhost, Instagram can't fetch images"
		} else {
			c.Message = err.Error()
		}
		return c
	}
	if r.prober == nil {
		c.OK = true
		c.Message = base
		return c
	}
	if err := r.prober.ProbeHealth(ctx, base); err != nil {
		c.Message = fmt.Sprintf("Tunnel unreachable (%s), restart the tunnel and update PUBLIC_BASE_URL", base)
		return c
	}
	c.OK = true
	c.Message = base
	return c
}

func (r *StatusReporter) tokenCheck(ctx context.Context) Check {
	c := Check{Name: "Instagram token"}
	if r.tokens == nil {
		c.Message = "No token manager configured"
		return c
	}
	ts := r.tokens.Status(ctx)
	c.OK = ts.Valid
	switch {
	case ts.Status == "unknown" && ts.Valid:
		c.Message = "Valid (expiry unknown, tracked after next use)"
	case ts.Status == "unknown":
		c.Message = "No token set, exchange one in the Manual tab"
	case ts.Valid && ts.DaysLeft != nil:
		days := "days"
		if *ts.DaysLeft == 1 {
			days = "day"
		}
		c.Message = fmt.Sprintf("Valid, %g %s left", *ts.DaysLeft, days)
	case ts.Valid:
		c.Message = "Valid"
	default:
		c.Message = "Expired, exchange a new token in the Manual tab"
	}
	return c
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
