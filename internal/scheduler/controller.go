// Package scheduler runs the recurring posting job: it picks unposted
// photos, groups them by place, captions them, and either publishes or
// queues the post for approval. It also owns the approval workflow, the
// pre-flight status report, and the cron service that triggers ticks.
package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/fpang/autopost/internal/caption"
	"github.com/fpang/autopost/internal/ids"
	"github.com/fpang/autopost/internal/media"
	"github.com/fpang/autopost/internal/metrics"
	"github.com/fpang/autopost/internal/photostore"
	"github.com/fpang/autopost/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxPerPost caps how many photos one post takes.
	MaxPerPost = 10

	downloadConcurrency = 4
)

// PhotoStore is the photo source the job reads from.
type PhotoStore interface {
	ListPhotos(ctx context.Context, folderID string) ([]photostore.Photo, error)
	DownloadPhoto(ctx context.Context, fileID string) ([]byte, string, error)
	DownloadPhotoHeader(ctx context.Context, fileID string, size int) ([]byte, error)
}

// MetadataExtractor reads date and place from image bytes.
type MetadataExtractor interface {
	Extract(ctx context.Context, data []byte) media.Metadata
	ExtractHeader(ctx context.Context, header []byte) media.Metadata
}

// CaptionComposer writes a caption for prepared images.
type CaptionComposer interface {
	Compose(ctx context.Context, images []caption.Image, tone, date, location string) (string, error)
}

// Publisher publishes a set of photos with a caption.
type Publisher interface {
	Publish(ctx context.Context, fileIDs []string, caption, locationID string) (string, error)
}

// PlaceSearcher maps coordinates to a platform location id ("" for none).
type PlaceSearcher interface {
	SearchLocation(ctx context.Context, lat, lng float64) string
}

// Controller runs ticks and approval actions against the durable store.
type Controller struct {
	store     *store.Store
	photos    PhotoStore
	extractor MetadataExtractor
	composer  CaptionComposer
	publisher Publisher
	places    PlaceSearcher

	compress func([]byte) ([]byte, error)
	rng      *rand.Rand
	now      func() time.Time

	// running is held for the whole of Run; a second Run returns OutcomeBusy.
	running sync.Mutex
}

// Deps are the collaborators of a Controller. Places may be nil.
type Deps struct {
	Store     *store.Store
	Photos    PhotoStore
	Extractor MetadataExtractor
	Composer  CaptionComposer
	Publisher Publisher
	Places    PlaceSearcher
}

// NewController creates a Controller.
func NewController(d Deps) *Controller {
	return &Controller{
		store:     d.Store,
		photos:    d.Photos,
		extractor: d.Extractor,
		composer:  d.Composer,
		publisher: d.Publisher,
		places:    d.Places,
		compress:  media.Compress,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		now:       time.Now,
	}
}

// Store exposes the durable store for read-only HTTP views.
func (c *Controller) Store() *store.Store { return c.store }

// Run executes one scheduled tick.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	if !c.running.TryLock() {
		log.Warn().Msg("Scheduler: a tick is already running, skipping")
		metrics.JobRuns.WithLabelValues(OutcomeBusy.String()).Inc()
		return OutcomeBusy, nil
	}
	defer c.running.Unlock()

	start := time.Now()
	outcome, err := c.run(ctx)

	metrics.JobRuns.WithLabelValues(outcome.String()).Inc()
	metrics.JobDuration.Observe(time.Since(start).Seconds())

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("outcome", outcome.String()).Dur("duration", time.Since(start)).Msg("Scheduler tick finished")
	return outcome, err
}

func (c *Controller) run(ctx context.Context) (Outcome, error) {
	cfg := c.store.LoadConfig(ctx).Value
	if !cfg.Enabled {
		log.Info().Msg("Scheduler: scheduling is disabled, skipping")
		return OutcomeDisabled, nil
	}

	folderID := strings.TrimSpace(cfg.FolderID)
	if folderID == "" {
		return OutcomeNoFolder, ErrNoFolder
	}

	photos, err := c.photos.ListPhotos(ctx, folderID)
	if err != nil {
		return OutcomeListFailed, fmt.Errorf("list photos: %w", err)
	}

	selected := c.selectPhotos(ctx, cfg, photos)
	if len(selected) == 0 {
		log.Warn().Int("listed", len(photos)).Str("folderId", folderID).Msg("Scheduler: no unposted photos, skipping")
		return OutcomeNoCandidates, nil
	}

	fileIDs := make([]string, len(selected))
	fileNames := make([]string, len(selected))
	for i, p := range selected {
		fileIDs[i] = p.ID
		fileNames[i] = p.Name
		if fileNames[i] == "" {
			fileNames[i] = p.ID
		}
	}

	text, locationID, err := c.compose(ctx, cfg, fileIDs)
	if err != nil {
		if cfg.Mode != store.ModeSingle {
			return OutcomeComposeFailed, err
		}
		log.Warn().Err(err).Msg("Scheduler: caption failed, using default caption")
		text = cfg.DefaultCaption
	}

	if !cfg.RequireApproval {
		mediaID, err := c.publisher.Publish(ctx, fileIDs, text, locationID)
		if err != nil {
			c.recordAttempt(ctx, fileIDs, fileNames, text, store.SourceScheduled, "", err)
			return OutcomePublishFailed, fmt.Errorf("publish: %w", err)
		}
		if err := c.store.MarkPosted(ctx, fileIDs...); err != nil {
			log.Error().Err(err).Strs("fileIds", fileIDs).Msg("Failed to record posted ids")
		}
		c.recordAttempt(ctx, fileIDs, fileNames, text, store.SourceScheduled, mediaID, nil)
		log.Info().Int("photoCount", len(fileIDs)).Strs("fileNames", fileNames).Str("mediaId", mediaID).Msg("Scheduler: auto-posted")
		return OutcomePublished, nil
	}

	post := store.PendingPost{
		ID:         ids.PendingPostID(),
		FileIDs:    fileIDs,
		FileNames:  fileNames,
		Caption:    text,
		LocationID: locationID,
		CreatedAt:  c.now().UTC(),
	}
	if err := c.store.AppendPending(ctx, post); err != nil {
		return OutcomeQueueFailed, fmt.Errorf("queue pending post: %w", err)
	}
	// Burn the ids now so the same photos are not queued again before review.
	if err := c.store.MarkPosted(ctx, fileIDs...); err != nil {
		log.Error().Err(err).Strs("fileIds", fileIDs).Msg("Failed to record posted ids")
	}
	metrics.PendingQueued.Inc()
	log.Info().Int("photoCount", len(fileIDs)).Str("pendingId", post.ID).Msg("Scheduler: queued for approval")
	return OutcomeQueued, nil
}

// selectPhotos applies the ledger, format filter, location grouping, and
// sampling. It returns nil when nothing is eligible.
func (c *Controller) selectPhotos(ctx context.Context, cfg store.ScheduleConfig, photos []photostore.Photo) []photostore.Photo {
	posted := c.store.LoadPosted(ctx).Value

	keep := media.IsPublishable
	if cfg.Mode == store.ModeSingle {
		keep = media.CanTranscode
	}

	var unused []photostore.Photo
	for _, p := range photos {
		if !posted.Has(p.ID) && keep(p.MimeType) {
			unused = append(unused, p)
		}
	}
	if len(unused) == 0 {
		return nil
	}

	if cfg.Mode == store.ModeSingle {
		return unused[:1]
	}

	unusedIDs := make([]string, len(unused))
	for i, p := range unused {
		unusedIDs[i] = p.ID
	}
	pool := SelectGroup(unused, c.resolveLocations(ctx, unusedIDs))
	return c.sample(pool, MaxPerPost)
}

// sample returns n photos drawn uniformly without replacement, or the whole
// pool when it is not larger than n.
func (c *Controller) sample(pool []photostore.Photo, n int) []photostore.Photo {
	if len(pool) <= n {
		return pool
	}
	out := make([]photostore.Photo, len(pool))
	copy(out, pool)
	c.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:n]
}

// compose downloads the photos, reads date and place from the first one,
// and asks the composer for a caption. It also returns the platform
// location id, which is best effort.
func (c *Controller) compose(ctx context.Context, cfg store.ScheduleConfig, fileIDs []string) (string, string, error) {
	raw := make([][]byte, len(fileIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for i, id := range fileIDs {
		g.Go(func() error {
			data, _, err := c.photos.DownloadPhoto(gctx, id)
			if err != nil {
				return fmt.Errorf("download %s: %w", id, err)
			}
			raw[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", err
	}

	// Metadata must come from the original bytes; compression drops EXIF.
	meta := c.extractor.Extract(ctx, raw[0])
	log.Info().Str("date", meta.Date).Str("location", meta.LocationName).Bool("hasGps", meta.HasGPS).Msg("Scheduler: photo metadata")

	locationID := ""
	if meta.HasGPS && c.places != nil {
		locationID = c.places.SearchLocation(ctx, meta.Latitude, meta.Longitude)
	}

	images := make([]caption.Image, 0, len(raw))
	for i, data := range raw {
		jpeg, err := c.compress(data)
		if err != nil {
			return "", locationID, fmt.Errorf("prepare %s: %w", fileIDs[i], err)
		}
		images = append(images, caption.Image{Data: jpeg, MimeType: "image/jpeg"})
	}

	text, err := c.composer.Compose(ctx, images, cfg.Tone, meta.Date, meta.LocationName)
	if err != nil {
		return "", locationID, fmt.Errorf("compose caption: %w", err)
	}
	return text, locationID, nil
}

// recordAttempt appends a history entry; err nil means success.
func (c *Controller) recordAttempt(ctx context.Context, fileIDs, fileNames []string, text string, source store.PostSource, mediaID string, err error) {
	entry := store.HistoryEntry{
		ID:        ids.HistoryID(),
		FileIDs:   fileIDs,
		FileNames: fileNames,
		Caption:   text,
		Status:    store.StatusSuccess,
		Source:    source,
		MediaID:   mediaID,
		CreatedAt: c.now().UTC(),
	}
	if err != nil {
		entry.Status = store.StatusFailed
		entry.Error = err.Error()
	}
	metrics.PublishAttempts.WithLabelValues(string(source), string(entry.Status)).Inc()
	if werr := c.store.AppendHistory(ctx, entry); werr != nil {
		log.Error().Err(werr).Str("source", string(source)).Msg("Failed to append history")
	}
}
