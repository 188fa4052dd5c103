// Package publish turns a set of photo ids and a caption into one post:
// images are downloaded, prepared, staged at public URLs, checked for
// crawler reachability, published as a single post or carousel, and the
// staged copies removed again.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fpang/autopost/internal/media"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxBatch is the most photos one post can carry.
const MaxBatch = 10

// PhotoSource downloads full photos.
type PhotoSource interface {
	DownloadPhoto(ctx context.Context, fileID string) ([]byte, string, error)
}

// Target publishes staged image URLs.
type Target interface {
	PostPhoto(ctx context.Context, imageURL, caption, locationID string) (string, error)
	PostCarousel(ctx context.Context, imageURLs []string, caption, locationID string) (string, error)
}

// URLProber checks that a staged URL is fetchable by the platform.
type URLProber interface {
	Probe(ctx context.Context, imageURL string) error
}

// Publisher is the publish orchestrator.
type Publisher struct {
	photos   PhotoSource
	target   Target
	stager   Stager
	prober   URLProber
	notifier Notifier

	compress func([]byte) ([]byte, error)
}

// New creates a Publisher. notifier may be nil.
func New(photos PhotoSource, target Target, stager Stager, prober URLProber, notifier Notifier) *Publisher {
	return &Publisher{
		photos:   photos,
		target:   target,
		stager:   stager,
		prober:   prober,
		notifier: notifier,
		compress: media.Compress,
	}
}

// Stager returns the configured stager.
func (p *Publisher) Stager() Stager { return p.stager }

// CheckBatch validates the photo count.
func CheckBatch(n int) error {
	if n < 1 || n > MaxBatch {
		return &BatchSizeError{Count: n}
	}
	return nil
}

// Publish posts fileIDs with caption and returns the platform media id.
// The batch size and staging configuration are checked before any network
// call. Staged copies are removed on every return path.
func (p *Publisher) Publish(ctx context.Context, fileIDs []string, caption, locationID string) (string, error) {
	if err := CheckBatch(len(fileIDs)); err != nil {
		return "", err
	}
	if err := p.stager.Check(); err != nil {
		return "", err
	}

	start := time.Now()
	staged := make([]string, 0, len(fileIDs))
	defer func() {
		// Cleanup must run even when ctx is already cancelled.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		for _, name := range staged {
			if err := p.stager.Remove(cctx, name); err != nil {
				log.Warn().Err(err).Str("name", name).Msg("Failed to remove staged image")
			}
		}
	}()

	urls := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		data, _, err := p.photos.DownloadPhoto(ctx, id)
		if err != nil {
			return "", fmt.Errorf("download %s: %w", id, err)
		}
		jpeg, err := p.compress(data)
		if err != nil {
			return "", fmt.Errorf("prepare %s: %w", id, err)
		}

		name := strings.ReplaceAll(uuid.NewString(), "-", "") + ".jpg"
		u, err := p.stager.Stage(ctx, name, jpeg)
		if err != nil {
			return "", fmt.Errorf("stage %s: %w", id, err)
		}
		staged = append(staged, name)
		urls = append(urls, u)
	}

	if err := p.prober.Probe(ctx, urls[0]); err != nil {
		return "", err
	}
	log.Info().Int("imageCount", len(urls)).Str("firstUrl", urls[0]).Msg("Posting to Instagram")

	var mediaID string
	var err error
	if len(urls) == 1 {
		mediaID, err = p.target.PostPhoto(ctx, urls[0], caption, locationID)
	} else {
		mediaID, err = p.target.PostCarousel(ctx, urls, caption, locationID)
	}
	if err != nil {
		return "", err
	}

	log.Info().
		Str("mediaId", mediaID).
		Int("imageCount", len(urls)).
		Dur("duration", time.Since(start)).
		Msg("Post published")

	if p.notifier != nil {
		event := PublishedEvent{
			MediaID:     mediaID,
			FileIDs:     fileIDs,
			Caption:     caption,
			LocationID:  locationID,
			PublishedAt: time.Now().UTC(),
		}
		if err := p.notifier.Published(ctx, event); err != nil {
			log.Warn().Err(err).Str("mediaId", mediaID).Msg("Publish notification failed")
		}
	}
	return mediaID, nil
}
