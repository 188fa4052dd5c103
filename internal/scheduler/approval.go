package scheduler

import (
	"context"
	"fmt"

	"github.com/fpang/autopost/internal/media"
	"github.com/fpang/autopost/internal/publish"
	"github.com/fpang/autopost/internal/store"
	"github.com/rs/zerolog/log"
)

// PostType is the shape of a published post.
type PostType string

const (
	PostSingle   PostType = "single"
	PostCarousel PostType = "carousel"
)

// PostResult describes a manual post.
type PostResult struct {
	MediaID string   `json:"media_id"`
	Type    PostType `json:"type"`
}

// --- Approval workflow ---

// Approve publishes the pending post id. It returns false when no such post
// exists. A history entry (source approved) is written whether publishing
// succeeds or not; the post leaves the queue only on success. The ledger is
// not touched here: queued photos were burned when they were queued.
func (c *Controller) Approve(ctx context.Context, id string) (bool, error) {
	post, ok := c.store.FindPending(ctx, id)
	if !ok {
		return false, nil
	}

	mediaID, err := c.publisher.Publish(ctx, post.FileIDs, post.Caption, post.LocationID)
	c.recordAttempt(ctx, post.FileIDs, post.FileNames, post.Caption, store.SourceApproved, mediaID, err)
	if err != nil {
		log.Error().Err(err).Str("pendingId", id).Msg("Approved post failed to publish, keeping it pending")
		return true, fmt.Errorf("publish pending post %s: %w", id, err)
	}

	if _, err := c.store.RemovePending(ctx, id); err != nil {
		log.Error().Err(err).Str("pendingId", id).Msg("Published but failed to remove pending post")
	}
	log.Info().Str("pendingId", id).Str("mediaId", mediaID).Int("photoCount", len(post.FileIDs)).Msg("Pending post approved and published")
	return true, nil
}

// Reject discards the pending post id without publishing and without a
// history entry. Its photos stay in the ledger.
func (c *Controller) Reject(ctx context.Context, id string) (bool, error) {
	removed, err := c.store.RemovePending(ctx, id)
	if err != nil {
		return false, fmt.Errorf("reject pending post %s: %w", id, err)
	}
	if removed {
		log.Info().Str("pendingId", id).Msg("Pending post rejected")
	}
	return removed, nil
}

// PostNow publishes the given photos immediately with the caller's caption.
// The platform location is looked up from the first photo's GPS.
func (c *Controller) PostNow(ctx context.Context, fileIDs []string, text string) (PostResult, error) {
	if err := publish.CheckBatch(len(fileIDs)); err != nil {
		return PostResult{}, err
	}

	locationID := c.locationForPhoto(ctx, fileIDs[0])

	mediaID, err := c.publisher.Publish(ctx, fileIDs, text, locationID)
	// Manual posts have no names to hand, so ids stand in for them.
	c.recordAttempt(ctx, fileIDs, fileIDs, text, store.SourceManual, mediaID, err)
	if err != nil {
		return PostResult{}, err
	}

	if err := c.store.MarkPosted(ctx, fileIDs...); err != nil {
		log.Error().Err(err).Strs("fileIds", fileIDs).Msg("Failed to record posted ids")
	}

	res := PostResult{MediaID: mediaID, Type: PostSingle}
	if len(fileIDs) > 1 {
		res.Type = PostCarousel
	}
	log.Info().Str("mediaId", mediaID).Str("type", string(res.Type)).Int("photoCount", len(fileIDs)).Msg("Manual post published")
	return res, nil
}

func (c *Controller) locationForPhoto(ctx context.Context, fileID string) string {
	if c.places == nil {
		return ""
	}
	header, err := c.photos.DownloadPhotoHeader(ctx, fileID, media.HeaderSize)
	if err != nil {
		log.Warn().Err(err).Str("fileId", fileID).Msg("Could not read photo header for location")
		return ""
	}
	meta := c.extractor.ExtractHeader(ctx, header)
	if !meta.HasGPS {
		return ""
	}
	return c.places.SearchLocation(ctx, meta.Latitude, meta.Longitude)
}
