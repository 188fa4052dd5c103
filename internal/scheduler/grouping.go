package scheduler

import (
	"context"

	"github.com/fpang/autopost/internal/media"
	"github.com/fpang/autopost/internal/metrics"
	"github.com/fpang/autopost/internal/photostore"
	"github.com/rs/zerolog/log"
)

// minGroupSize is the smallest location group worth preferring.
const minGroupSize = 2

// resolveLocations returns the place name (or nil) for every id. Cached
// entries, including cached nils, are never looked up again; misses are
// resolved from the first bytes of each file and the cache is written once
// if anything was added.
func (c *Controller) resolveLocations(ctx context.Context, fileIDs []string) map[string]*string {
	cache := c.store.LoadLocations(ctx).Value

	added := 0
	for _, id := range fileIDs {
		if _, ok := cache[id]; ok {
			metrics.LocationCacheLookups.WithLabelValues("hit").Inc()
			continue
		}
		metrics.LocationCacheLookups.WithLabelValues("miss").Inc()
		added++

		header, err := c.photos.DownloadPhotoHeader(ctx, id, media.HeaderSize)
		if err != nil {
			log.Warn().Err(err).Str("fileId", id).Msg("Location resolve failed")
			cache[id] = nil
			continue
		}
		meta := c.extractor.ExtractHeader(ctx, header)
		if meta.LocationName == "" {
			cache[id] = nil
			continue
		}
		name := meta.LocationName
		cache[id] = &name
	}

	if added > 0 {
		if err := c.store.SaveLocations(ctx, cache); err != nil {
			log.Error().Err(err).Msg("Failed to save location cache")
		}
		log.Debug().Int("resolved", added).Int("total", len(fileIDs)).Msg("Location cache updated")
	}

	out := make(map[string]*string, len(fileIDs))
	for _, id := range fileIDs {
		out[id] = cache[id]
	}
	return out
}

// SelectGroup returns the photos of the location with the most candidates,
// provided that group has at least two photos. Ties go to the group seen
// first in candidate order. Without such a group the candidates are
// returned unchanged.
func SelectGroup(candidates []photostore.Photo, locations map[string]*string) []photostore.Photo {
	groups := make(map[string][]photostore.Photo)
	var order []string
	for _, p := range candidates {
		name := locations[p.ID]
		if name == nil || *name == "" {
			continue
		}
		if _, seen := groups[*name]; !seen {
			order = append(order, *name)
		}
		groups[*name] = append(groups[*name], p)
	}

	best := ""
	for _, name := range order {
		if n := len(groups[name]); n >= minGroupSize && n > len(groups[best]) {
			best = name
		}
	}
	if best == "" {
		log.Info().Msg("Location grouping: no group with 2 or more photos, using all candidates")
		return candidates
	}

	log.Info().Str("location", best).Int("available", len(groups[best])).Msg("Location grouping picked a group")
	return groups[best]
}
