package caption

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/autopost/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Composer turns a batch of prepared images plus optional date and place
// into a finished caption.
type Composer struct {
	gen Generator
}

// NewComposer creates a Composer over the selected backend.
func NewComposer(gen Generator) *Composer {
	return &Composer{gen: gen}
}

// Backend names the configured generator, or "" when there is none.
func (c *Composer) Backend() string {
	if c == nil || c.gen == nil {
		return ""
	}
	return c.gen.Name()
}

// Compose generates a caption. When date is non-empty a date line is placed
// between the body and the trailing hashtags.
func (c *Composer) Compose(ctx context.Context, images []Image, tone, date, location string) (string, error) {
	if c == nil || c.gen == nil {
		return "", ErrNoBackend
	}
	if len(images) == 0 {
		return "", ErrNoImages
	}

	prompt := BuildPrompt(tone, location, len(images))
	start := time.Now()
	raw, err := c.gen.Generate(ctx, images, prompt)
	if err != nil {
		metrics.CaptionRequests.WithLabelValues(c.gen.Name(), "error").Inc()
		return "", fmt.Errorf("generate caption with %s: %w", c.gen.Name(), err)
	}
	metrics.CaptionRequests.WithLabelValues(c.gen.Name(), "ok").Inc()

	text := clean(raw)
	if text == "" {
		return "", fmt.Errorf("generate caption with %s: empty reply", c.gen.Name())
	}
	if date != "" {
		text = InsertDateLine(text, date)
	}

	log.Info().
		Str("backend", c.gen.Name()).
		Int("imageCount", len(images)).
		Int("captionLength", len(text)).
		Str("date", date).
		Str("location", location).
		Dur("duration", time.Since(start)).
		Msg("Caption generation complete")
	return text, nil
}
