// Package caption builds captions for a batch of photos using a generative
// vision model and post-processes the model output for posting.
package caption

import (
	"context"
	"errors"
)

var (
	// ErrNoBackend means neither a Gemini key nor a Bedrock model is configured.
	ErrNoBackend = errors.New("no caption backend configured: set GEMINI_API_KEY or BEDROCK_MODEL_ID")

	// ErrNoImages is returned when Compose is called with an empty batch.
	ErrNoImages = errors.New("caption requires at least one image")
)

// Image is one photo sent to the model.
type Image struct {
	Data     []byte
	MimeType string
}

// Generator sends images plus a text prompt to a vision model and returns
// the raw text reply.
type Generator interface {
	Name() string
	Generate(ctx context.Context, images []Image, prompt string) (string, error)
}

// Select picks the backend by configuration presence: Gemini first, then
// Bedrock. Either may be nil. There is no runtime fallback between them.
func Select(gemini, bedrock Generator) (Generator, error) {
	switch {
	case gemini != nil:
		return gemini, nil
	case bedrock != nil:
		return bedrock, nil
	}
	return nil, ErrNoBackend
}
