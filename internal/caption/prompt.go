package caption

import (
	"fmt"
	"strings"

	"github.com/fpang/autopost/internal/assets"
)

// DefaultTone is used when the configured tone is blank.
const DefaultTone = "engaging"

// BuildPrompt assembles the instruction text sent alongside the images.
func BuildPrompt(tone, location string, imageCount int) string {
	tone = strings.TrimSpace(tone)
	if tone == "" {
		tone = DefaultTone
	}

	subject := "this photo"
	if imageCount > 1 {
		subject = fmt.Sprintf("these %d photos, which will be posted together as one carousel", imageCount)
	}

	return assets.RenderCaptionPrompt(assets.CaptionData{
		Subject:  subject,
		Tone:     tone,
		Location: strings.TrimSpace(location),
	})
}
