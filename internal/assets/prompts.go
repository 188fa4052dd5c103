// Package assets holds the prompt templates embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed prompts/caption.txt
var captionTemplate string

// template.Must panics at init on a malformed template.
var captionPromptTmpl = template.Must(template.New("caption").Parse(captionTemplate))

// CaptionData holds the values injected into the caption prompt.
type CaptionData struct {
	// Subject is "this photo" or a carousel phrase.
	Subject string
	Tone    string
	// Location is omitted from the prompt when empty.
	Location string
}

// RenderCaptionPrompt renders the caption instruction text.
func RenderCaptionPrompt(d CaptionData) string {
	var buf bytes.Buffer
	if err := captionPromptTmpl.Execute(&buf, d); err != nil {
		return captionTemplate
	}
	return buf.String()
}
