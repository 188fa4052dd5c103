package assets

import (
	"strings"
	"testing"
)

func TestRenderCaptionPrompt(t *testing.T) {
	p := RenderCaptionPrompt(CaptionData{Subject: "this photo", Tone: "dry", Location: "Kyoto, Japan"})
	for _, want := range []string{"sharing this photo", "Tone: dry.", "taken in Kyoto, Japan", "ONLY the caption"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "{{") {
		t.Error("template actions left in output")
	}
}

func TestRenderCaptionPromptNoLocation(t *testing.T) {
	p := RenderCaptionPrompt(CaptionData{Subject: "this photo", Tone: "dry"})
	if strings.Contains(p, "taken in") {
		t.Error("location line rendered without a location")
	}
	if !strings.Contains(p, "200 words.\n\nReturn ONLY") {
		t.Errorf("unexpected spacing around closing line:\n%s", p)
	}
}
