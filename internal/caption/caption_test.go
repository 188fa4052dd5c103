package caption

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

func TestSplitHashtags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantBody string
		wantTags string
	}{
		{
			name:     "single tag line",
			input:    "Sunset walk by the pier.\n\n#sunset #pier #evening",
			wantBody: "Sunset walk by the pier.",
			wantTags: "#sunset #pier #evening",
		},
		{
			name:     "blank lines inside block",
			input:    "Coffee first.\n#coffee #morning\n\n#latte",
			wantBody: "Coffee first.",
			wantTags: "#coffee #morning\n\n#latte",
		},
		{
			name:     "mixed line ends block",
			input:    "Line one\nLoving #this view\n#travel",
			wantBody: "Line one\nLoving #this view",
			wantTags: "#travel",
		},
		{
			name:     "no tags",
			input:    "Just words here.",
			wantBody: "Just words here.",
			wantTags: "",
		},
		{
			name:     "only tags",
			input:    "#a #b",
			wantBody: "",
			wantTags: "#a #b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, tags := SplitHashtags(tt.input)
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if tags != tt.wantTags {
				t.Errorf("tags = %q, want %q", tags, tt.wantTags)
			}
		})
	}
}

func hashtagTokens(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if strings.HasPrefix(f, "#") {
			out = append(out, f)
		}
	}
	return out
}

func TestInsertDateLinePreservesHashtags(t *testing.T) {
	inputs := []string{
		"Morning light on the lake.\n\n#lake #morning #calm\n#nature",
		"Two friends, one pizza.\n#pizza\n\n#friends #weekend",
	}
	for _, in := range inputs {
		out := InsertDateLine(in, "15 February 2026")

		if got, want := hashtagTokens(out), hashtagTokens(in); strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("hashtags changed: got %v, want %v", got, want)
		}

		dateIdx := strings.Index(out, DatePrefix+"15 February 2026")
		firstTag := strings.Index(out, "#")
		if dateIdx < 0 || dateIdx > firstTag {
			t.Errorf("date line not placed before hashtags:\n%s", out)
		}
		lines := strings.Split(out, "\n")
		if !allHashtags(lines[len(lines)-1]) {
			t.Errorf("hashtag block is not the final content:\n%s", out)
		}
	}
}

func TestInsertDateLineNoDate(t *testing.T) {
	in := "Body\n#tag"
	if got := InsertDateLine(in, "  "); got != in {
		t.Errorf("InsertDateLine with blank date = %q, want unchanged", got)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"```\nHello there #hi\n```", "Hello there #hi"},
		{"```text\nHello\n```", "Hello"},
		{"\"Quoted caption\"", "Quoted caption"},
		{"“Curly”", "Curly"},
		{"  plain  ", "plain"},
	}
	for _, tt := range tests {
		if got := clean(tt.input); got != tt.want {
			t.Errorf("clean(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("", "Lisbon, Portugal", 3)
	for _, want := range []string{"real person", "Tone: engaging", "these 3 photos", "Lisbon, Portugal", "5-10", "under 200 words", "em-dash", "ONLY the caption"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(BuildPrompt("funny", "", 1), "taken in") {
		t.Error("prompt mentions location when none was given")
	}
}

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
	images int
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, images []Image, prompt string) (string, error) {
	f.prompt = prompt
	f.images = len(images)
	return f.reply, f.err
}

func TestComposeInsertsDate(t *testing.T) {
	gen := &fakeGenerator{reply: "```\nA quiet street.\n\n#street #city\n```"}
	c := NewComposer(gen)

	got, err := c.Compose(context.Background(), []Image{{Data: []byte{1}, MimeType: "image/jpeg"}}, "engaging", "3 March 2025", "Porto")
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}
	want := "A quiet street.\n\n📅 3 March 2025\n\n#street #city"
	if got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}
	if !strings.Contains(gen.prompt, "Porto") {
		t.Error("location not passed into prompt")
	}
}

func TestComposeErrors(t *testing.T) {
	img := []Image{{Data: []byte{1}, MimeType: "image/jpeg"}}

	if _, err := NewComposer(nil).Compose(context.Background(), img, "", "", ""); !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
	if _, err := NewComposer(&fakeGenerator{}).Compose(context.Background(), nil, "", "", ""); !errors.Is(err, ErrNoImages) {
		t.Errorf("expected ErrNoImages, got %v", err)
	}

	boom := errors.New("quota")
	if _, err := NewComposer(&fakeGenerator{err: boom}).Compose(context.Background(), img, "", "", ""); !errors.Is(err, boom) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	g, b := &fakeGenerator{reply: "g"}, &fakeGenerator{reply: "b"}
	if got, _ := Select(g, b); got != g {
		t.Error("Gemini should win when both are configured")
	}
	if got, _ := Select(nil, b); got != b {
		t.Error("Bedrock should be used when Gemini is absent")
	}
	if _, err := Select(nil, nil); !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
}

type fakeInvoker struct {
	req    claudeRequest
	output string
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if err := json.Unmarshal(params.Body, &f.req); err != nil {
		return nil, err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.output)}, nil
}

func TestBedrockGenerate(t *testing.T) {
	inv := &fakeInvoker{output: `{"content":[{"type":"text","text":"Hello #world"}]}`}
	gen := &BedrockGenerator{client: inv, modelID: "anthropic.claude-test"}

	got, err := gen.Generate(context.Background(), []Image{{Data: []byte("abc"), MimeType: "image/jpeg"}}, "write")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "Hello #world" {
		t.Errorf("Generate() = %q", got)
	}

	blocks := inv.req.Messages[0].Content
	if len(blocks) != 2 || blocks[0].Type != "image" || blocks[0].Source.Data != "YWJj" || blocks[1].Text != "write" {
		t.Errorf("unexpected request blocks: %+v", blocks)
	}
	if inv.req.AnthropicVersion != bedrockAnthropicVersion {
		t.Errorf("anthropic_version = %q", inv.req.AnthropicVersion)
	}
}

func TestBedrockGenerateNoText(t *testing.T) {
	gen := &BedrockGenerator{client: &fakeInvoker{output: `{"content":[]}`}, modelID: "m"}
	if _, err := gen.Generate(context.Background(), nil, "p"); err == nil {
		t.Error("expected error for empty content")
	}
}
