package caption

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"
)

const (
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	bedrockMaxTokens        = 512
)

// modelInvoker is the slice of the Bedrock runtime client we use.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockGenerator calls an Anthropic Claude model hosted on Bedrock using
// the messages request body.
type BedrockGenerator struct {
	client  modelInvoker
	modelID string
}

var _ Generator = (*BedrockGenerator)(nil)

// NewBedrockGenerator wraps a Bedrock runtime client.
func NewBedrockGenerator(client *bedrockruntime.Client, modelID string) *BedrockGenerator {
	return &BedrockGenerator{client: client, modelID: modelID}
}

func (b *BedrockGenerator) Name() string { return "bedrock:" + b.modelID }

// --- Request/response shapes ---

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeBlock struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeResponse struct {
	Content []claudeBlock `json:"content"`
}

// Generate sends the images as base64 blocks followed by the prompt.
func (b *BedrockGenerator) Generate(ctx context.Context, images []Image, prompt string) (string, error) {
	blocks := make([]claudeBlock, 0, len(images)+1)
	for _, img := range images {
		blocks = append(blocks, claudeBlock{
			Type: "image",
			Source: &claudeSource{
				Type:      "base64",
				MediaType: img.MimeType,
				Data:      base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	blocks = append(blocks, claudeBlock{Type: "text", Text: prompt})

	body, err := json.Marshal(claudeRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        bedrockMaxTokens,
		Messages:         []claudeMessage{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	result, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		log.Error().Err(err).Str("modelId", b.modelID).Msg("Bedrock InvokeModel failed")
		return "", fmt.Errorf("InvokeModel: %w", err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var sb strings.Builder
	for _, blk := range resp.Content {
		if blk.Type == "text" {
			sb.WriteString(blk.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("bedrock response contained no text")
	}

	log.Debug().
		Str("modelId", b.modelID).
		Int("responseLength", sb.Len()).
		Dur("duration", time.Since(start)).
		Msg("Bedrock caption response received")
	return sb.String(), nil
}
