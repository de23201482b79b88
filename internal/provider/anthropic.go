package provider

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest
const APIVersion = "2023-06-01"

// NewAnthropicClient returns an SDK client using apiKey.
func NewAnthropicClient(apiKey string, opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &c
}

// Anthropic generates replies through the Messages API.
type Anthropic struct {
	Client *anthropic.Client
	apiKey string
}

func NewAnthropic(apiKey string, opts ...option.RequestOption) *Anthropic {
	return &Anthropic{Client: NewAnthropicClient(apiKey, opts...), apiKey: apiKey}
}

func (a *Anthropic) Name() string { return "anthropic" }

// Generate sends the system instruction and one user message (image block first, then
// text) and returns the concatenated text blocks of the reply.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(a.apiKey) == "" {
		return "", ErrMissingAPIKey
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.Image != nil {
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.Image.MIMEType, base64.StdEncoding.EncodeToString(p.Image.Data)))
			continue
		}
		// The Messages API rejects empty text blocks; an image-only turn sends just the image.
		if p.Text == "" && len(req.Parts) > 1 {
			continue
		}
		blocks = append(blocks, anthropic.NewTextBlock(p.Text))
	}

	model := req.Model
	if model == "" {
		model = string(DefaultModel)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstruction}}
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}
