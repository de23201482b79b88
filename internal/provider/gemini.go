package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds one generation call. HTTP surfaces size their write window from it.
const DefaultTimeout = 2 * time.Minute

const (
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// Gemini calls the Generative Language REST API.
type Gemini struct {
	client *resty.Client
	apiKey string
}

// NewGemini returns a Gemini generator. hc may be nil.
func NewGemini(apiKey, baseURL string, hc *http.Client) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	var c *resty.Client
	if hc != nil {
		c = resty.NewWithClient(hc)
	} else {
		c = resty.New()
	}
	c.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(DefaultTimeout)
	return &Gemini{client: c, apiKey: apiKey}
}

func (g *Gemini) Name() string { return "gemini" }

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       *string           `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64         `json:"temperature"`
	MaxOutputTokens  int64           `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// thoughtResponseSchema constrains structured replies to {"thought","response"}.
var thoughtResponseSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"thought": {"type": "STRING"},
		"response": {"type": "STRING"}
	},
	"required": ["response"],
	"propertyOrdering": ["thought", "response"]
}`)

// Generate posts a generateContent request and concatenates the text parts of the
// first candidate.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return "", ErrMissingAPIKey
	}
	model := req.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	body := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: toGeminiParts(req.Parts)}},
		GenerationConfig: geminiGenerationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens},
	}
	if req.SystemInstruction != "" {
		si := req.SystemInstruction
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: &si}}}
	}
	if req.Structured {
		body.GenerationConfig.ResponseMIMEType = "application/json"
		body.GenerationConfig.ResponseSchema = thoughtResponseSchema
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(&body).
		Post("/v1beta/models/" + url.PathEscape(model) + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var gr geminiResponse
	if err := json.Unmarshal(resp.Body(), &gr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		if p.Text != nil {
			sb.WriteString(*p.Text)
		}
	}
	return sb.String(), nil
}

func toGeminiParts(parts []Part) []geminiPart {
	out := make([]geminiPart, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			out = append(out, geminiPart{InlineData: &geminiInlineData{
				MIMEType: p.Image.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.Image.Data),
			}})
			continue
		}
		text := p.Text
		out = append(out, geminiPart{Text: &text})
	}
	return out
}
