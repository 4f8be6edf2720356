// Package gemini wraps the Google GenAI SDK behind a small request/response
// API for single-turn text generation.
package gemini

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Client defines the Gemini API operations used by the analysis phases.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is our own request type for Generate.
type GenerateRequest struct {
	Model           string
	System          string
	Prompt          string
	Temperature     *float32
	TopP            *float32
	TopK            *float32
	MaxOutputTokens int32
}

// GenerateResponse is our own response type from Generate.
type GenerateResponse struct {
	Text         string
	ModelVersion string
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens    int32
	CandidateTokens int32
	TotalTokens     int32
}

// LogUsage logs token usage with structured zap fields.
func (u TokenUsage) LogUsage(log *zap.Logger, model string) {
	log.Debug("gemini: usage",
		zap.String("model", model),
		zap.Int32("prompt_tokens", u.PromptTokens),
		zap.Int32("candidate_tokens", u.CandidateTokens),
		zap.Int32("total_tokens", u.TotalTokens),
	)
}

// Option adjusts the SDK client configuration.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = url
	}
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini API client backed by the SDK.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		o(cfg)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		TopK:            req.TopK,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, eris.Wrapf(err, "gemini: generate content with %s", req.Model)
	}
	if len(resp.Candidates) == 0 {
		return nil, eris.Errorf("gemini: empty response from %s", req.Model)
	}

	out := &GenerateResponse{
		Text:         resp.Text(),
		ModelVersion: resp.ModelVersion,
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = TokenUsage{
			PromptTokens:    u.PromptTokenCount,
			CandidateTokens: u.CandidatesTokenCount,
			TotalTokens:     u.TotalTokenCount,
		}
	}
	if out.Text == "" {
		return nil, eris.Errorf("gemini: no text in response from %s (finish reason %s)", req.Model, out.FinishReason)
	}
	return out, nil
}
