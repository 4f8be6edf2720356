// Package llm is the text-completion seam of the analysis phases: one
// prompt in, the model's text out. Providers plug in behind Completer and
// the decorators here add retries and rate limiting.
package llm

import (
	"cmp"
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/config"
	"github.com/sells-group/entrega-cli/pkg/anthropic"
	"github.com/sells-group/entrega-cli/pkg/gemini"
)

// Provider names accepted in llm.provider.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Options are the sampling settings of one completion. Model is optional;
// an empty Model uses the provider's configured model.
type Options struct {
	Model           string
	System          string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// OptionsFromConfig returns the sampling settings configured under llm.*.
func OptionsFromConfig(cfg config.LLMConfig) Options {
	return Options{
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
}

// WithTemperature returns a copy of o with the given temperature.
func (o Options) WithTemperature(t float64) Options {
	o.Temperature = t
	return o
}

// WithSystem returns a copy of o with the given system prompt.
func (o Options) WithSystem(s string) Options {
	o.System = s
	return o
}

// Completer produces the model's text answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string, opts Options) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// NewCompleter builds the completer for the configured provider. Gemini is
// the default.
func NewCompleter(ctx context.Context, cfg *config.Config, log *zap.Logger) (Completer, error) {
	switch p := cmp.Or(cfg.LLM.Provider, ProviderGemini); p {
	case ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, eris.Wrap(err, "llm: gemini client")
		}
		return NewGeminiCompleter(client, cfg.Gemini.Model, log), nil
	case ProviderAnthropic:
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("llm: anthropic.key is required")
		}
		return NewAnthropicCompleter(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, log), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", p)
	}
}

type geminiCompleter struct {
	client gemini.Client
	model  string
	log    *zap.Logger
}

// NewGeminiCompleter adapts a Gemini client to Completer.
func NewGeminiCompleter(client gemini.Client, model string, log *zap.Logger) Completer {
	if log == nil {
		log = zap.NewNop()
	}
	return &geminiCompleter{client: client, model: model, log: log}
}

func (c *geminiCompleter) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	model := cmp.Or(opts.Model, c.model)
	req := gemini.GenerateRequest{
		Model:           model,
		System:          opts.System,
		Prompt:          prompt,
		Temperature:     ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxOutputTokens),
	}
	if opts.TopP > 0 {
		req.TopP = ptr(float32(opts.TopP))
	}
	if opts.TopK > 0 {
		req.TopK = ptr(float32(opts.TopK))
	}

	resp, err := c.client.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	resp.Usage.LogUsage(c.log, model)
	return resp.Text, nil
}

type anthropicCompleter struct {
	client anthropic.Client
	model  string
	log    *zap.Logger
}

// NewAnthropicCompleter adapts an Anthropic client to Completer. The system
// prompt is sent as a cached block.
func NewAnthropicCompleter(client anthropic.Client, model string, log *zap.Logger) Completer {
	if log == nil {
		log = zap.NewNop()
	}
	return &anthropicCompleter{client: client, model: model, log: log}
}

func (c *anthropicCompleter) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	model := cmp.Or(opts.Model, c.model)
	// Current Claude models reject temperature and top_p in the same request,
	// and cap temperature at 1.
	req := anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   int64(opts.MaxOutputTokens),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: ptr(min(opts.Temperature, 1)),
	}
	if opts.TopK > 0 {
		req.TopK = ptr(int64(opts.TopK))
	}
	if opts.System != "" {
		req.System = anthropic.BuildCachedSystemBlocks(opts.System)
	}

	resp, err := c.client.CreateMessage(ctx, req)
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(c.log, model)

	text := resp.Text()
	if text == "" {
		return "", eris.Errorf("anthropic: no text in response (stop reason %s)", resp.StopReason)
	}
	return text, nil
}

func ptr[T any](v T) *T { return &v }
