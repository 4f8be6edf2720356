package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/entrega-cli/internal/resilience"
)

// Retrying wraps c so every failed call is retried with exponential backoff
// until cfg.MaxAttempts is reached. The last error is returned.
func Retrying(c Completer, cfg resilience.RetryConfig, log *zap.Logger) Completer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(log, "llm.complete")
	}
	return CompleterFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
		return resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
			return c.Complete(ctx, prompt, opts)
		})
	})
}

// Limited wraps c so calls wait for a token from limiter first.
func Limited(c Completer, limiter *rate.Limiter) Completer {
	return CompleterFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "llm: rate limit wait")
		}
		return c.Complete(ctx, prompt, opts)
	})
}

// NewLimiter returns a limiter allowing rps calls per second with a burst of
// one. A non-positive rps disables limiting.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
