package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FallbackClient wraps a primary client with a fallback provider.
// If the primary fails, it retries once with the fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *zap.Logger
}

func NewFallbackClient(primary, fallback Client, logger *zap.Logger) *FallbackClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		zap.Error(err),
		zap.Bool("fallback_available", c.fallback != nil),
	)
	if c.fallback == nil {
		return Response{}, err
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			zap.NamedError("primary_error", err),
			zap.NamedError("fallback_error", fallbackErr),
		)
		return Response{}, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure", zap.String("provider", fallbackResp.Provider))
	return fallbackResp, nil
}

// timeoutClient bounds every call.
type timeoutClient struct {
	next    Client
	timeout time.Duration
}

func WithTimeout(next Client, timeout time.Duration) Client {
	if timeout <= 0 {
		return next
	}
	return &timeoutClient{next: next, timeout: timeout}
}

func (c *timeoutClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Complete(ctx, req)
}

type Options struct {
	GroqAPIKey   string
	GroqBaseURL  string
	GroqModel    string
	GeminiAPIKey string
	GeminiModel  string
	Timeout      time.Duration
}

// New builds the completion chain from whichever keys are set: Groq first,
// Gemini as fallback. With no keys it returns Unconfigured. The returned
// close func releases provider resources.
func New(ctx context.Context, opts Options, logger *zap.Logger) (Client, func() error, error) {
	noop := func() error { return nil }

	var primary, fallback Client
	closer := noop

	if opts.GroqAPIKey != "" {
		groq, err := NewGroqClient(opts.GroqAPIKey, opts.GroqBaseURL, opts.GroqModel)
		if err != nil {
			return nil, noop, err
		}
		primary = groq
	}
	if opts.GeminiAPIKey != "" {
		gemini, err := NewGeminiClient(ctx, opts.GeminiAPIKey, opts.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		closer = gemini.Close
		if primary == nil {
			primary = gemini
		} else {
			fallback = gemini
		}
	}

	if primary == nil {
		return Unconfigured{}, noop, nil
	}
	return chain(primary, fallback, opts.Timeout, logger), closer, nil
}

// chain bounds each provider separately so a primary that runs out the clock
// still leaves the fallback a full timeout.
func chain(primary, fallback Client, timeout time.Duration, logger *zap.Logger) Client {
	primary = WithTimeout(primary, timeout)
	if fallback == nil {
		return primary
	}
	return NewFallbackClient(primary, WithTimeout(fallback, timeout), logger)
}
