package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/service"
)

// Generator implements service.Generator on top of a provider client with
// rate limiting and retries.
type Generator struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// NewGenerator creates a generator for the configured provider.
func NewGenerator(cfg Config, logger *slog.Logger) (*Generator, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewGeneratorWithClient(client, cfg, logger), nil
}

// NewGeneratorWithClient wraps an existing client.
func NewGeneratorWithClient(client Client, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Generator{
		client:      client,
		logger:      logger.With("component", "llm"),
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}
}

// Generate returns the model's completion of prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var output string

	err := common.WithRetry(ctx, g.retryOpts, func(attempt int) error {
		if err := g.rateLimiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}

		response, err := g.client.Complete(ctx, prompt)
		if err != nil {
			g.logger.Warn("generation attempt failed", "attempt", attempt, "error", err)
			return &common.RetryableError{Err: err, Retryable: retryable(err) && ctx.Err() == nil}
		}

		output = response
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	g.logger.Debug("generated completion",
		"prompt_chars", len(prompt),
		"output_chars", len(output))
	return output, nil
}
