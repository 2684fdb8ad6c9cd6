package gateway

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"osgpt/pkg/gateway/gwerrors"
	"osgpt/pkg/logx"
)

// RetryClient wraps a Client with classified exponential backoff: each
// error type carries its own schedule, terminal errors fail immediately,
// and exhausted retries surface as ErrorTypeUnavailable.
type RetryClient struct {
	client Client
	logger *logx.Logger
}

// NewRetryClient wraps a client with retry behavior.
func NewRetryClient(client Client, logger *logx.Logger) *RetryClient {
	return &RetryClient{client: client, logger: logger}
}

// WithRetry is the middleware form of NewRetryClient.
func WithRetry(logger *logx.Logger) Middleware {
	return func(client Client) Client {
		return NewRetryClient(client, logger)
	}
}

// Decide implements Client.
func (r *RetryClient) Decide(ctx context.Context, req Request) (Decision, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		decision, err := r.client.Decide(ctx, req)
		if err == nil {
			return decision, nil
		}
		lastErr = err

		var gwErr *gwerrors.Error
		if !errors.As(err, &gwErr) {
			gwErr = gwerrors.NewWithCause(gwerrors.ErrorTypeUnknown, err, "unclassified error")
		}
		if !gwErr.IsRetryable() {
			return Decision{}, err
		}

		cfg := gwErr.RetryConfigFor()
		if attempt >= cfg.MaxRetries {
			return Decision{}, gwerrors.NewUnavailable(lastErr, attempt)
		}

		delay := backoffDelay(cfg, attempt+1)
		r.logger.Warn("model call failed (%s), retry %d/%d in %s: %v",
			gwErr.Type, attempt+1, cfg.MaxRetries, delay, err)

		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// ModelName implements Client.
func (r *RetryClient) ModelName() string { return r.client.ModelName() }

func backoffDelay(cfg gwerrors.RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter && delay > 0 {
		jitter := time.Duration(rand.Int63n(int64(delay) / 5)) //nolint:gosec // jitter does not need crypto randomness
		delay += jitter - time.Duration(int64(delay)/10)
	}
	if delay < 0 {
		delay = cfg.InitialDelay
	}
	return delay
}
