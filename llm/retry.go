package llm

import (
	"context"
	"errors"
	"math"
	"time"

	fabrik "github.com/fabrik-ai/fabrik"
)

// RetryGateway decorates another Gateway with bounded retry on transport
// failures. Auth errors are never retried: an expired session cannot heal
// by waiting. Each retry backs off exponentially from BaseDelay.
type RetryGateway struct {
	inner      Gateway
	maxRetries int
	baseDelay  time.Duration
}

// NewRetryGateway wraps gw with up to maxRetries retries. A maxRetries of 0
// uses the default of 3. baseDelay of 0 uses 100ms.
func NewRetryGateway(gw Gateway, maxRetries int, baseDelay time.Duration) *RetryGateway {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return &RetryGateway{inner: gw, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Generate implements Gateway.
func (g *RetryGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * g.baseDelay
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := g.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, fabrik.ErrAuthExpired) {
			return nil, err
		}

		lastErr = err
	}

	return nil, lastErr
}
