package oracle

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/nearby-backend/internal/observability"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

// RateGate is a rolling budget of oracle HTTP invocations, max per window,
// shared by everything holding it. The client takes one token per attempt,
// retries included, so the budget holds however many workers run.
type RateGate struct {
	limiter *rate.Limiter
}

func NewRateGate(max int, window time.Duration) *RateGate {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateGate{limiter: rate.NewLimiter(rate.Every(window/time.Duration(max)), max)}
}

// Wait blocks for a token. A nil gate never blocks.
func (g *RateGate) Wait(ctx context.Context, op string) error {
	if g == nil {
		return nil
	}
	start := time.Now()
	err := g.limiter.Wait(ctx)
	observability.Current().ObserveRateLimitWait(time.Since(start))
	if err != nil {
		return &apperrors.OracleError{Op: op, Err: err}
	}
	return nil
}
