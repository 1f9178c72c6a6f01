// Package settlement models the slow external effect of a transaction: the
// call to the payment rail. The real integration is out of scope, so the
// simulated settler simply waits a configured duration in its place.
package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
)

// DefaultDelay mirrors the settlement latency of the rail being simulated.
const DefaultDelay = 30 * time.Second

// Simulated is a Settler that stands in for the external rail. The wait runs
// without any row lock held and honors context cancellation so a shutdown
// does not hang on in-flight settlements.
type Simulated struct {
	delay time.Duration
}

// NewSimulated builds a simulated settler. A non-positive delay falls back to
// DefaultDelay.
func NewSimulated(delay time.Duration) *Simulated {
	if delay <= 0 {
		delay = DefaultDelay
	}

	return &Simulated{delay: delay}
}

// Settle blocks for the configured duration, standing in for the rail call.
func (s *Simulated) Settle(ctx context.Context, tx entity.Transaction) error {
	slog.InfoContext(ctx, "settling transaction",
		"transaction_id", tx.TransactionID,
		"amount", tx.Amount.String(),
		"currency", tx.Currency,
	)

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
