package analytics

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/behzodk/shortlink/internal/model"
	"github.com/behzodk/shortlink/internal/service"
)

// BreakerRecorder wraps a VisitRecorder with a circuit breaker so a
// failing sink is dropped fast instead of adding its timeout to every
// resolution. Rejected records are reported as errors to the caller,
// which already treats recording as best-effort.
type BreakerRecorder struct {
	inner   service.VisitRecorder
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerRecorder wraps recorder with a breaker that opens after
// five consecutive failures and probes again after 30 seconds.
func NewBreakerRecorder(name string, recorder service.VisitRecorder) *BreakerRecorder {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerRecorder{
		inner:   recorder,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Record forwards to the wrapped recorder through the breaker.
func (b *BreakerRecorder) Record(ctx context.Context, visit *model.Visit) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.Record(ctx, visit)
	})
	return err
}

var _ service.VisitRecorder = (*BreakerRecorder)(nil)
