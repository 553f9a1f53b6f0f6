package advice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker around an Advisor.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerConfig trips after three requests fail at a 60% ratio and
// probes again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// BreakerAdvisor wraps an Advisor with circuit breaking so a failing
// collaborator stops being consulted instead of slowing every refinement
// cycle to its timeout.
type BreakerAdvisor struct {
	advisor Advisor
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewBreakerAdvisor wraps advisor with a circuit breaker.
func NewBreakerAdvisor(advisor Advisor, cfg BreakerConfig, logger *slog.Logger) *BreakerAdvisor {
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        "gap-advice",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("gap advice circuit state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerAdvisor{
		advisor: advisor,
		cb:      gobreaker.NewCircuitBreaker(st),
		logger:  logger,
	}
}

// SuggestBridges implements Advisor.
func (b *BreakerAdvisor) SuggestBridges(ctx context.Context, rendered string) (*Advice, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.advisor.SuggestBridges(ctx, rendered)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return result.(*Advice), nil
}
