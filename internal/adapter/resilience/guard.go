// Package resilience wraps remote embedding and generation clients with a rate
// limiter and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"docqa/internal/domain"
)

type Settings struct {
	// RequestsPerMinute of 0 disables rate limiting.
	RequestsPerMinute int
	Burst             int

	// MaxRequests allowed through while half-open.
	MaxRequests  uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	MinRequests  uint32
	FailureRatio float64
}

func DefaultSettings() Settings {
	return Settings{
		RequestsPerMinute: 600,
		Burst:             10,
		MaxRequests:       5,
		Interval:          10 * time.Second,
		OpenTimeout:       60 * time.Second,
		MinRequests:       3,
		FailureRatio:      0.6,
	}
}

// Guard rate-limits calls and short-circuits them once the remote side keeps failing.
type Guard struct {
	name    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGuard(name string, s Settings, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if s.RequestsPerMinute > 0 {
		burst := s.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(s.RequestsPerMinute)/60.0), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests || counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about the remote service.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Guard{name: name, limiter: limiter, breaker: breaker}
}

// Do waits for a rate limit token, then runs fn through the breaker. An open
// breaker is reported as domain.ErrCircuitOpen.
func (g *Guard) Do(ctx context.Context, fn func() error) error {
	ctx, span := otel.Tracer("docqa/resilience").Start(ctx, g.name)
	defer span.End()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			span.SetAttributes(attribute.Bool("rate_limited", true))
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w", g.name, domain.ErrCircuitOpen)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}
