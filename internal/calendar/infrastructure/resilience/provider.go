// Package resilience wraps a calendar provider with retry and circuit
// breaking. Concrete providers perform single attempts; this decorator
// owns backoff, Retry-After handling, and failure budgets so every
// provider gets the same call discipline.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	calendarApp "github.com/raziel-gershoni/calbrew-sub001/internal/calendar/application"
	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
)

// Config controls retry and circuit breaker behavior.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseBackoff is the first retry delay; subsequent delays grow by
	// BackoffFactor up to MaxBackoff, with ±JitterFraction jitter.
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFraction float64

	// CircuitBreakerEnabled enables per-operation circuit breakers.
	CircuitBreakerEnabled bool

	// MaxRequests is the maximum number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold is the consecutive-failure count that trips a breaker.
	FailureThreshold uint32
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:            4,
		BaseBackoff:           1 * time.Second,
		MaxBackoff:            60 * time.Second,
		BackoffFactor:         2.0,
		JitterFraction:        0.25,
		CircuitBreakerEnabled: true,
		MaxRequests:           3,
		Interval:              10 * time.Second,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
	}
}

// Provider decorates a calendar provider with retry and circuit breaking.
//
// Throttling (429), server errors (5xx) and transport failures are retried
// with exponential backoff; 404 and auth failures return immediately so
// callers can re-resolve bindings or surface the credential problem. A
// breaker guards each operation independently, so a failing insert path
// does not block calendar listing.
type Provider struct {
	name     string
	inner    calendarApp.Provider
	logger   *slog.Logger
	config   Config
	breakers map[string]*gobreaker.CircuitBreaker[any]
	mu       sync.Mutex

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

var _ calendarApp.Provider = (*Provider)(nil)

// NewProvider wraps inner with the retry and breaker policy in config.
// name identifies the wrapped provider in logs and breaker names.
func NewProvider(name string, inner calendarApp.Provider, logger *slog.Logger, config Config) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		name:      name,
		inner:     inner,
		logger:    logger,
		config:    config,
		breakers:  make(map[string]*gobreaker.CircuitBreaker[any]),
		sleepFunc: timeSleep,
	}
}

func (p *Provider) ListCalendars(ctx context.Context, userID uuid.UUID) ([]calendarApp.Calendar, error) {
	result, err := p.execute(ctx, "list_calendars", func() (any, error) {
		return p.inner.ListCalendars(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	calendars, _ := result.([]calendarApp.Calendar)
	return calendars, nil
}

func (p *Provider) CreateCalendar(ctx context.Context, userID uuid.UUID, name string) (string, error) {
	result, err := p.execute(ctx, "create_calendar", func() (any, error) {
		return p.inner.CreateCalendar(ctx, userID, name)
	})
	if err != nil {
		return "", err
	}
	id, _ := result.(string)
	return id, nil
}

func (p *Provider) CalendarExists(ctx context.Context, userID uuid.UUID, calendarID string) (bool, error) {
	result, err := p.execute(ctx, "calendar_exists", func() (any, error) {
		return p.inner.CalendarExists(ctx, userID, calendarID)
	})
	if err != nil {
		return false, err
	}
	exists, _ := result.(bool)
	return exists, nil
}

func (p *Provider) InsertEvent(ctx context.Context, userID uuid.UUID, calendarID string, payload calendarApp.EventPayload) (string, error) {
	result, err := p.execute(ctx, "insert_event", func() (any, error) {
		return p.inner.InsertEvent(ctx, userID, calendarID, payload)
	})
	if err != nil {
		return "", err
	}
	id, _ := result.(string)
	return id, nil
}

func (p *Provider) PatchEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string, payload calendarApp.EventPayload) error {
	_, err := p.execute(ctx, "patch_event", func() (any, error) {
		return nil, p.inner.PatchEvent(ctx, userID, calendarID, eventID, payload)
	})
	return err
}

func (p *Provider) DeleteEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string) error {
	_, err := p.execute(ctx, "delete_event", func() (any, error) {
		return nil, p.inner.DeleteEvent(ctx, userID, calendarID, eventID)
	})
	return err
}

// execute runs the retried operation behind its circuit breaker.
func (p *Provider) execute(ctx context.Context, operation string, fn func() (any, error)) (any, error) {
	breaker := p.getBreaker(operation)
	if breaker == nil {
		return p.retry(ctx, operation, fn)
	}

	result, err := breaker.Execute(func() (any, error) {
		return p.retry(ctx, operation, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperror.Wrap(
			apperror.KindSync,
			fmt.Sprintf("calendar provider %s is unavailable, %s rejected", p.name, operation),
			err,
		)
	}
	return result, err
}

// retry runs fn until it succeeds, fails with a non-retryable error, or
// exhausts the retry budget.
func (p *Provider) retry(ctx context.Context, operation string, fn func() (any, error)) (any, error) {
	var attempt int
	for {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		// Context cancellation is not retryable.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("calendar %s canceled: %w", operation, ctx.Err())
		}

		if !calendarApp.IsRetryable(err) {
			return nil, err
		}

		if attempt >= p.config.MaxRetries {
			return nil, apperror.Wrap(
				apperror.KindCalendar,
				fmt.Sprintf("calendar %s failed after %d attempts", operation, attempt+1),
				err,
			)
		}

		backoff := p.retryBackoff(err, attempt)
		p.logger.Warn("retrying calendar call",
			slog.String("provider", p.name),
			slog.String("operation", operation),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		if sleepErr := p.sleepFunc(ctx, backoff); sleepErr != nil {
			return nil, fmt.Errorf("calendar %s canceled: %w", operation, sleepErr)
		}

		attempt++
	}
}

// getBreaker returns the circuit breaker for an operation, creating it if needed.
func (p *Provider) getBreaker(operation string) *gobreaker.CircuitBreaker[any] {
	if !p.config.CircuitBreakerEnabled {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if breaker, exists := p.breakers[operation]; exists {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        p.name + "." + operation,
		MaxRequests: p.config.MaxRequests,
		Interval:    p.config.Interval,
		Timeout:     p.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= p.config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Info("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// The remote answered; a client error is not a health signal.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return !calendarApp.IsRetryable(err)
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	p.breakers[operation] = breaker
	return breaker
}

// retryBackoff returns the delay before the next attempt. A throttled
// response carrying Retry-After overrides the computed backoff.
func (p *Provider) retryBackoff(err error, attempt int) time.Duration {
	if hint := calendarApp.RetryAfterHint(err); hint > 0 {
		return hint
	}
	return p.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with jitter.
func (p *Provider) calcBackoff(attempt int) time.Duration {
	backoff := float64(p.config.BaseBackoff) * math.Pow(p.config.BackoffFactor, float64(attempt))
	if backoff > float64(p.config.MaxBackoff) {
		backoff = float64(p.config.MaxBackoff)
	}

	jitter := backoff * p.config.JitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Provider.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
