package revalidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sitecarbon/pkg/platform/circuit"
)

// Target is one named invalidation backend.
type Target struct {
	Name        string
	Invalidator Invalidator
}

type guardedTarget struct {
	Target
	breaker *circuit.Breaker
}

// Fanout sends every invalidation to all targets. Each target has its own
// circuit breaker: while a breaker is open the target is still tried, so it
// can recover, but its failures are logged at debug and not returned.
type Fanout struct {
	targets []guardedTarget
	logger  *slog.Logger
	metrics *Metrics
}

type FanoutOption func(*fanoutConfig)

type fanoutConfig struct {
	logger           *slog.Logger
	metrics          *Metrics
	failureThreshold int
	successThreshold int
}

func WithLogger(logger *slog.Logger) FanoutOption {
	return func(c *fanoutConfig) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) FanoutOption {
	return func(c *fanoutConfig) {
		c.metrics = m
	}
}

// WithBreakerThresholds sets the consecutive failures that open a target's
// breaker and the consecutive successes that close it.
func WithBreakerThresholds(failures, successes int) FanoutOption {
	return func(c *fanoutConfig) {
		c.failureThreshold = failures
		c.successThreshold = successes
	}
}

func NewFanout(targets []Target, opts ...FanoutOption) *Fanout {
	cfg := fanoutConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	f := &Fanout{logger: cfg.logger, metrics: cfg.metrics}
	for _, t := range targets {
		if t.Invalidator == nil {
			continue
		}
		f.targets = append(f.targets, guardedTarget{
			Target: t,
			breaker: circuit.New(t.Name,
				circuit.WithFailureThreshold(cfg.failureThreshold),
				circuit.WithSuccessThreshold(cfg.successThreshold),
			),
		})
		f.metrics.SetBreakerOpen(t.Name, false)
	}
	return f
}

// Len returns the number of configured targets.
func (f *Fanout) Len() int {
	return len(f.targets)
}

// Invalidate calls every target in order and returns the failures of targets
// whose breaker was closed.
func (f *Fanout) Invalidate(ctx context.Context, paths ...string) error {
	var errs []error
	for _, t := range f.targets {
		err := t.Invalidator.Invalidate(ctx, paths...)
		f.metrics.ObserveResult(t.Name, err)

		if err == nil {
			if _, change := t.breaker.RecordSuccess(); change.Closed {
				f.metrics.SetBreakerOpen(t.Name, false)
				f.logger.InfoContext(ctx, "invalidation target recovered", "target", t.Name)
			}
			continue
		}

		wasOpen := t.breaker.IsOpen()
		_, change := t.breaker.RecordFailure()
		switch {
		case change.Opened:
			f.metrics.SetBreakerOpen(t.Name, true)
			f.logger.WarnContext(ctx, "invalidation target failing, suppressing errors",
				"target", t.Name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		case wasOpen:
			f.logger.DebugContext(ctx, "invalidation target still failing",
				"target", t.Name,
				"error", err,
			)
		default:
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Breaker exposes a target's breaker state for health reporting.
func (f *Fanout) Breaker(name string) (circuit.State, bool) {
	for _, t := range f.targets {
		if t.Name == name {
			return t.breaker.State(), true
		}
	}
	return circuit.StateClosed, false
}
