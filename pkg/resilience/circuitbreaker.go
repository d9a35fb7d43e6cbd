// Package resilience holds the fault-tolerance helpers used around the
// optional network dependencies and batch commits.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

// ErrCircuitOpen is returned while a breaker refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the phase of a Breaker. The numeric values are exported as the
// circuit_breaker_state gauge.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a Breaker opens and how long it stays open.
type BreakerConfig struct {
	// FailureThreshold consecutive failures open the breaker. Default 5.
	FailureThreshold int
	// Cooldown is how long an open breaker refuses calls before letting a
	// single trial call through. Default 30s.
	Cooldown time.Duration
}

// Breaker stops calling a failing dependency for a cool-down period so
// that callers fail fast instead of waiting on every attempt.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	gauge  prometheus.Gauge
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreaker returns a closed Breaker whose state is reported under name in
// m's circuit_breaker_state gauge. A nil m gets a private collector.
func NewBreaker(name string, cfg BreakerConfig, m *metrics.Metrics) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if m == nil {
		m = metrics.New()
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		gauge:  m.CircuitBreakerState.WithLabelValues(name),
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		now:    time.Now,
	}
	b.gauge.Set(float64(StateClosed))
	return b
}

// Execute runs fn unless the breaker is open. While half-open only one
// trial call runs at a time; its outcome closes or re-opens the breaker.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current phase.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, b.name, wait.Round(time.Millisecond))
		}
		b.transition(StateHalfOpen)
		b.trial = true
	case StateHalfOpen:
		if b.trial {
			return fmt.Errorf("%w: %s (trial call in progress)", ErrCircuitOpen, b.name)
		}
		b.trial = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.trial = false
			b.transition(StateClosed)
		}
		return
	}
	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.trial = false
		b.open()
	case b.state == StateClosed && b.failures >= b.cfg.FailureThreshold:
		b.open()
	}
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.transition(StateOpen)
	b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "cooldown", b.cfg.Cooldown)
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	b.logger.Info("circuit state changed", "from", b.state, "to", to)
	b.state = to
	b.gauge.Set(float64(to))
}
