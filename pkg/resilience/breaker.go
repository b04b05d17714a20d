package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

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

type BreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing.
	Cooldown      time.Duration
	OnStateChange func(from, to State)
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	mu          sync.Mutex
	cfg         BreakerConfig
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	now         func() time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether Execute would run fn now, without changing state.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != StateOpen || b.now().Sub(b.lastFailure) >= b.cfg.Cooldown
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	wait := b.cfg.Cooldown - b.now().Sub(b.lastFailure)
	if wait > 0 {
		return fmt.Errorf("%w: retry in %v", ErrCircuitOpen, wait.Round(time.Millisecond))
	}
	b.transition(StateHalfOpen)
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = b.now()
		if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if b.cfg.OnStateChange != nil {
		go b.cfg.OnStateChange(from, to)
	}
}
