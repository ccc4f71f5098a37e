// Package resilience guards calls to hosted backends with retries and a
// circuit breaker.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is a circuit breaker state.
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

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int `yaml:"max_failures" mapstructure:"max_failures"`
	// OpenTimeout is how long the circuit stays open before a trial call is allowed.
	OpenTimeout time.Duration `yaml:"open_timeout" mapstructure:"open_timeout"`
	// HalfOpenRequests is the number of successful trial calls that close the circuit.
	HalfOpenRequests int `yaml:"half_open_requests" mapstructure:"half_open_requests"`

	OnStateChange func(name string, from, to State) `yaml:"-" mapstructure:"-"`
	// Counts reports whether err should count as a failure. Nil counts every error.
	Counts func(err error) bool `yaml:"-" mapstructure:"-"`
	now    func() time.Time
}

// ApplyDefaults fills unset fields.
func (c *BreakerConfig) ApplyDefaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenRequests <= 0 {
		c.HalfOpenRequests = 1
	}
	if c.now == nil {
		c.now = time.Now
	}
}

// Breaker fails fast once a backend has failed MaxFailures times in a row.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg.ApplyDefaults()
	return &Breaker{cfg: cfg}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current state, moving open to half-open once the timeout elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool { return b.State() == StateOpen }

// Reset closes the circuit and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.failures = 0
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.current() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.inFlight < b.cfg.HalfOpenRequests {
			b.inFlight++
			return true
		}
	}
	return false
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil && (b.cfg.Counts == nil || b.cfg.Counts(err))
	state := b.current()
	if state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
	if !failed {
		switch state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.cfg.HalfOpenRequests {
				b.transition(StateClosed)
			}
		}
		return
	}

	b.failures++
	if state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
		b.openedAt = b.cfg.now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) current() State {
	if b.state == StateOpen && b.cfg.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		b.transition(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.successes = 0
	b.inFlight = 0
	if to == StateClosed {
		b.failures = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
