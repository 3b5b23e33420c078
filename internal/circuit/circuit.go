package circuit

import (
	"sync"
	"time"
)

// State is the health state of one sending identity.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Circuit is a per-identity failure-isolation state machine.
//
// Transitions:
// - closed -> open: consecutive failures reach the threshold
// - open -> half_open: reset timeout elapsed since the last failure,
//   evaluated lazily at the top of every public operation (no timers)
// - half_open -> closed: one success
// - half_open -> open: one failure, regardless of threshold
//
// All operations are O(1) and never block beyond the circuit mutex.
type Circuit struct {
	mu sync.Mutex

	identityID string
	label      string

	state               State
	consecutiveFailures uint
	failureThreshold    uint
	resetTimeout        time.Duration

	lastFailureAt    time.Time
	lastSuccessAt    time.Time
	lastErrorCode    int
	lastErrorMessage string

	now func() time.Time
}

// Options tunes a circuit at creation time. Zero values use defaults.
type Options struct {
	FailureThreshold uint
	ResetTimeout     time.Duration
}

const (
	defaultFailureThreshold = 3
	defaultResetTimeout     = 300 * time.Second
)

func New(identityID, label string, opts Options) *Circuit {
	c := &Circuit{
		identityID:       identityID,
		label:            label,
		state:            StateClosed,
		failureThreshold: opts.FailureThreshold,
		resetTimeout:     opts.ResetTimeout,
		now:              time.Now,
	}
	if c.failureThreshold == 0 {
		c.failureThreshold = defaultFailureThreshold
	}
	if c.resetTimeout <= 0 {
		c.resetTimeout = defaultResetTimeout
	}
	return c
}

// CanExecute reports whether an attempt may be routed through this identity.
// It may transition open -> half_open when the reset timeout has elapsed.
func (c *Circuit) CanExecute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLocked(c.now())
	return c.state != StateOpen
}

// RegisterSuccess records a successful attempt.
func (c *Circuit) RegisterSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.refreshLocked(now)

	c.consecutiveFailures = 0
	c.lastSuccessAt = now
	if c.state == StateHalfOpen {
		c.state = StateClosed
	}
}

// RegisterFailure records a failed attempt. A failure during a half-open
// trial reopens the circuit immediately; otherwise the circuit opens once
// consecutive failures reach the threshold.
func (c *Circuit) RegisterFailure(code int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.refreshLocked(now)

	c.consecutiveFailures++
	c.lastFailureAt = now
	c.lastErrorCode = code
	c.lastErrorMessage = message

	switch c.state {
	case StateHalfOpen:
		c.state = StateOpen
	case StateClosed:
		if c.consecutiveFailures >= c.failureThreshold {
			c.state = StateOpen
		}
	case StateOpen:
		// Already open; the cooldown window restarts from this failure.
	}
}

// Reset forces the circuit closed and zeroes the failure counter.
// Intended for manual operator intervention.
func (c *Circuit) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateClosed
	c.consecutiveFailures = 0
	c.lastErrorCode = 0
	c.lastErrorMessage = ""
}

// Status returns a point-in-time snapshot. Like every other operation it
// applies the lazy open -> half_open transition first.
func (c *Circuit) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLocked(c.now())

	s := Status{
		IdentityID:          c.identityID,
		Label:               c.label,
		State:               c.state,
		ConsecutiveFailures: c.consecutiveFailures,
		FailureThreshold:    c.failureThreshold,
		ResetTimeoutSeconds: int(c.resetTimeout / time.Second),
		LastErrorCode:       c.lastErrorCode,
		LastErrorMessage:    c.lastErrorMessage,
	}
	if !c.lastFailureAt.IsZero() {
		ts := c.lastFailureAt
		s.LastFailureAt = &ts
	}
	if !c.lastSuccessAt.IsZero() {
		ts := c.lastSuccessAt
		s.LastSuccessAt = &ts
	}
	return s
}

// refreshLocked applies the staleness-based open -> half_open transition.
// Pure function of (state, lastFailureAt, now); caller must hold c.mu.
func (c *Circuit) refreshLocked(now time.Time) {
	if c.state != StateOpen {
		return
	}
	if c.lastFailureAt.IsZero() {
		// open implies lastFailureAt is set; guard anyway.
		return
	}
	if now.Sub(c.lastFailureAt) >= c.resetTimeout {
		c.state = StateHalfOpen
	}
}

// Status is the read-only view of a circuit exposed to operators.
type Status struct {
	IdentityID          string     `json:"identity_id"`
	Label               string     `json:"label,omitempty"`
	State               State      `json:"state"`
	ConsecutiveFailures uint       `json:"consecutive_failures"`
	FailureThreshold    uint       `json:"failure_threshold"`
	ResetTimeoutSeconds int        `json:"reset_timeout_seconds"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastErrorCode       int        `json:"last_error_code,omitempty"`
	LastErrorMessage    string     `json:"last_error_message,omitempty"`
}
