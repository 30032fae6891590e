package api

import (
	"time"

	"github.com/sethvargo/go-retry"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeTransient
	outcomePermanent
)

type retryState int

const (
	stateAttempt retryState = iota
	stateBackoff
	stateSuccess
	statePermanentFailure
	stateExhausted
)

func (s retryState) String() string {
	switch s {
	case stateAttempt:
		return "attempt"
	case stateBackoff:
		return "backoff"
	case stateSuccess:
		return "success"
	case statePermanentFailure:
		return "permanent_failure"
	case stateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// retryMachine walks one upstream call through
// Attempt{n} -> Success | Backoff -> Attempt{n+1} | PermanentFailure | Exhausted.
// It never sleeps or performs I/O itself.
type retryMachine struct {
	policy  RetryPolicy
	state   retryState
	attempt int
	backoff retry.Backoff
}

func newRetryMachine(policy RetryPolicy) *retryMachine {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Millisecond
	}

	b := retry.NewExponential(policy.BaseDelay)
	if policy.MaxDelay > 0 {
		b = retry.WithCappedDuration(policy.MaxDelay, b)
	}

	return &retryMachine{
		policy:  policy,
		state:   stateAttempt,
		attempt: 1,
		backoff: b,
	}
}

// observe records the outcome of the current attempt. For a transient outcome
// with attempts left it returns stateBackoff and the delay to wait; a positive
// hint (an upstream Retry-After) replaces the exponential delay.
func (m *retryMachine) observe(o outcome, hint time.Duration) (retryState, time.Duration) {
	switch o {
	case outcomeSuccess:
		m.state = stateSuccess
		return m.state, 0
	case outcomePermanent:
		m.state = statePermanentFailure
		return m.state, 0
	}

	if m.attempt >= m.policy.MaxAttempts {
		m.state = stateExhausted
		return m.state, 0
	}

	delay, _ := m.backoff.Next()
	if hint > 0 {
		delay = hint
	}
	m.state = stateBackoff
	return m.state, delay
}

// advance leaves the backoff state and starts the next attempt.
func (m *retryMachine) advance() {
	if m.state != stateBackoff {
		return
	}
	m.attempt++
	m.state = stateAttempt
}
