// Package circuitbreaker stops calling a remote endpoint that keeps failing.
// The engine puts one in front of profile refreshes so a dead endpoint
// defers engagement instead of silently disabling the post-count filter.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/growth-engine/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the service has recovered
	StateHalfOpen State = "half_open"
)

// Config configures a circuit breaker
type Config struct {
	Name string
	// MaxFailures is the consecutive failure count that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before a trial call
	Timeout time.Duration
	// HalfOpenSuccesses is the trial successes needed to close again
	HalfOpenSuccesses int
	// IsFailure decides which errors count; nil counts every error
	IsFailure func(error) bool
	// Now is the clock; nil uses time.Now
	Now func() time.Time
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:              name,
		MaxFailures:       5,
		Timeout:           10 * time.Minute,
		HalfOpenSuccesses: 1,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name              string
	maxFailures       int
	timeout           time.Duration
	halfOpenSuccesses int
	isFailure         func(error) bool
	now               func() time.Time

	mu               sync.Mutex
	state            State
	consecutiveFails int
	trialSuccesses   int
	totalCalls       int
	totalFailures    int
	lastFailureTime  time.Time
	lastStateChange  time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *Config) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig("default")
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	isFailure := config.IsFailure
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	maxFailures := config.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	halfOpen := config.HalfOpenSuccesses
	if halfOpen <= 0 {
		halfOpen = 1
	}

	return &CircuitBreaker{
		name:              config.Name,
		maxFailures:       maxFailures,
		timeout:           config.Timeout,
		halfOpenSuccesses: halfOpen,
		isFailure:         isFailure,
		now:               now,
		state:             StateClosed,
		lastStateChange:   now(),
	}
}

// Allow reports whether a call may proceed, moving open to half-open once
// the timeout has elapsed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) < cb.timeout {
			return false
		}
		cb.setState(StateHalfOpen)
		logging.WithFields(map[string]interface{}{
			"circuitBreaker": cb.name,
			"state":          StateHalfOpen,
		}).Info("Circuit breaker transitioning to half-open")
		return true
	default:
		return true
	}
}

// Record feeds a call outcome into the breaker
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++
	if cb.isFailure(err) {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.consecutiveFails = 0

	if cb.state == StateHalfOpen {
		cb.trialSuccesses++
		if cb.trialSuccesses >= cb.halfOpenSuccesses {
			cb.setState(StateClosed)
			logging.WithFields(map[string]interface{}{
				"circuitBreaker": cb.name,
				"state":          StateClosed,
			}).Info("Circuit breaker closed after successful recovery")
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.totalFailures++
	cb.consecutiveFails++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFails >= cb.maxFailures {
			cb.setState(StateOpen)
			logging.WithFields(map[string]interface{}{
				"circuitBreaker":   cb.name,
				"state":            StateOpen,
				"consecutiveFails": cb.consecutiveFails,
			}).Warn("Circuit breaker opened due to failures")
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
		logging.WithFields(map[string]interface{}{
			"circuitBreaker": cb.name,
			"state":          StateOpen,
		}).Warn("Circuit breaker reopened after failure in half-open state")
	}
}

func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.trialSuccesses = 0
	cb.lastStateChange = cb.now()
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	TotalCalls       int       `json:"totalCalls"`
	TotalFailures    int       `json:"totalFailures"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	LastFailureTime  time.Time `json:"lastFailureTime"`
	LastStateChange  time.Time `json:"lastStateChange"`
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() *Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return &Stats{
		Name:             cb.name,
		State:            cb.state,
		TotalCalls:       cb.totalCalls,
		TotalFailures:    cb.totalFailures,
		ConsecutiveFails: cb.consecutiveFails,
		LastFailureTime:  cb.lastFailureTime,
		LastStateChange:  cb.lastStateChange,
	}
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.consecutiveFails = 0

	logging.WithField("circuitBreaker", cb.name).Info("Circuit breaker manually reset")
}
