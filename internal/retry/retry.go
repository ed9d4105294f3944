// Package retry is the single retry boundary for remote calls. Structural
// failures (action blocks, checkpoints, lost sessions) pass straight through
// so the orchestrator can transition state instead of hammering the API.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries        int           // Retries after the first attempt
	BaseDelay         time.Duration // Base for exponential backoff
	MaxDelay          time.Duration // Upper bound for any single backoff
	RetryableStatuses []int         // Status codes worth retrying
}

// DefaultRetryConfig returns the default retry configuration.
// Pattern: 1s, 2s, 4s (+ up to 1s jitter each), max 60s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		RetryableStatuses: []int{429, 500, 502, 503, 504},
	}
}

func (c *RetryConfig) retryableStatus(status int) bool {
	for _, s := range c.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// RetryFunc is a function that can be retried. attempt starts at 1.
type RetryFunc func(ctx context.Context, attempt int) error

// Executor runs RetryFuncs under a RetryConfig
type Executor struct {
	config *RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// Option customizes an Executor
type Option func(*Executor)

// WithSleep replaces the backoff wait; tests use it to avoid real delays
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithJitter replaces the random jitter source
func WithJitter(jitter func(max time.Duration) time.Duration) Option {
	return func(e *Executor) { e.jitter = jitter }
}

// NewExecutor creates an executor; a nil config uses DefaultRetryConfig
func NewExecutor(config *RetryConfig, opts ...Option) *Executor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	e := &Executor{
		config: config,
		sleep:  sleepContext,
		jitter: randomJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the executor's configuration
func (e *Executor) Config() *RetryConfig {
	return e.config
}

// Execute runs fn until it succeeds, returns a non-retryable error, or
// exhausts MaxRetries. The last error is in RetryResult.LastError.
func (e *Executor) Execute(ctx context.Context, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()
	result := &RetryResult{}

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := fn(ctx, attempt+1)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(startTime)
			if attempt > 0 {
				logger.WithFields(map[string]interface{}{
					"attempts":      result.Attempts,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}
			return result
		}
		result.LastError = err

		if !e.shouldRetry(err) {
			break
		}

		if attempt == e.config.MaxRetries {
			logger.WithFields(map[string]interface{}{
				"attempts": result.Attempts,
				"error":    err.Error(),
			}).Warn("Operation failed after max retry attempts")
			break
		}

		delay := e.backoff(attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":    result.Attempts,
			"maxRetries": e.config.MaxRetries,
			"delay":      delay,
			"error":      err.Error(),
		}).Debug("Operation failed, retrying with exponential backoff")

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			logger.WithError(sleepErr).Warn("Retry cancelled during backoff")
			result.LastError = sleepErr
			break
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// shouldRetry applies the classification order: structural errors never
// retry, status-coded errors retry only for listed statuses, anything else
// retries.
func (e *Executor) shouldRetry(err error) bool {
	if apperrors.IsNonRetryable(err) {
		return false
	}
	if status, ok := apperrors.StatusCode(err); ok {
		return e.config.retryableStatus(status)
	}
	return true
}

// backoff returns min(base*2^attempt + rand(0, base), max)
func (e *Executor) backoff(attempt int) time.Duration {
	exp := float64(e.config.BaseDelay) * math.Pow(2, float64(attempt))
	delay := exp + float64(e.jitter(e.config.BaseDelay))
	if delay > float64(e.config.MaxDelay) {
		delay = float64(e.config.MaxDelay)
	}
	return time.Duration(delay)
}

// Do runs fn through e and returns its value or the last error
func Do[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var value T
	result := e.Execute(ctx, func(ctx context.Context, _ int) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if !result.Success {
		var zero T
		return zero, result.LastError
	}
	return value, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
