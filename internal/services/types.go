package services

// RetryStrategy decides how long to wait before the next attempt of a failed call.
type RetryStrategy interface {
	NextBackoff(attempt int) int64 // ms, negative to stop
}

// SimpleRetryStrategy provides basic exponential backoff.
// MaxAttempts counts every call, the first one included.
type SimpleRetryStrategy struct {
	MaxAttempts int
	BaseDelayMs int64
}

// NextBackoff calculates the backoff in milliseconds before attempt number
// attempt (1-based retries), or -1 once MaxAttempts calls have been made.
func (s *SimpleRetryStrategy) NextBackoff(attempt int) int64 {
	if s.MaxAttempts <= 0 {
		return -1
	}
	if attempt >= s.MaxAttempts {
		return -1
	}
	// BaseDelay * 2^attempt, capped at 30 seconds
	backoff := s.BaseDelayMs * (1 << attempt)
	maxDelay := int64(30000)
	if backoff > maxDelay || backoff < 0 {
		backoff = maxDelay
	}
	return backoff
}

// NoRetry never retries.
var NoRetry RetryStrategy = &SimpleRetryStrategy{MaxAttempts: 1}
