package dispatch

import "time"

// RetryPolicy is the explicit delivery policy for the dispatch queue. It is
// owned here and handed to the queue library; nothing inherits library
// defaults silently.
type RetryPolicy struct {
	// MaxAttempts bounds total delivery attempts, the first one included.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the delay exponentially per retry.
	Multiplier int
	// MaxDelay caps the computed delay; zero means uncapped.
	MaxDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		MaxDelay:    5 * time.Minute,
	}
}

// MaxRetries is the retry budget after the initial attempt.
func (p RetryPolicy) MaxRetries() int {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return p.MaxAttempts - 1
}

// Delay returns the backoff before the next attempt, where retried is the
// number of deliveries that already failed beyond the first (0 for the
// first retry).
func (p RetryPolicy) Delay(retried int) time.Duration {
	if retried < 0 {
		retried = 0
	}
	delay := p.BaseDelay
	for i := 0; i < retried; i++ {
		delay *= time.Duration(p.Multiplier)
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
