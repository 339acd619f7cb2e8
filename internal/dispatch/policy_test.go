package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2, p.MaxRetries())

	assert.Equal(t, 2*time.Second, p.Delay(0))
	assert.Equal(t, 4*time.Second, p.Delay(1))
	assert.Equal(t, 8*time.Second, p.Delay(2))
}

func TestDelayIsCapped(t *testing.T) {
	p := DefaultRetryPolicy()

	// 2s * 2^10 is far past the cap.
	assert.Equal(t, p.MaxDelay, p.Delay(10))
}

func TestDelayNegativeRetriedClamps(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, p.BaseDelay, p.Delay(-3))
}

func TestMaxRetriesSingleAttempt(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 1}
	assert.Equal(t, 0, p.MaxRetries())

	p = RetryPolicy{MaxAttempts: 0}
	assert.Equal(t, 0, p.MaxRetries())
}
