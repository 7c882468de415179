package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureOutcomeProvision(t *testing.T) {
	cases := []struct {
		name          string
		attempt       int
		maxAttempts   int
		retryable     bool
		wantExhausted bool
		wantStatus    Status
	}{
		{"retryable under max", 1, 3, true, false, StatusQueued},
		{"retryable at max", 3, 3, true, true, StatusFailed},
		{"retryable over max", 4, 3, true, true, StatusFailed},
		{"non-retryable under max", 1, 3, false, true, StatusFailed},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			exhausted, status := failureOutcome(ActionProvision, c.attempt, c.maxAttempts, c.retryable)
			assert.Equal(t, c.wantExhausted, exhausted)
			assert.Equal(t, c.wantStatus, status)
		})
	}
}

func TestFailureOutcomeDeleteNeverFails(t *testing.T) {
	cases := []struct {
		name        string
		attempt     int
		maxAttempts int
		retryable   bool
	}{
		{"retryable under max", 1, 3, true},
		{"exhausted by attempts", 3, 3, true},
		{"non-retryable", 1, 3, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, status := failureOutcome(ActionDelete, c.attempt, c.maxAttempts, c.retryable)
			assert.Equal(t, StatusDeleting, status, "DELETE must never surface FAILED")
		})
	}
}

func TestFailureOutcomeExhaustionFlag(t *testing.T) {
	exhausted, _ := failureOutcome(ActionDelete, 3, 3, true)
	assert.True(t, exhausted, "attempt reaching max_attempts must be exhausted")

	exhausted, _ = failureOutcome(ActionDelete, 1, 3, false)
	assert.True(t, exhausted, "non-retryable error must be exhausted regardless of attempt count")

	exhausted, _ = failureOutcome(ActionDelete, 1, 3, true)
	assert.False(t, exhausted, "retryable error under max_attempts must not be exhausted")
}
