package provisioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketDecisionWithinWindow(t *testing.T) {
	const max = 5

	reset, permitted, newCount, remaining := bucketDecision(0, time.Second, time.Minute, max)
	assert.False(t, reset)
	assert.True(t, permitted)
	assert.Equal(t, 1, newCount)
	assert.Equal(t, max-1, remaining)
}

func TestBucketDecisionExactlyAtMaxAllowsLastRequest(t *testing.T) {
	const max = 5

	reset, permitted, newCount, remaining := bucketDecision(max-1, time.Second, time.Minute, max)
	assert.False(t, reset)
	assert.True(t, permitted)
	assert.Equal(t, max, newCount)
	assert.Equal(t, 0, remaining)
}

func TestBucketDecisionDeniesOneOverMax(t *testing.T) {
	const max = 5

	reset, permitted, newCount, remaining := bucketDecision(max, time.Second, time.Minute, max)
	assert.False(t, reset)
	assert.False(t, permitted)
	assert.Equal(t, max, newCount, "a denied call must not mutate the stored count")
	assert.Equal(t, 0, remaining)
}

func TestBucketDecisionResetsAfterWindowElapses(t *testing.T) {
	const max = 5

	reset, permitted, newCount, remaining := bucketDecision(max, time.Minute+time.Second, time.Minute, max)
	assert.True(t, reset)
	assert.True(t, permitted)
	assert.Equal(t, 1, newCount)
	assert.Equal(t, max-1, remaining)
}

func TestBucketDecisionAtWindowBoundaryDoesNotReset(t *testing.T) {
	// elapsed == window is not "elapsed" (strict >), so the bucket still denies.
	reset, permitted, _, _ := bucketDecision(3, time.Minute, time.Minute, 3)
	assert.False(t, reset)
	assert.False(t, permitted)
}
