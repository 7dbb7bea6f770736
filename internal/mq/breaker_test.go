package mq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBreaker(limit int, cooldown time.Duration) (*Breaker, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(limit, cooldown)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, StateClosed, b.State(), "a success resets the count")
	require.True(t, b.CanAttempt())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.False(t, b.CanAttempt())
}

func TestBreaker_HalfOpenAllowsOneTrial(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.RecordFailure()

	*now = now.Add(59 * time.Second)
	require.False(t, b.CanAttempt())

	*now = now.Add(time.Second)
	require.True(t, b.CanAttempt())
	require.Equal(t, StateHalfOpen, b.State())
	require.False(t, b.CanAttempt(), "trial publish already in flight")

	b.RecordSuccess()
	require.Equal(t, StateClosed, b.State())
	require.True(t, b.CanAttempt())
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.RecordFailure()

	*now = now.Add(time.Minute)
	require.True(t, b.CanAttempt())
	b.RecordFailure()

	require.Equal(t, StateOpen, b.State())
	require.False(t, b.CanAttempt())

	*now = now.Add(time.Minute)
	require.True(t, b.CanAttempt())
}

func TestBreakerState_String(t *testing.T) {
	require.Equal(t, "closed", StateClosed.String())
	require.Equal(t, "open", StateOpen.String())
	require.Equal(t, "half-open", StateHalfOpen.String())
}
