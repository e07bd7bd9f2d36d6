package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardAllowsFreshIdentity(t *testing.T) {
	guard := NewAttemptGuard(newMemoryStore())

	assert.NoError(t, guard.CheckAllowed(context.Background(), "identity-1"))
}

func TestGuardLocksAfterThreshold(t *testing.T) {
	store := newMemoryStore()
	guard := NewAttemptGuard(store)
	ctx := context.Background()

	for range lockoutThreshold {
		require.NoError(t, guard.RecordFailure(ctx, "identity-1"))
	}

	err := guard.CheckAllowed(ctx, "identity-1")
	var locked ErrLoginLocked
	require.ErrorAs(t, err, &locked)
	assert.WithinDuration(t, time.Now().UTC().Add(lockoutWindow), locked.Until, 5*time.Second)
}

func TestGuardStaysOpenBelowThreshold(t *testing.T) {
	store := newMemoryStore()
	guard := NewAttemptGuard(store)
	ctx := context.Background()

	for range lockoutThreshold - 1 {
		require.NoError(t, guard.RecordFailure(ctx, "identity-1"))
	}

	assert.NoError(t, guard.CheckAllowed(ctx, "identity-1"))
}

func TestGuardLockLapsesWithoutSuccess(t *testing.T) {
	store := newMemoryStore()
	guard := NewAttemptGuard(store)
	ctx := context.Background()

	store.setAttempt("identity-1", lockoutThreshold, time.Now().UTC().Add(-lockoutWindow-time.Minute))

	assert.NoError(t, guard.CheckAllowed(ctx, "identity-1"))

	// The count does not reset when the lock lapses; only a success clears it.
	attempt, err := store.GetAttempt(ctx, "identity-1")
	require.NoError(t, err)
	assert.Equal(t, lockoutThreshold, attempt.FailedCount)
}

func TestGuardSuccessResetsCounter(t *testing.T) {
	store := newMemoryStore()
	guard := NewAttemptGuard(store)
	ctx := context.Background()

	store.setAttempt("identity-1", lockoutThreshold, time.Now().UTC())

	require.NoError(t, guard.RecordSuccess(ctx, "identity-1"))

	attempt, err := store.GetAttempt(ctx, "identity-1")
	require.NoError(t, err)
	assert.Equal(t, 0, attempt.FailedCount)
	assert.Nil(t, attempt.LastFailureAt)
	assert.NoError(t, guard.CheckAllowed(ctx, "identity-1"))
}
