package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, NewMemoryKeys(), time.Hour)

	_, err := s.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrNotFound)

	reserved, err := s.Reserve(ctx, "k1", "h1", "POST", "/v1/proposals/DSB-1/votes")
	require.NoError(t, err)
	require.True(t, reserved)

	reserved, err = s.Reserve(ctx, "k1", "h1", "POST", "/v1/proposals/DSB-1/votes")
	require.NoError(t, err)
	assert.False(t, reserved)

	_, err = s.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrInProgress)

	rec, err := s.Finalize(ctx, "k1", "h1", 201, []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "postgres", rec.ServedBy)

	rec, err = s.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Body))

	_, err = s.Lookup(ctx, "k1", "other")
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestWaitForCompletion(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, NewMemoryKeys(), time.Hour)
	s.poll = time.Millisecond

	_, err := s.Reserve(ctx, "k2", "h2", "POST", "/v1/proposals/DSB-2/execute")
	require.NoError(t, err)

	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = s.Finalize(ctx, "k2", "h2", 200, []byte(`{}`), "application/json")
	}()

	rec, err := s.WaitForCompletion(ctx, "k2", "h2")
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Status)

	_, err = s.Reserve(ctx, "k3", "h3", "POST", "/x")
	require.NoError(t, err)
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = s.WaitForCompletion(short, "k3", "h3")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, s.Release(ctx, "k3", "h3"))
	reserved, err := s.Reserve(ctx, "k3", "h3", "POST", "/x")
	require.NoError(t, err)
	assert.True(t, reserved)
}
