package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/sprintkit/internal/history"
)

func TestAppendAndEntries(t *testing.T) {
	ctx := context.Background()
	s := New()

	sess, err := s.Open(ctx, "interviewer_01")
	require.NoError(t, err)
	assert.Equal(t, "interviewer_01", sess.ID())

	require.NoError(t, sess.Append(ctx, history.Entry{Role: history.RoleHuman, Text: "hello"}))
	require.NoError(t, sess.Append(ctx, history.Entry{Role: history.RoleAI, Text: "hi there"}))

	entries, err := sess.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, history.RoleHuman, entries[0].Role)
	assert.Equal(t, "hello", entries[0].Text)
	assert.False(t, entries[0].At.IsZero(), "timestamps are assigned on append")
	assert.Equal(t, history.RoleAI, entries[1].Role)
}

func TestSessionIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.Open(ctx, "interviewer_01")
	require.NoError(t, err)
	b, err := s.Open(ctx, "expert_01")
	require.NoError(t, err)

	require.NoError(t, a.Append(ctx, history.Entry{Role: history.RoleHuman, Text: "for a"}))

	entries, err := b.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInvalidRole(t *testing.T) {
	ctx := context.Background()
	s := New()

	sess, err := s.Open(ctx, "s1")
	require.NoError(t, err)
	err = sess.Append(ctx, history.Entry{Role: "system", Text: "nope"})
	assert.Error(t, err)
}

func TestEmptySessionID(t *testing.T) {
	_, err := New().Open(context.Background(), "")
	assert.Error(t, err)
}

func TestIdleExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := New(WithTTL(time.Minute), WithClock(clock))

	sess, err := s.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, sess.Append(ctx, history.Entry{Role: history.RoleHuman, Text: "hello"}))
	assert.Equal(t, 1, s.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, s.Len(), "idle sessions are swept")
}

func TestActivityRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := New(WithTTL(time.Minute), WithClock(clock))
	sess, err := s.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, sess.Append(ctx, history.Entry{Role: history.RoleHuman, Text: "one"}))

	// Reads count as activity and push the idle deadline out.
	now = now.Add(45 * time.Second)
	_, err = sess.Entries(ctx)
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, s.Len())

	entries, err := sess.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExpiredMidConversationRestartsLog(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := New(WithTTL(time.Minute), WithClock(clock))
	sess, err := s.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, sess.Append(ctx, history.Entry{Role: history.RoleHuman, Text: "old"}))

	now = now.Add(2 * time.Minute)
	// Trigger a sweep through another store access.
	_, err = s.Open(ctx, "s2")
	require.NoError(t, err)

	// The open handle keeps working; the log restarts fresh.
	require.NoError(t, sess.Append(ctx, history.Entry{Role: history.RoleHuman, Text: "new"}))
	entries, err := sess.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Text)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	s := New()
	sess, err := s.Open(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, sess.Close(ctx))
	require.NoError(t, sess.Close(ctx), "close is idempotent")

	assert.Error(t, sess.Append(ctx, history.Entry{Role: history.RoleHuman, Text: "x"}))
	_, err = sess.Entries(ctx)
	assert.Error(t, err)

	// A fresh handle to the same session still works.
	again, err := s.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, again.Append(ctx, history.Entry{Role: history.RoleAI, Text: "y"}))
}
