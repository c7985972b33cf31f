package sentry_ext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupCache_SuppressesRecentRepeats(t *testing.T) {
	c, err := newDedupCache(0)
	require.NoError(t, err)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	ok, _ := c.admit("boom")
	assert.True(t, ok)
	ok, _ = c.admit("boom")
	assert.False(t, ok)
	ok, _ = c.admit("boom")
	assert.False(t, ok)
	ok, _ = c.admit("other")
	assert.True(t, ok)

	now = now.Add(dedupWindow)
	ok, suppressed := c.admit("boom")
	assert.True(t, ok)
	assert.Equal(t, 2, suppressed)

	now = now.Add(dedupWindow)
	ok, suppressed = c.admit("boom")
	assert.True(t, ok)
	assert.Zero(t, suppressed)
}

func TestDedupCache_EvictsOldest(t *testing.T) {
	c, err := newDedupCache(1)
	require.NoError(t, err)

	ok, _ := c.admit("a")
	assert.True(t, ok)
	ok, _ = c.admit("b")
	assert.True(t, ok)

	// "a" was evicted by "b".
	ok, _ = c.admit("a")
	assert.True(t, ok)
}
