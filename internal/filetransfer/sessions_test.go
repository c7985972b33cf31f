package filetransfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCache_FinishForgetsSession(t *testing.T) {
	cache, err := newSessionCache(0)
	require.NoError(t, err)

	session := cache.get("s3://bucket/key")
	session.reset("upload-1")
	session.setPart(0, "etag-1")
	require.Same(t, session, cache.get("s3://bucket/key"))

	session.finish()

	assert.Zero(t, cache.cache.Len())
	assert.Empty(t, session.getUploadID())
	assert.NotSame(t, session, cache.get("s3://bucket/key"))
}

func TestSessionCache_FinishKeepsNewerSession(t *testing.T) {
	cache, err := newSessionCache(1)
	require.NoError(t, err)

	old := cache.get("a")
	cache.get("b") // evicts a
	newer := cache.get("a")

	old.finish()

	assert.Same(t, newer, cache.get("a"))
}
