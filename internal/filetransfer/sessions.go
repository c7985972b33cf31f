package filetransfer

import (
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// defaultSessionCacheSize is the number of objects whose upload state is
// remembered.
const defaultSessionCacheSize = 1024

// uploadSession is the state of an upload that spans several clients.
//
// The upload engine creates a new client for every chunk attempt, so
// anything an upload must remember between chunks is stored here.
type uploadSession struct {
	mu sync.Mutex

	// uploadID identifies an S3 multipart upload.
	uploadID string

	// parts maps chunk offsets to the part's identifier, which is the ETag
	// for S3 and the block ID for Azure.
	parts map[int64]string

	// release drops the session from its cache.
	release func()
}

// setPart records a successfully uploaded chunk.
func (s *uploadSession) setPart(offset int64, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.parts == nil {
		s.parts = make(map[int64]string)
	}
	s.parts[offset] = id
}

// partNumber returns the 1-based index of the chunk at offset among the
// session's parts.
func (s *uploadSession) partNumber(offset int64) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int32(1)
	for partOffset := range s.parts {
		if partOffset < offset {
			n++
		}
	}
	return n
}

// sortedParts returns the part identifiers ordered by offset.
func (s *uploadSession) sortedParts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	offsets := make([]int64, 0, len(s.parts))
	for offset := range s.parts {
		offsets = append(offsets, offset)
	}
	slices.Sort(offsets)

	ids := make([]string, len(offsets))
	for i, offset := range offsets {
		ids[i] = s.parts[offset]
	}
	return ids
}

// reset forgets the session's upload.
func (s *uploadSession) reset(uploadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploadID = uploadID
	s.parts = nil
}

// finish forgets the session once its object is complete.
func (s *uploadSession) finish() {
	s.reset("")
	if s.release != nil {
		s.release()
	}
}

func (s *uploadSession) getUploadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadID
}

// sessionCache holds the sessions of recently uploaded objects.
type sessionCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func newSessionCache(size int) (*sessionCache, error) {
	if size <= 0 {
		size = defaultSessionCacheSize
	}

	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &sessionCache{cache: cache}, nil
}

// get returns the session for the object, creating it if needed.
func (c *sessionCache) get(key string) *uploadSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session, ok := c.cache.Get(key); ok {
		return session.(*uploadSession)
	}

	session := &uploadSession{}
	session.release = func() { c.remove(key, session) }
	c.cache.Add(key, session)
	return session
}

// remove forgets the object's session if it is still the cached one.
func (c *sessionCache) remove(key string, session *uploadSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache.Peek(key); ok && cached == session {
		c.cache.Remove(key)
	}
}
