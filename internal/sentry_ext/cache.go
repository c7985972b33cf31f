package sentry_ext

import (
	"crypto/sha256"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	// dedupWindow is how long repeats of an event are suppressed.
	dedupWindow = 5 * time.Minute

	defaultCacheSize = 100
)

// recentEvent is a cache entry for an event sent to Sentry.
type recentEvent struct {
	sentAt time.Time

	// suppressed counts repeats dropped since sentAt.
	suppressed int
}

// dedupCache drops repeats of recently sent events.
//
// A failing backend tends to fail every file the same way; only the first
// failure in each window is sent.
type dedupCache struct {
	events *lru.Cache
	now    func() time.Time
}

func newDedupCache(size int) (*dedupCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}

	events, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &dedupCache{events: events, now: time.Now}, nil
}

// admit reports whether an event with the message should be sent.
//
// When it should, suppressed is the number of repeats dropped since the
// event was last sent.
func (c *dedupCache) admit(msg string) (ok bool, suppressed int) {
	key := sha256.Sum256([]byte(msg))
	now := c.now()

	if value, exists := c.events.Get(key); exists {
		event := value.(*recentEvent)
		if now.Sub(event.sentAt) < dedupWindow {
			event.suppressed++
			return false, 0
		}
		suppressed = event.suppressed
	}

	c.events.Add(key, &recentEvent{sentAt: now})
	return true, suppressed
}
