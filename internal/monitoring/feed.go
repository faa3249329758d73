package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFeedSize is the number of entries buffered before Publish starts dropping
const DefaultFeedSize = 256

// Entry describes one answered request
type Entry struct {
	Time     time.Time
	Method   string
	Path     string
	Status   int
	Format   string
	ClientIP string
	Bytes    int
	Duration time.Duration
}

// Feed fans answered requests out to a single live observer.
// Publish never blocks the request path; entries are dropped when the reader falls behind.
type Feed struct {
	entries chan Entry
	dropped atomic.Int64
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// NewFeed creates a feed buffering up to size entries
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{entries: make(chan Entry, size)}
}

// Observe implements the transport observer hook
func (f *Feed) Observe(e Entry) {
	f.Publish(e)
}

// Publish offers e to the reader and reports whether it was queued
func (f *Feed) Publish(e Entry) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return false
	}

	select {
	case f.entries <- e:
		return true
	default:
		f.dropped.Add(1)
		return false
	}
}

// Entries returns the receive side of the feed. It is closed by Close.
func (f *Feed) Entries() <-chan Entry {
	return f.entries
}

// Dropped returns how many entries were discarded
func (f *Feed) Dropped() int64 {
	return f.dropped.Load()
}

// Close stops the feed. Later publishes are ignored.
func (f *Feed) Close() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.entries)
		f.mu.Unlock()
	})
}
