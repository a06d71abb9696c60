package pool

import (
	"context"
	"sync"
	"time"
)

// Entry is one active session on this instance: the worker handle plus the
// bookkeeping the dispatcher and the eviction sweep need. An entry owns its
// worker for the entry's whole lifetime; no two entries share one.
type Entry struct {
	sessionKey string
	worker     *Worker

	// busy serializes asks on this session. A second concurrent ask waits
	// here rather than interleaving reads on the worker channel.
	busy chan struct{}

	mu           sync.RWMutex
	lastActivity time.Time
}

func newEntry(sessionKey string, worker *Worker, now time.Time) *Entry {
	return &Entry{
		sessionKey:   sessionKey,
		worker:       worker,
		busy:         make(chan struct{}, 1),
		lastActivity: now,
	}
}

// SessionKey returns the opaque session identifier.
func (e *Entry) SessionKey() string {
	return e.sessionKey
}

// Worker returns the session's worker handle.
func (e *Entry) Worker() *Worker {
	return e.worker
}

// LastActivity returns when the session last served an ask.
func (e *Entry) LastActivity() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastActivity
}

func (e *Entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastActivity = now
	e.mu.Unlock()
}

// acquire takes the per-session ask slot, honoring the caller's context.
func (e *Entry) acquire(ctx context.Context) error {
	select {
	case e.busy <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Entry) release() {
	<-e.busy
}
