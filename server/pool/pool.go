// Package pool implements the session-affinity worker pool: the in-memory map
// of live sessions, the tiered resolution that materializes workers, and the
// dispatcher that performs the synchronous ask protocol.
package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bothub-it/bothub-nlp/plugin/engine"
	errcode "github.com/bothub-it/bothub-nlp/server/internal/errors"
	"github.com/bothub-it/bothub-nlp/server/registry"
	"github.com/bothub-it/bothub-nlp/store"
	"github.com/bothub-it/bothub-nlp/store/kv"
)

const sessionSnapshotPrefix = "session-snapshot:"

// Pool maps session keys to live workers on this instance. Resolution falls
// through three tiers: the local map, the snapshot cache in the coordination
// store, and finally the origin store of bot definitions.
type Pool struct {
	engine   engine.Engine
	origin   *store.Store
	kv       kv.Store
	registry *registry.Registry

	mu      sync.RWMutex
	entries map[string]*Entry

	// group collapses concurrent resolves of the same session so a key is
	// materialized at most once.
	group singleflight.Group

	// now is swappable so tests can step time.
	now func() time.Time
}

// New creates an empty pool.
func New(eng engine.Engine, origin *store.Store, kvStore kv.Store, reg *registry.Registry) *Pool {
	return &Pool{
		engine:   eng,
		origin:   origin,
		kv:       kvStore,
		registry: reg,
		entries:  make(map[string]*Entry),
		now:      time.Now,
	}
}

// SetNow swaps the pool's clock. Test hook.
func (p *Pool) SetNow(now func() time.Time) {
	p.now = now
}

// Resolve returns the session's entry, materializing a worker on a local
// miss. First hit wins: local map, then the snapshot cache, then the origin
// store. A key absent from all three yields SessionNotFound.
func (p *Pool) Resolve(ctx context.Context, sessionKey string) (*Entry, error) {
	if sessionKey == "" {
		return nil, errcode.InvalidArgument("session key is required")
	}

	p.mu.RLock()
	entry, ok := p.entries[sessionKey]
	p.mu.RUnlock()
	if ok {
		slog.Debug("reusing local worker", "session", sessionKey, "worker", entry.Worker().ID())
		return entry, nil
	}

	v, err, _ := p.group.Do(sessionKey, func() (interface{}, error) {
		// Re-check: another resolve may have landed the entry while
		// this one waited on the flight group.
		p.mu.RLock()
		entry, ok := p.entries[sessionKey]
		p.mu.RUnlock()
		if ok {
			return entry, nil
		}
		return p.resolveRemote(ctx, sessionKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// resolveRemote walks tiers 2 and 3.
func (p *Pool) resolveRemote(ctx context.Context, sessionKey string) (*Entry, error) {
	definition, hit, err := p.kv.Get(ctx, sessionSnapshotPrefix+sessionKey)
	if err != nil {
		slog.Warn("snapshot tier unavailable, falling through to origin", "session", sessionKey, "error", err)
	}
	if hit {
		slog.Info("materializing worker from snapshot cache", "session", sessionKey)
		return p.admit(ctx, sessionKey, definition)
	}

	def, err := p.origin.GetBotDefinition(ctx, &store.FindBotDefinition{SessionKey: &sessionKey})
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errcode.SessionNotFound(sessionKey)
	}

	// Warm the snapshot cache so cross-instance and cross-restart lookups
	// skip the origin store. Snapshots are immutable once written and
	// carry no TTL.
	if err := p.kv.Set(ctx, sessionSnapshotPrefix+sessionKey, def.Definition, 0); err != nil {
		slog.Warn("failed to write session snapshot", "session", sessionKey, "error", err)
	}

	slog.Info("materializing worker from origin store", "session", sessionKey)
	return p.admit(ctx, sessionKey, def.Definition)
}

// admit materializes a worker, inserts the entry and publishes ownership. A
// failed registry claim tears the worker down again: silent unregistered
// sessions are worse than a visible failure.
func (p *Pool) admit(ctx context.Context, sessionKey string, definition []byte) (*Entry, error) {
	model, err := p.engine.Materialize(ctx, definition)
	if err != nil {
		return nil, errcode.EngineFailure("failed to materialize model", err)
	}

	entry := newEntry(sessionKey, newWorker(model), p.now())

	p.mu.Lock()
	p.entries[sessionKey] = entry
	p.mu.Unlock()

	if err := p.registry.ClaimSession(ctx, sessionKey); err != nil {
		p.remove(sessionKey)
		entry.Worker().Terminate()
		return nil, err
	}
	return entry, nil
}

// Evict terminates one session and retracts its registry ownership. Used by
// the dispatcher to reap a wedged worker; the next resolve re-materializes
// cleanly.
func (p *Pool) Evict(ctx context.Context, sessionKey string) {
	p.mu.Lock()
	entry, ok := p.entries[sessionKey]
	if ok {
		delete(p.entries, sessionKey)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	if err := p.registry.ReleaseSession(ctx, sessionKey); err != nil {
		slog.Error("failed to release evicted session", "session", sessionKey, "error", err)
	}
	entry.Worker().Terminate()
	slog.Info("session evicted", "session", sessionKey)
}

// SweepIdle partitions the pool under an exclusive lock: entries idle for at
// least idleThreshold are dropped and handed to onEvict; survivors are handed
// to onKeep. The entry map is swapped to the surviving subset atomically. The
// callbacks run under the lock, so sweep duration bounds resolve latency.
func (p *Pool) SweepIdle(idleThreshold time.Duration, onKeep, onEvict func(*Entry)) (kept, evicted int) {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	survivors := make(map[string]*Entry, len(p.entries))
	for key, entry := range p.entries {
		if now.Sub(entry.LastActivity()) < idleThreshold {
			survivors[key] = entry
			if onKeep != nil {
				onKeep(entry)
			}
			continue
		}
		if onEvict != nil {
			onEvict(entry)
		}
		entry.Worker().Terminate()
		evicted++
	}
	p.entries = survivors
	return len(survivors), evicted
}

// SessionKeys returns the keys of all live sessions.
func (p *Pool) SessionKeys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.entries))
	for key := range p.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of live sessions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Close terminates every worker. Registry state is left to TTL expiry; on a
// clean shutdown the instance heartbeat lapses and takes ownership with it.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, entry := range p.entries {
		entry.Worker().Terminate()
	}
	p.entries = make(map[string]*Entry)
}

func (p *Pool) remove(sessionKey string) {
	p.mu.Lock()
	delete(p.entries, sessionKey)
	p.mu.Unlock()
}
