// Package registry maintains the fleet-wide session bookkeeping in the shared
// coordination store: instance heartbeats, per-instance session lists and the
// memory-gated availability set.
//
// The registry is advisory, not authoritative. It exists so a router can
// prefer instances under the memory cutoff and keep session affinity; it does
// not enforce mutual exclusion of worker execution. Every operation is atomic
// per key only — a racing reader can observe an ownership key without the
// matching session-list entry, and ownership races between instances resolve
// by last-writer-wins with TTL expiry as the backstop.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errcode "github.com/bothub-it/bothub-nlp/server/internal/errors"
	"github.com/bothub-it/bothub-nlp/store/kv"
)

const (
	instanceAlivePrefix    = "instance-alive:"
	sessionOwnerPrefix     = "session-owner:"
	instanceSessionsPrefix = "instance-sessions:"
	availableInstancesKey  = "available-instances"
)

// Registry publishes and reads this instance's records in the coordination
// store.
type Registry struct {
	kv         kv.Store
	instanceID string
	ttl        time.Duration
}

// New creates a registry for the given instance identity. ttl is attached to
// the heartbeat, ownership and session-list keys; it must exceed the sweep
// interval so one missed sweep does not lapse them.
func New(store kv.Store, instanceID string, ttl time.Duration) *Registry {
	return &Registry{
		kv:         store,
		instanceID: instanceID,
		ttl:        ttl,
	}
}

// InstanceID returns this instance's registry identity.
func (r *Registry) InstanceID() string {
	return r.instanceID
}

// Announce registers this instance: heartbeat key, a fresh (empty) session
// list and membership in the availability set. Any failure here is fatal to
// startup — the process must not serve without a registry presence.
func (r *Registry) Announce(ctx context.Context) error {
	if err := r.Heartbeat(ctx); err != nil {
		return err
	}
	// A restart reuses the instance address; drop whatever session list a
	// previous incarnation left behind.
	if err := r.kv.Delete(ctx, instanceSessionsPrefix+r.instanceID); err != nil {
		return errcode.RegistryWriteFailure("failed to reset session list", err)
	}
	if err := r.kv.SetAdd(ctx, availableInstancesKey, r.instanceID); err != nil {
		return errcode.RegistryWriteFailure("failed to join availability set", err)
	}
	slog.Info("instance announced", "instance", r.instanceID, "ttl", r.ttl)
	return nil
}

// Heartbeat refreshes the instance-alive TTL. Called once per eviction sweep.
func (r *Registry) Heartbeat(ctx context.Context) error {
	if err := r.kv.Set(ctx, instanceAlivePrefix+r.instanceID, []byte("1"), r.ttl); err != nil {
		return errcode.RegistryWriteFailure("failed to refresh heartbeat", err)
	}
	return nil
}

// ClaimSession records this instance as the owner of a session. The owner key
// is written first, then the session list; a failure on the first write
// aborts before the second so no orphaned list entry is left behind.
func (r *Registry) ClaimSession(ctx context.Context, sessionKey string) error {
	if err := r.kv.Set(ctx, sessionOwnerPrefix+sessionKey, []byte(r.instanceID), r.ttl); err != nil {
		return errcode.RegistryWriteFailure(fmt.Sprintf("failed to claim session %s", sessionKey), err)
	}
	if err := r.kv.SetAdd(ctx, instanceSessionsPrefix+r.instanceID, sessionKey); err != nil {
		return errcode.RegistryWriteFailure(fmt.Sprintf("failed to record session %s", sessionKey), err)
	}
	return nil
}

// RefreshSession extends the ownership TTL for a surviving session.
func (r *Registry) RefreshSession(ctx context.Context, sessionKey string) error {
	if err := r.kv.Set(ctx, sessionOwnerPrefix+sessionKey, []byte(r.instanceID), r.ttl); err != nil {
		return errcode.RegistryWriteFailure(fmt.Sprintf("failed to refresh session %s", sessionKey), err)
	}
	return nil
}

// ReleaseSession retracts ownership of an evicted session.
func (r *Registry) ReleaseSession(ctx context.Context, sessionKey string) error {
	if err := r.kv.Delete(ctx, sessionOwnerPrefix+sessionKey); err != nil {
		return errcode.RegistryWriteFailure(fmt.Sprintf("failed to release session %s", sessionKey), err)
	}
	if err := r.kv.SetRemove(ctx, instanceSessionsPrefix+r.instanceID, sessionKey); err != nil {
		return errcode.RegistryWriteFailure(fmt.Sprintf("failed to unlist session %s", sessionKey), err)
	}
	return nil
}

// PublishSessions rewrites this instance's session list from the live pool
// contents and attaches the registry TTL, so a crashed instance's list
// expires with its heartbeat instead of dangling forever.
func (r *Registry) PublishSessions(ctx context.Context, sessionKeys []string) error {
	key := instanceSessionsPrefix + r.instanceID
	if err := r.kv.Delete(ctx, key); err != nil {
		return errcode.RegistryWriteFailure("failed to rewrite session list", err)
	}
	if len(sessionKeys) == 0 {
		return nil
	}
	if err := r.kv.SetAdd(ctx, key, sessionKeys...); err != nil {
		return errcode.RegistryWriteFailure("failed to rewrite session list", err)
	}
	if err := r.kv.Expire(ctx, key, r.ttl); err != nil {
		return errcode.RegistryWriteFailure("failed to expire session list", err)
	}
	return nil
}

// UpdateAvailability adds this instance to the availability set when memory
// usage is at or below the cutoff and removes it otherwise. Membership
// updates use native set primitives, so concurrent updates from other
// instances are not lost.
func (r *Registry) UpdateAvailability(ctx context.Context, memUsedPercent, cutoffPercent float64) error {
	if memUsedPercent <= cutoffPercent {
		if err := r.kv.SetAdd(ctx, availableInstancesKey, r.instanceID); err != nil {
			return errcode.RegistryWriteFailure("failed to join availability set", err)
		}
		return nil
	}
	if err := r.kv.SetRemove(ctx, availableInstancesKey, r.instanceID); err != nil {
		return errcode.RegistryWriteFailure("failed to leave availability set", err)
	}
	slog.Info("instance over memory cutoff, withdrawn from availability",
		"instance", r.instanceID, "used_percent", memUsedPercent, "cutoff", cutoffPercent)
	return nil
}

// Owner returns the instance currently claiming a session, if any.
func (r *Registry) Owner(ctx context.Context, sessionKey string) (string, bool, error) {
	data, ok, err := r.kv.Get(ctx, sessionOwnerPrefix+sessionKey)
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}

// Sessions returns the session keys listed for an instance.
func (r *Registry) Sessions(ctx context.Context, instanceID string) ([]string, error) {
	return r.kv.SetMembers(ctx, instanceSessionsPrefix+instanceID)
}

// AvailableInstances returns the instances currently accepting new sessions.
func (r *Registry) AvailableInstances(ctx context.Context) ([]string, error) {
	return r.kv.SetMembers(ctx, availableInstancesKey)
}

// InstanceAlive reports whether an instance's heartbeat is current.
func (r *Registry) InstanceAlive(ctx context.Context, instanceID string) (bool, error) {
	_, ok, err := r.kv.Get(ctx, instanceAlivePrefix+instanceID)
	return ok, err
}
