package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Set_And_Get_Works", func(t *testing.T) {
		store := NewMemoryStore()
		if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		data, ok, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !ok {
			t.Fatal("expected key to exist")
		}
		if string(data) != "v" {
			t.Errorf("expected v, got %s", data)
		}
	})

	t.Run("Get_NonexistentKey_ReturnsFalse", func(t *testing.T) {
		store := NewMemoryStore()
		_, ok, err := store.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if ok {
			t.Error("expected nonexistent key to return false")
		}
	})

	t.Run("TTL_Expires", func(t *testing.T) {
		store := NewMemoryStore().(*memoryStore)
		now := time.Now()
		store.now = func() time.Time { return now }

		if err := store.Set(ctx, "k", []byte("v"), 70*time.Second); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		if _, ok, _ := store.Get(ctx, "k"); !ok {
			t.Fatal("key should exist before TTL expiry")
		}

		now = now.Add(71 * time.Second)
		if _, ok, _ := store.Get(ctx, "k"); ok {
			t.Error("key should be gone after TTL expiry")
		}
	})

	t.Run("Expire_RefreshesTTL", func(t *testing.T) {
		store := NewMemoryStore().(*memoryStore)
		now := time.Now()
		store.now = func() time.Time { return now }

		_ = store.Set(ctx, "k", []byte("v"), 10*time.Second)
		now = now.Add(8 * time.Second)
		if err := store.Expire(ctx, "k", 10*time.Second); err != nil {
			t.Fatalf("Expire failed: %v", err)
		}
		now = now.Add(8 * time.Second)
		if _, ok, _ := store.Get(ctx, "k"); !ok {
			t.Error("key should survive after TTL refresh")
		}
	})

	t.Run("Set_Operations", func(t *testing.T) {
		store := NewMemoryStore()
		if err := store.SetAdd(ctx, "servers", "10.0.0.1", "10.0.0.2"); err != nil {
			t.Fatalf("SetAdd failed: %v", err)
		}
		// Adding an existing member is idempotent.
		if err := store.SetAdd(ctx, "servers", "10.0.0.1"); err != nil {
			t.Fatalf("SetAdd failed: %v", err)
		}

		members, err := store.SetMembers(ctx, "servers")
		if err != nil {
			t.Fatalf("SetMembers failed: %v", err)
		}
		if len(members) != 2 {
			t.Errorf("expected 2 members, got %d", len(members))
		}

		if err := store.SetRemove(ctx, "servers", "10.0.0.2"); err != nil {
			t.Fatalf("SetRemove failed: %v", err)
		}
		members, _ = store.SetMembers(ctx, "servers")
		if len(members) != 1 || members[0] != "10.0.0.1" {
			t.Errorf("expected [10.0.0.1], got %v", members)
		}
	})

	t.Run("Set_TTL_Expires", func(t *testing.T) {
		now := time.Now()
		store := NewMemoryStoreWithClock(func() time.Time { return now })

		_ = store.SetAdd(ctx, "sessions", "s1", "s2")
		if err := store.Expire(ctx, "sessions", 70*time.Second); err != nil {
			t.Fatalf("Expire failed: %v", err)
		}

		members, _ := store.SetMembers(ctx, "sessions")
		if len(members) != 2 {
			t.Fatalf("expected 2 members before expiry, got %d", len(members))
		}

		now = now.Add(71 * time.Second)
		members, _ = store.SetMembers(ctx, "sessions")
		if len(members) != 0 {
			t.Errorf("expected empty set after TTL expiry, got %v", members)
		}

		// An add after expiry starts a fresh set without the old members.
		_ = store.SetAdd(ctx, "sessions", "s3")
		members, _ = store.SetMembers(ctx, "sessions")
		if len(members) != 1 || members[0] != "s3" {
			t.Errorf("expected [s3], got %v", members)
		}
	})

	t.Run("Delete_IsIdempotent", func(t *testing.T) {
		store := NewMemoryStore()
		_ = store.Set(ctx, "k", []byte("v"), 0)
		if err := store.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := store.Delete(ctx, "k"); err != nil {
			t.Fatalf("second Delete failed: %v", err)
		}
		if _, ok, _ := store.Get(ctx, "k"); ok {
			t.Error("key should be gone after delete")
		}
	})
}
