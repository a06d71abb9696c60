package eviction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bothub-it/bothub-nlp/internal/profile"
	"github.com/bothub-it/bothub-nlp/plugin/engine"
	"github.com/bothub-it/bothub-nlp/server/pool"
	"github.com/bothub-it/bothub-nlp/server/registry"
	"github.com/bothub-it/bothub-nlp/store"
	"github.com/bothub-it/bothub-nlp/store/kv"
)

type fixture struct {
	runner   *Runner
	pool     *pool.Pool
	registry *registry.Registry
	kv       kv.Store
	driver   *store.MockDriver
	dispatch *pool.Dispatcher
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	kvStore := kv.NewMemoryStore()
	eng := engine.NewMockEngine()
	driver := store.NewMockDriver()
	origin := store.New(driver, &profile.Profile{})
	reg := registry.New(kvStore, "10.0.0.1:8888", 70*time.Second)

	p := pool.New(eng, origin, kvStore, reg)
	t.Cleanup(p.Close)
	now := time.Now()
	p.SetNow(func() time.Time { return now })

	r := NewRunner(p, reg, Config{
		SweepInterval:       60 * time.Second,
		IdleThreshold:       5 * time.Minute,
		MemoryCutoffPercent: 80,
	})
	r.memUsedPercent = func() (float64, error) { return 50, nil }

	return &fixture{
		runner:   r,
		pool:     p,
		registry: reg,
		kv:       kvStore,
		driver:   driver,
		dispatch: pool.NewDispatcher(p, pool.DispatcherConfig{AskTimeout: 5 * time.Second}),
		now:      &now,
	}
}

func (f *fixture) seed(t *testing.T, sessionKey string) {
	t.Helper()
	def, err := (&engine.Definition{Language: "en", Prompt: "greet"}).Encode()
	require.NoError(t, err)
	_, err = f.driver.CreateBotDefinition(context.Background(), &store.BotDefinition{
		SessionKey: sessionKey,
		Language:   "en",
		Definition: def,
	})
	require.NoError(t, err)
}

// An idle session disappears from the pool and from the registry after one
// sweep; a fresh session survives with its ownership refreshed.
func TestRunOnce_EvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "idle")
	f.seed(t, "fresh")

	_, err := f.dispatch.Ask(ctx, "idle", "hello")
	require.NoError(t, err)

	*f.now = f.now.Add(6 * time.Minute)
	_, err = f.dispatch.Ask(ctx, "fresh", "hello")
	require.NoError(t, err)

	f.runner.RunOnce(ctx)

	require.ElementsMatch(t, []string{"fresh"}, f.pool.SessionKeys())

	_, owned, err := f.registry.Owner(ctx, "idle")
	require.NoError(t, err)
	require.False(t, owned, "evicted session must lose its ownership key")

	owner, owned, err := f.registry.Owner(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, owned)
	require.Equal(t, "10.0.0.1:8888", owner)

	// The published session list matches the surviving pool.
	sessions, err := f.registry.Sessions(ctx, "10.0.0.1:8888")
	require.NoError(t, err)
	require.Equal(t, []string{"fresh"}, sessions)
}

// An evicted session re-resolves through the cache tiers, not the local map.
func TestRunOnce_EvictionForcesReresolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "s1")

	_, err := f.dispatch.Ask(ctx, "s1", "hello")
	require.NoError(t, err)
	entry, err := f.pool.Resolve(ctx, "s1")
	require.NoError(t, err)
	firstWorker := entry.Worker().ID()

	*f.now = f.now.Add(6 * time.Minute)
	f.runner.RunOnce(ctx)
	require.Zero(t, f.pool.Len())

	entry, err = f.pool.Resolve(ctx, "s1")
	require.NoError(t, err)
	require.NotEqual(t, firstWorker, entry.Worker().ID())
}

func TestRunOnce_RefreshesHeartbeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.runner.RunOnce(ctx)

	alive, err := f.registry.InstanceAlive(ctx, "10.0.0.1:8888")
	require.NoError(t, err)
	require.True(t, alive)
}

func TestRunOnce_PublishesAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.runner.RunOnce(ctx)
	available, err := f.registry.AvailableInstances(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.1:8888"}, available)

	f.runner.memUsedPercent = func() (float64, error) { return 92, nil }
	f.runner.RunOnce(ctx)
	available, err = f.registry.AvailableInstances(ctx)
	require.NoError(t, err)
	require.Empty(t, available)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.runner.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on context cancellation")
	}
}
