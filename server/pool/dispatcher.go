package pool

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/bothub-it/bothub-nlp/plugin/engine"
	errcode "github.com/bothub-it/bothub-nlp/server/internal/errors"
	"github.com/bothub-it/bothub-nlp/server/internal/observability"
	"github.com/bothub-it/bothub-nlp/store"
	"github.com/bothub-it/bothub-nlp/store/kv"
)

// DispatcherConfig tunes the ask and train paths.
type DispatcherConfig struct {
	// AskTimeout bounds how long one ask waits on its worker. Zero
	// disables the deadline, reproducing the original unbounded wait;
	// production deployments should not do that.
	AskTimeout time.Duration

	// TrainConcurrency bounds concurrent training jobs.
	TrainConcurrency int64

	// TrainRatePerMinute rate-limits incoming training requests.
	TrainRatePerMinute int
}

// Dispatcher is the synchronous request/response bridge between the transport
// layer and the worker pool.
type Dispatcher struct {
	pool       *Pool
	engine     engine.Engine
	origin     *store.Store
	kv         kv.Store
	askTimeout time.Duration

	trainSem     *semaphore.Weighted
	trainLimiter *rate.Limiter
	metrics      *observability.Metrics
}

// Metrics exposes the dispatcher's operation counters.
func (d *Dispatcher) Metrics() *observability.Metrics {
	return d.metrics
}

// NewDispatcher creates a dispatcher over the given pool.
func NewDispatcher(p *Pool, config DispatcherConfig) *Dispatcher {
	if config.TrainConcurrency <= 0 {
		config.TrainConcurrency = 2
	}
	if config.TrainRatePerMinute <= 0 {
		config.TrainRatePerMinute = 10
	}
	return &Dispatcher{
		pool:         p,
		engine:       p.engine,
		origin:       p.origin,
		kv:           p.kv,
		askTimeout:   config.AskTimeout,
		trainSem:     semaphore.NewWeighted(config.TrainConcurrency),
		trainLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.TrainRatePerMinute)), config.TrainRatePerMinute),
		metrics:      observability.NewMetrics(0),
	}
}

// Ask resolves the session and performs one synchronous call against its
// worker. Asks on the same session are serialized; a session held past the
// deadline returns SessionBusy, and a worker that misses the deadline returns
// Timeout and is reaped asynchronously so the next resolve starts fresh.
func (d *Dispatcher) Ask(ctx context.Context, sessionKey, question string) (string, error) {
	start := time.Now()
	answer, err := d.ask(ctx, sessionKey, question)
	d.metrics.RecordAsk(time.Since(start), err)
	return answer, err
}

func (d *Dispatcher) ask(ctx context.Context, sessionKey, question string) (string, error) {
	if question == "" {
		return "", errcode.InvalidArgument("question is required")
	}

	entry, err := d.pool.Resolve(ctx, sessionKey)
	if err != nil {
		return "", err
	}

	if d.askTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.askTimeout)
		defer cancel()
	}

	if err := entry.acquire(ctx); err != nil {
		return "", errcode.SessionBusy(sessionKey)
	}
	defer entry.release()

	entry.touch(d.pool.now())

	answer, err := entry.Worker().Ask(ctx, question)
	if errcode.IsCode(err, errcode.ErrCodeTimeout) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// The worker blew the deadline; reap on a separate path, this
		// caller is already giving up. A caller that merely cancelled
		// leaves the worker alone — it may be healthy mid-answer.
		slog.Warn("worker unresponsive, reaping session", "session", sessionKey, "worker", entry.Worker().ID())
		go d.pool.Evict(context.Background(), sessionKey)
	}
	return answer, err
}

// Train produces a new bot definition and returns the session key it is
// reachable under. The definition is persisted to the origin store and the
// snapshot cache is warmed, so the first ask on any instance resolves without
// another origin fetch.
func (d *Dispatcher) Train(ctx context.Context, language string, data []byte) (string, error) {
	if language == "" {
		return "", errcode.InvalidArgument("language is required")
	}

	if err := d.trainLimiter.Wait(ctx); err != nil {
		return "", errcode.Timeout("training request rate limited")
	}
	if err := d.trainSem.Acquire(ctx, 1); err != nil {
		return "", errcode.Timeout("training slot not acquired in time")
	}
	defer d.trainSem.Release(1)

	definition, err := d.engine.Train(ctx, language, data)
	if err != nil {
		return "", errcode.EngineFailure("training failed", err)
	}

	sessionKey := uuid.NewString()
	if _, err := d.origin.CreateBotDefinition(ctx, &store.BotDefinition{
		SessionKey: sessionKey,
		Language:   language,
		Definition: definition,
	}); err != nil {
		return "", err
	}

	if err := d.kv.Set(ctx, sessionSnapshotPrefix+sessionKey, definition, 0); err != nil {
		slog.Warn("failed to warm session snapshot", "session", sessionKey, "error", err)
	}

	d.metrics.RecordTrain()
	slog.Info("bot trained", "session", sessionKey, "language", language)
	return sessionKey, nil
}
