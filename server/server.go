// Package server assembles the front-end instance: coordination store, origin
// store, registry, engine, worker pool, dispatcher, eviction runner and the
// HTTP surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/bothub-it/bothub-nlp/internal/profile"
	"github.com/bothub-it/bothub-nlp/plugin/engine"
	errcode "github.com/bothub-it/bothub-nlp/server/internal/errors"
	"github.com/bothub-it/bothub-nlp/server/middleware"
	"github.com/bothub-it/bothub-nlp/server/pool"
	"github.com/bothub-it/bothub-nlp/server/registry"
	"github.com/bothub-it/bothub-nlp/server/runner/eviction"
	apiv1 "github.com/bothub-it/bothub-nlp/server/router/api/v1"
	"github.com/bothub-it/bothub-nlp/store"
	"github.com/bothub-it/bothub-nlp/store/kv"
)

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	kvStore    kv.Store
	origin     *store.Store
	registry   *registry.Registry
	pool       *pool.Pool
	dispatcher *pool.Dispatcher
	eviction   *eviction.Runner
}

// NewServer builds a fully wired but not yet started instance.
func NewServer(ctx context.Context, profile *profile.Profile, origin *store.Store) (*Server, error) {
	kvStore, err := newKVStore(profile)
	if err != nil {
		return nil, errors.Wrap(err, "create coordination store")
	}

	eng, err := newEngine(profile)
	if err != nil {
		kvStore.Close()
		return nil, errors.Wrap(err, "create engine")
	}

	reg := registry.New(kvStore, profile.InstanceAddr, profile.RegistryTTL)
	p := pool.New(eng, origin, kvStore, reg)
	dispatcher := pool.NewDispatcher(p, pool.DispatcherConfig{
		AskTimeout:         profile.AskTimeout,
		TrainConcurrency:   profile.TrainConcurrency,
		TrainRatePerMinute: profile.TrainRatePerMinute,
	})
	evictionRunner := eviction.NewRunner(p, reg, eviction.Config{
		SweepInterval:       profile.SweepInterval,
		IdleThreshold:       profile.IdleThreshold,
		MemoryCutoffPercent: profile.MemoryCutoffPercent,
	})
	evictionRunner.SetMetrics(dispatcher.Metrics())

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.NewRateLimiter(20, 40).Middleware())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "ok",
			"instance": reg.InstanceID(),
		})
	})

	apiv1.NewAPIV1Service(profile, dispatcher, p, reg).RegisterRoutes(e)

	return &Server{
		Profile:    profile,
		echoServer: e,
		kvStore:    kvStore,
		origin:     origin,
		registry:   reg,
		pool:       p,
		dispatcher: dispatcher,
		eviction:   evictionRunner,
	}, nil
}

// Start announces the instance and begins serving. Announcement failure is
// fatal: an instance the registry cannot see must not take traffic.
func (s *Server) Start(ctx context.Context) error {
	if err := s.registry.Announce(ctx); err != nil {
		return errcode.StartupFailure("announce instance", err)
	}
	go s.eviction.Run(ctx)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started",
		slog.String("address", address),
		slog.String("instance", s.registry.InstanceID()),
		slog.String("mode", s.Profile.Mode))
	return s.echoServer.Start(address)
}

// Shutdown drains the HTTP server, terminates every live worker and closes
// the backing stores.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown http server", slog.Any("error", err))
	}

	s.pool.Close()

	if err := s.kvStore.Close(); err != nil {
		slog.Error("failed to close coordination store", slog.Any("error", err))
	}
	if err := s.origin.Close(); err != nil {
		slog.Error("failed to close origin store", slog.Any("error", err))
	}

	slog.Info("server stopped")
}

func newKVStore(profile *profile.Profile) (kv.Store, error) {
	if profile.RedisAddr == "" {
		slog.Warn("no redis configured, using in-memory coordination store; session affinity is limited to this instance")
		return kv.NewMemoryStore(), nil
	}
	config := kv.DefaultRedisConfig()
	config.Addr = profile.RedisAddr
	config.Password = profile.RedisPassword
	config.DB = profile.RedisDB
	return kv.NewRedisStore(config)
}

func newEngine(profile *profile.Profile) (engine.Engine, error) {
	if profile.OpenAIAPIKey == "" {
		if profile.IsDev() {
			slog.Warn("no openai api key configured, using mock engine")
			return engine.NewMockEngine(), nil
		}
		return nil, errors.New("openai api key is required in prod mode")
	}
	return engine.NewOpenAIEngine(&engine.OpenAIConfig{
		APIKey:  profile.OpenAIAPIKey,
		BaseURL: profile.OpenAIBaseURL,
		Model:   profile.OpenAIModel,
	})
}
