package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/bothub-it/bothub-nlp/internal/profile"
	"github.com/bothub-it/bothub-nlp/plugin/engine"
	"github.com/bothub-it/bothub-nlp/server/pool"
	"github.com/bothub-it/bothub-nlp/server/registry"
	"github.com/bothub-it/bothub-nlp/store"
	"github.com/bothub-it/bothub-nlp/store/kv"
)

func newTestService(t *testing.T) (*APIV1Service, *echo.Echo) {
	t.Helper()

	kvStore := kv.NewMemoryStore()
	eng := engine.NewMockEngine()
	driver := store.NewMockDriver()
	origin := store.New(driver, &profile.Profile{})
	reg := registry.New(kvStore, "test-instance", 70*time.Second)

	p := pool.New(eng, origin, kvStore, reg)
	t.Cleanup(p.Close)
	d := pool.NewDispatcher(p, pool.DispatcherConfig{AskTimeout: 5 * time.Second})

	svc := NewAPIV1Service(&profile.Profile{Mode: "dev"}, d, p, reg)
	e := echo.New()
	svc.RegisterRoutes(e)
	return svc, e
}

func TestTrainThenAsk(t *testing.T) {
	_, e := newTestService(t)

	// Train a bot.
	body := `{"language":"en","data":{"greet":["hello"]}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/train-bot", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var trained trainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trained))
	require.NotEmpty(t, trained.UUID)

	// Ask it.
	req = httptest.NewRequest(http.MethodGet, "/v1/bots?uuid="+trained.UUID+"&msg=hello", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var answered askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answered))
	require.Equal(t, trained.UUID, answered.BotID)
	require.Equal(t, "stub-answer", answered.Answer)

	// The redirect alias serves the same ask handler.
	req = httptest.NewRequest(http.MethodGet, "/v1/bots-redirect?uuid="+trained.UUID+"&msg=hello", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAskBot_UnknownSession(t *testing.T) {
	_, e := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/bots?uuid=missing&msg=hello", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "SESSION_NOT_FOUND", resp.Code)
}

func TestAskBot_MissingParams(t *testing.T) {
	_, e := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/bots?uuid=abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainBot_MissingLanguage(t *testing.T) {
	_, e := newTestService(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/train-bot", strings.NewReader(`{"data":{}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstanceStatus(t *testing.T) {
	svc, e := newTestService(t)
	require.NoError(t, svc.Registry.Announce(context.Background()))

	req := httptest.NewRequest(http.MethodGet, "/v1/instance", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp instanceStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "test-instance", resp.Instance)
	require.Contains(t, resp.Available, "test-instance")
}
