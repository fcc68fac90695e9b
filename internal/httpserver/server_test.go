package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/agent-manager/internal/backend"
	"github.com/blackmichael/agent-manager/internal/domain"
	"github.com/blackmichael/agent-manager/internal/journal"
)

type testEnv struct {
	store      *domain.Store
	dispatcher *domain.Dispatcher
	server     *httptest.Server
}

// newTestEnv wires the web server to a fake automation backend.
func newTestEnv(t *testing.T, interval int, backendMux *http.ServeMux, repo domain.JournalRepository) *testEnv {
	t.Helper()

	upstream := httptest.NewServer(backendMux)
	t.Cleanup(upstream.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := domain.NewStore(interval)
	var recorder domain.Journal
	if repo != nil {
		recorder = repo
	}
	dispatcher := domain.NewDispatcher(backend.NewClient(upstream.URL, nil), store, nil, recorder, nil,
		domain.DispatcherConfig{CommandTimeout: 2 * time.Second}, logger)
	t.Cleanup(dispatcher.Close)

	srv := NewServer(0, store, dispatcher, repo, logger)
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)

	return &testEnv{store: store, dispatcher: dispatcher, server: server}
}

func fakeBackend() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /posts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"post_id": 5, "hotel_name": "Ayana Resort", "status": "generated", "caption": "Sunset", "hashtags": "#bali"}]`))
	})
	mux.HandleFunc("POST /scrape", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "new_hotels_saved": 1}`))
	})
	mux.HandleFunc("POST /posts/{id}/publish", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Konten tidak ditemukan"}`))
	})
	mux.HandleFunc("GET /hotels/raw", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": 1, "hotel_name": "Ayana Resort", "location": "Jimbaran, Bali", "is_processed": true, "created_at": "2024-05-01T08:30:00"},
			{"id": 2, "hotel_name": "Hotel Tentrem", "location": "Yogyakarta", "is_processed": false, "created_at": "2024-05-01T08:31:00"}
		]`))
	})
	return mux
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded), string(data))
	}
	return resp, decoded
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, 60, fakeBackend(), nil)

	resp, body := do(t, http.MethodGet, env.server.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_State(t *testing.T) {
	env := newTestEnv(t, 45, fakeBackend(), nil)
	env.store.ReplaceLogs([]domain.LogEntry{"[10:00:00] 🤖 cycle"})

	resp, body := do(t, http.MethodGet, env.server.URL+"/api/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bot := body["bot"].(map[string]any)
	assert.Equal(t, false, bot["running"])
	assert.Equal(t, float64(45), bot["interval_minutes"])
	assert.Equal(t, []any{"[10:00:00] 🤖 cycle"}, body["logs"])
}

func TestServer_ToggleBot_Validation(t *testing.T) {
	env := newTestEnv(t, 0, fakeBackend(), nil)

	resp, body := do(t, http.MethodPost, env.server.URL+"/api/bot/toggle", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, domain.MsgMinInterval, body["message"])
}

func TestServer_SetInterval(t *testing.T) {
	env := newTestEnv(t, 60, fakeBackend(), nil)

	resp, body := do(t, http.MethodPut, env.server.URL+"/api/bot/interval", `{"minutes": 20}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(20), body["bot"].(map[string]any)["interval_minutes"])

	resp, _ = do(t, http.MethodPut, env.server.URL+"/api/bot/interval", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.store.ReconcileRunning(true, time.Now())
	resp, body = do(t, http.MethodPut, env.server.URL+"/api/bot/interval", `{"minutes": 30}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, domain.MsgIntervalLocked, body["message"])
}

func TestServer_Scrape(t *testing.T) {
	env := newTestEnv(t, 60, fakeBackend(), nil)

	resp, _ := do(t, http.MethodPost, env.server.URL+"/api/scrape", `{"location":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, http.MethodPost, env.server.URL+"/api/scrape", `{"location": ""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, domain.MsgLocationRequired, body["message"])

	resp, body = do(t, http.MethodPost, env.server.URL+"/api/scrape", `{"location": "Bali"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	posts := body["posts"].([]any)
	require.Len(t, posts, 1)
	assert.Equal(t, "Ayana Resort", posts[0].(map[string]any)["hotel_name"])
	assert.Equal(t, false, body["actions"].(map[string]any)["scraping"])
}

func TestServer_Generate_Busy(t *testing.T) {
	env := newTestEnv(t, 60, fakeBackend(), nil)
	require.True(t, env.store.Acquire(domain.ActionGenerate, 0))

	resp, body := do(t, http.MethodPost, env.server.URL+"/api/generate", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Busy", body["error"])
}

func TestServer_Publish(t *testing.T) {
	env := newTestEnv(t, 60, fakeBackend(), nil)

	resp, _ := do(t, http.MethodPost, env.server.URL+"/api/posts/abc/publish", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, http.MethodPost, env.server.URL+"/api/posts/5/publish", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Rejected", body["error"])
	assert.Equal(t, "Konten tidak ditemukan", body["message"])
	assert.Zero(t, env.store.Actions().PublishingID)
}

func TestServer_BackendDown(t *testing.T) {
	env := newTestEnv(t, 60, http.NewServeMux(), nil)

	resp, body := do(t, http.MethodPost, env.server.URL+"/api/posts/refresh", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, domain.MsgBackendUnreachable, body["message"])
}

func TestServer_RawRecords(t *testing.T) {
	env := newTestEnv(t, 60, fakeBackend(), nil)

	resp, body := do(t, http.MethodGet, env.server.URL+"/api/raw?q=yogya", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
	records := body["records"].([]any)
	assert.Equal(t, "Hotel Tentrem", records[0].(map[string]any)["hotel_name"])
}

func TestServer_Pages(t *testing.T) {
	env := newTestEnv(t, 60, fakeBackend(), nil)
	require.NoError(t, env.dispatcher.RefreshPosts(context.Background()))

	resp, err := http.Get(env.server.URL + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "Ayana Resort")
	assert.Contains(t, string(page), `data-id="5"`)

	resp, err = http.Get(env.server.URL + "/raw?q=bali")
	require.NoError(t, err)
	page, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "Jimbaran, Bali")
	assert.NotContains(t, string(page), "Hotel Tentrem")

	resp, err = http.Get(env.server.URL + "/static/dashboard.js")
	require.NoError(t, err)
	page, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "new WebSocket")
}

func TestServer_Journal(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, 60, fakeBackend(), nil)
		resp, _ := do(t, http.MethodGet, env.server.URL+"/api/journal", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("records commands", func(t *testing.T) {
		repo, err := journal.Open(context.Background(), "sqlite://:memory:")
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })

		env := newTestEnv(t, 60, fakeBackend(), repo)
		do(t, http.MethodPost, env.server.URL+"/api/scrape", `{"location": "Bali"}`)
		do(t, http.MethodPost, env.server.URL+"/api/posts/5/publish", "")

		resp, body := do(t, http.MethodGet, env.server.URL+"/api/journal?limit=1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		entries := body["entries"].([]any)
		require.Len(t, entries, 1)
		assert.Equal(t, "publish", entries[0].(map[string]any)["command"])
		assert.NotEmpty(t, body["cursor"])

		resp, _ = do(t, http.MethodGet, env.server.URL+"/api/journal?limit=0", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_LiveStream(t *testing.T) {
	env := newTestEnv(t, 60, fakeBackend(), nil)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap domain.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Empty(t, snap.Logs)

	env.store.ReplaceLogs([]domain.LogEntry{"A", "B"})

	require.Eventually(t, func() bool {
		var next domain.Snapshot
		if err := conn.ReadJSON(&next); err != nil {
			return false
		}
		return len(next.Logs) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
