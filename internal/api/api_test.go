package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/storage"
	"github.com/bilgisen/newsbot/internal/telegram"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminKey = "admin-secret"

type recordingRouter struct {
	mu      sync.Mutex
	updates []telegram.Update
}

func (r *recordingRouter) Route(_ context.Context, u telegram.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func newTestServer(t *testing.T, ping func(context.Context) error) (*fiber.App, *storage.PostStore, *recordingRouter) {
	t.Helper()
	db, err := storage.Open("sqlite://:memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	posts := storage.NewPostStore(db)
	router := &recordingRouter{}
	app := NewServer(NewHandlers(posts, router, ping), RouteOptions{AdminAPIKey: adminKey, WebhookSecret: "hook"}, 5*time.Second)
	return app, posts, router
}

func do(t *testing.T, app *fiber.App, method, target string, body io.Reader, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func seed(t *testing.T, posts *storage.PostStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"post-1-aaaa", "post-2-bbbb", "post-3-cccc"} {
		p := &models.Post{ID: id, Text: "t", Source: "arXiv", URL: "https://example.com/" + id, Status: models.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, posts.Create(ctx, p))
	}
	require.NoError(t, posts.UpdateStatus(ctx, "post-1-aaaa", models.StatusPublished))
}

func TestHealthCheck(t *testing.T) {
	app, _, _ := newTestServer(t, nil)
	code, body := do(t, app, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	app, _, _ = newTestServer(t, func(context.Context) error { return errors.New("database is closed") })
	code, body = do(t, app, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
}

func TestAdminRoutesRequireKey(t *testing.T) {
	app, _, _ := newTestServer(t, nil)

	code, _ := do(t, app, http.MethodGet, "/api/v1/posts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/posts", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestListPosts(t *testing.T) {
	app, posts, _ := newTestServer(t, nil)
	seed(t, posts)
	auth := map[string]string{"X-API-Key": adminKey}

	code, body := do(t, app, http.MethodGet, "/api/v1/posts?page_size=2", nil, auth)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "post-3-cccc", items[0].(map[string]any)["id"])

	code, body = do(t, app, http.MethodGet, "/api/v1/posts?status=published", nil, auth)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, body = do(t, app, http.MethodGet, "/api/v1/posts?status=archived", nil, auth)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "oneof", body["fields"].(map[string]any)["Status"])

	code, _ = do(t, app, http.MethodGet, "/api/v1/posts?page_size=1000", nil, auth)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestGetPostAndStats(t *testing.T) {
	app, posts, _ := newTestServer(t, nil)
	seed(t, posts)
	auth := map[string]string{"X-API-Key": adminKey}

	code, body := do(t, app, http.MethodGet, "/api/v1/posts/post-1-aaaa", nil, auth)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "published", body["status"])

	code, _ = do(t, app, http.MethodGet, "/api/v1/posts/post-9-zzzz", nil, auth)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = do(t, app, http.MethodGet, "/api/v1/posts/stats", nil, auth)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["total"])
	assert.Equal(t, map[string]any{"pending": 2.0, "published": 1.0, "rejected": 0.0}, body["by_status"])
}

func TestTelegramWebhook(t *testing.T) {
	app, _, router := newTestServer(t, nil)
	update := `{"update_id":5,"callback_query":{"id":"cb","from":{"id":1,"is_bot":false,"first_name":"m"},"data":"approve:p"}}`

	req := func(secret string) int {
		headers := map[string]string{"Content-Type": "application/json"}
		if secret != "" {
			headers["X-Telegram-Bot-Api-Secret-Token"] = secret
		}
		code, _ := do(t, app, http.MethodPost, "/telegram/webhook", strings.NewReader(update), headers)
		return code
	}

	assert.Equal(t, http.StatusUnauthorized, req(""))
	assert.Equal(t, http.StatusUnauthorized, req("nope"))
	assert.Equal(t, http.StatusOK, req("hook"))

	require.Len(t, router.updates, 1)
	assert.Equal(t, int64(5), router.updates[0].UpdateID)
	assert.Equal(t, "approve:p", router.updates[0].CallbackQuery.Data)
}

func TestMetricsAndNotFound(t *testing.T) {
	app, _, _ := newTestServer(t, nil)

	code, _ := do(t, app, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, code)

	code, body := do(t, app, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Endpoint not found", body["error"])
}
