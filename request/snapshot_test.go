package request_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/req2cmd/request"
)

func TestFromHTTP_CollectsRouteQueryAndBody(t *testing.T) {
	t.Parallel()

	var snap *request.Snapshot
	var downstreamBody string

	router := chi.NewRouter()
	router.Post("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		snap, r = request.FromHTTP(r, 0)
		b, _ := io.ReadAll(r.Body)
		downstreamBody = string(b)
	})

	req := httptest.NewRequest(http.MethodPost, "/users/42?tag=a&tag=b&page=1", strings.NewReader(`{"name":"Bob"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, snap)
	assert.Equal(t, http.MethodPost, snap.Method)
	assert.Equal(t, map[string]string{"id": "42"}, snap.PathParams)
	assert.Equal(t, []string{"a", "b"}, snap.Query["tag"])

	body, err := snap.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Bob"}, body)

	assert.Equal(t, `{"name":"Bob"}`, downstreamBody, "тело должно оставаться доступным обработчику")
}

func TestFromHTTP_BodyTooLarge(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"very long"}`))
	snap, req := request.FromHTTP(req, 4)

	_, err := snap.RawBody()
	require.ErrorIs(t, err, request.ErrBodyTooLarge)
	_, err = snap.ParsedBody()
	require.ErrorIs(t, err, request.ErrBodyTooLarge)

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"very long"}`, string(rest), "обработчик читает тело целиком")
	require.NoError(t, req.Body.Close())
}

func TestNewSnapshot_ParsesBody(t *testing.T) {
	t.Parallel()

	t.Run("форма", func(t *testing.T) {
		t.Parallel()
		snap := request.NewSnapshot(request.Snapshot{
			ContentType: "application/x-www-form-urlencoded",
			Body:        []byte("name=Bob&role=a&role=b"),
		})
		body, err := snap.ParsedBody()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "Bob", "role": []string{"a", "b"}}, body)
	})

	t.Run("пустое тело", func(t *testing.T) {
		t.Parallel()
		body, err := request.NewSnapshot(request.Snapshot{}).ParsedBody()
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("некорректный JSON", func(t *testing.T) {
		t.Parallel()
		_, err := request.NewSnapshot(request.Snapshot{ContentType: "application/json", Body: []byte("[1,2")}).ParsedBody()
		require.Error(t, err)
	})

	t.Run("JSON не объект", func(t *testing.T) {
		t.Parallel()
		_, err := request.NewSnapshot(request.Snapshot{Body: []byte("[1,2]")}).ParsedBody()
		require.Error(t, err)
	})

	t.Run("vendor JSON", func(t *testing.T) {
		t.Parallel()
		body, err := request.NewSnapshot(request.Snapshot{
			ContentType: "application/vnd.api+json; charset=utf-8",
			Body:        []byte(`{"a":1}`),
		}).ParsedBody()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": float64(1)}, body)
	})
}

func TestSnapshot_ParsedBodyReturnsCopy(t *testing.T) {
	t.Parallel()

	snap := request.NewSnapshot(request.Snapshot{Body: []byte(`{"name":"Bob"}`)})
	first, err := snap.ParsedBody()
	require.NoError(t, err)
	first["name"] = "Alice"

	second, err := snap.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, "Bob", second["name"])
}

func TestCommandContext(t *testing.T) {
	t.Parallel()

	_, ok := request.CommandFrom(context.Background())
	assert.False(t, ok)

	ctx := request.WithCommand(context.Background(), "cmd")
	cmd, ok := request.CommandFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "cmd", cmd)

	_, ok = request.SnapshotFrom(ctx)
	assert.False(t, ok)
}
