package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/pkg/api"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL + "/")
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_CreateSession(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathCreateSession, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "query_id=AAA&hash=abc", body["initData"])
		assert.Equal(t, float64(42), body["telegram_id"])

		_ = json.NewEncoder(w).Encode(api.CreateSessionResponse{
			User:    &directory.Account{ID: "user-1", Email: "user@example.com"},
			Session: &directory.Session{AccessToken: "access", RefreshToken: "refresh", TokenType: "bearer"},
		})
	})

	resp, err := client.CreateSession(context.Background(), "query_id=AAA&hash=abc", 42)
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, "access", resp.Session.AccessToken)
}

func TestClient_CreateSession_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		status   int
	}{
		{name: "bridge error code", status: http.StatusBadRequest, body: `{"error":"telegram_user_not_found"}`, wantCode: "telegram_user_not_found"},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"rate_limit_exceeded"}`, wantCode: "rate_limit_exceeded"},
		{name: "plain text", status: http.StatusBadGateway, body: "bad gateway", wantCode: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.CreateSession(context.Background(), "initData", 42)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, Code(err))
		})
	}
}

func TestClient_VerifyInitData(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathVerifyInitData, r.URL.Path)

		var req api.VerifyInitDataRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(api.VerifyInitDataResponse{OK: req.InitData == "good"})
	})

	ok, err := client.VerifyInitData(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.VerifyInitData(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Health(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathHealth, r.URL.Path)
		assert.Empty(t, r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Version: "1.0.0"})
	})

	resp, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestClient_InvalidJSON(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestClient_ContextCanceled(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Health(ctx)
	assert.Error(t, err)
}
