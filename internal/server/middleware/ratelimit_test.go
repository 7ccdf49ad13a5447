package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgbridge/pkg/api"
)

func newTestLimiter(t *testing.T, requests int, window time.Duration, logger *slog.Logger) (*RateLimiter, *time.Time) {
	t.Helper()

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limiter := NewRateLimiter(requests, window, logger)
	t.Cleanup(limiter.Stop)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	return limiter, &now
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limiter := NewRateLimiter(0, 0, logger)
	defer limiter.Stop()

	assert.Equal(t, 1, limiter.burst)
	assert.Equal(t, time.Minute, limiter.window)

	// повторный Stop не паникует
	limiter.Stop()
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("Requests within burst are allowed", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 5, time.Minute, nil)

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("192.168.1.1"), fmt.Sprintf("request %d should be allowed", i+1))
		}
		assert.False(t, limiter.Allow("192.168.1.1"), "request over limit should be denied")
	})

	t.Run("Different keys are tracked separately", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 2, time.Minute, nil)

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"), "first key over limit")

		assert.True(t, limiter.Allow("10.0.0.2"))
		assert.True(t, limiter.Allow("10.0.0.2"))
		assert.False(t, limiter.Allow("10.0.0.2"), "second key over limit")
	})

	t.Run("Tokens refill over time", func(t *testing.T) {
		limiter, now := newTestLimiter(t, 2, time.Minute, nil)

		assert.True(t, limiter.Allow("10.0.0.3"))
		assert.True(t, limiter.Allow("10.0.0.3"))
		assert.False(t, limiter.Allow("10.0.0.3"))

		// один токен восстанавливается за window/requests
		*now = now.Add(30 * time.Second)
		assert.True(t, limiter.Allow("10.0.0.3"))
		assert.False(t, limiter.Allow("10.0.0.3"))

		*now = now.Add(time.Minute)
		assert.True(t, limiter.Allow("10.0.0.3"))
		assert.True(t, limiter.Allow("10.0.0.3"))
	})
}

func TestRateLimiter_CleanupIdle(t *testing.T) {
	limiter, now := newTestLimiter(t, 1, time.Minute, nil)

	limiter.Allow("10.0.0.1")
	*now = now.Add(90 * time.Second)
	limiter.Allow("10.0.0.2")

	*now = now.Add(45 * time.Second)
	limiter.cleanupIdle()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.limiters, "10.0.0.1")
	assert.Contains(t, limiter.limiters, "10.0.0.2")
}

func TestRateLimitMiddleware(t *testing.T) {
	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	limiter, _ := newTestLimiter(t, 2, time.Minute, logger)

	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/create-telegram-session", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)
	assert.Equal(t, http.StatusOK, send().Code)

	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var errResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.Equal(t, ErrRateLimitExceeded, errResp.Error)

	assert.Contains(t, logBuf.String(), "Rate limit exceeded")
	assert.Contains(t, logBuf.String(), "203.0.113.7")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		headers        map[string]string
		name           string
		remoteAddr     string
		expected       string
		trustForwarded bool
	}{
		{
			name:       "RemoteAddr with port",
			remoteAddr: "192.168.1.1:12345",
			expected:   "192.168.1.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.1",
			expected:   "192.168.1.1",
		},
		{
			name:           "X-Forwarded-For single IP",
			remoteAddr:     "10.0.0.1:12345",
			headers:        map[string]string{"X-Forwarded-For": "203.0.113.1"},
			expected:       "203.0.113.1",
			trustForwarded: true,
		},
		{
			name:           "X-Forwarded-For multiple IPs",
			remoteAddr:     "10.0.0.1:12345",
			headers:        map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.1"},
			expected:       "203.0.113.1",
			trustForwarded: true,
		},
		{
			name:           "X-Real-IP",
			remoteAddr:     "10.0.0.1:12345",
			headers:        map[string]string{"X-Real-IP": "203.0.113.5"},
			expected:       "203.0.113.5",
			trustForwarded: true,
		},
		{
			name:       "X-Forwarded-For wins over X-Real-IP",
			remoteAddr: "10.0.0.1:12345",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1",
				"X-Real-IP":       "203.0.113.5",
			},
			expected:       "203.0.113.1",
			trustForwarded: true,
		},
		{
			name:       "X-Forwarded-For ignored without trusted proxy",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			expected:   "10.0.0.1",
		},
		{
			name:       "X-Real-IP ignored without trusted proxy",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Real-IP": "203.0.113.5"},
			expected:   "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, getClientIP(req, tt.trustForwarded))
		})
	}
}

func TestRateLimitMiddleware_ForwardedHeaderRotation(t *testing.T) {
	tests := []struct {
		name           string
		wantLimited    int
		wantKeys       int
		trustForwarded bool
	}{
		{name: "untrusted headers share the peer bucket", trustForwarded: false, wantLimited: 3, wantKeys: 1},
		{name: "trusted proxy keys by forwarded address", trustForwarded: true, wantLimited: 0, wantKeys: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, _ := newTestLimiter(t, 2, time.Minute, nil)
			limiter.WithForwardedHeaders(tt.trustForwarded)

			handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			limited := 0
			for i := 0; i < 5; i++ {
				req := httptest.NewRequest(http.MethodPost, "/create-telegram-session", nil)
				req.RemoteAddr = "203.0.113.7:5555"
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				if w.Code == http.StatusTooManyRequests {
					limited++
				}
			}

			assert.Equal(t, tt.wantLimited, limited)

			limiter.mu.Lock()
			defer limiter.mu.Unlock()
			assert.Len(t, limiter.limiters, tt.wantKeys)
		})
	}
}
