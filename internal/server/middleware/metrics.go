package middleware

import (
	"net/http"
	"time"

	"github.com/iudanet/tgbridge/internal/metrics"
)

// MetricsMiddleware учитывает запросы к маршруту route.
// Метка route фиксирована, чтобы произвольные пути не раздували кардинальность.
func MetricsMiddleware(m *metrics.Metrics, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			m.ObserveRequest(route, wrapped.statusCode, time.Since(start))
		})
	}
}
