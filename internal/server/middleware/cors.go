package middleware

import "net/http"

// Значения CORS заголовков для Telegram Mini App клиентов
const (
	CORSAllowOrigin  = "*"
	CORSAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// CORSMiddleware добавляет CORS заголовки ко всем ответам.
// OPTIONS (preflight) завершается сразу: 200 с пустым телом.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", CORSAllowOrigin)
			w.Header().Set("Access-Control-Allow-Headers", CORSAllowHeaders)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
