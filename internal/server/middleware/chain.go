package middleware

import "net/http"

// Chain оборачивает handler в middlewares. Первый middleware внешний.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
