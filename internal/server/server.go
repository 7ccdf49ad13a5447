// Package server собирает HTTP роутер моста и управляет жизненным циклом http.Server
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/tgbridge/internal/metrics"
	"github.com/iudanet/tgbridge/internal/server/handlers"
	"github.com/iudanet/tgbridge/internal/server/middleware"
)

// Пути эндпоинтов
const (
	PathVerifyInitData = "/verify-telegram-init-data"
	PathCreateSession  = "/create-telegram-session"
	PathHealth         = "/health"
	PathMetrics        = "/metrics"
)

// Router зависимости роутера. Limiter == nil отключает rate limiting,
// Metrics == nil отключает /metrics.
type Router struct {
	Logger   *slog.Logger
	Telegram *handlers.TelegramHandler
	Health   *handlers.HealthHandler
	Limiter  *middleware.RateLimiter
	Metrics  *metrics.Metrics
}

// Handler возвращает корневой http.Handler.
// Эндпоинты моста регистрируются без метода: OPTIONS отвечает CORS middleware,
// любой другой метод выполняет операцию.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(PathVerifyInitData, rt.bridgeRoute(PathVerifyInitData, rt.Telegram.VerifyInitData))
	mux.Handle(PathCreateSession, rt.bridgeRoute(PathCreateSession, rt.Telegram.CreateSession))
	mux.HandleFunc("GET "+PathHealth, rt.Health.Health)
	if rt.Metrics != nil {
		mux.Handle("GET "+PathMetrics, rt.Metrics.Handler())
	}

	return middleware.Chain(mux,
		middleware.RecoveryMiddleware(rt.Logger),
		middleware.LoggingMiddleware(rt.Logger, PathHealth, PathMetrics),
	)
}

// bridgeRoute оборачивает эндпоинт моста: metrics -> CORS -> rate limit
func (rt *Router) bridgeRoute(route string, h http.HandlerFunc) http.Handler {
	chain := []func(http.Handler) http.Handler{
		middleware.MetricsMiddleware(rt.Metrics, route),
		middleware.CORSMiddleware(),
	}
	if rt.Limiter != nil {
		chain = append(chain, middleware.RateLimitMiddleware(rt.Limiter))
	}

	return middleware.Chain(h, chain...)
}

// Config параметры http.Server
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server HTTP сервер моста
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New создает сервер
func New(cfg Config, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run слушает адрес до отмены ctx, затем корректно останавливает сервер
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve обслуживает запросы на listener до отмены ctx
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server started", slog.String("address", listener.Addr().String()))
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
