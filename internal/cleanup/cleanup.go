// Package cleanup периодически удаляет истекшие одноразовые и refresh токены
// локального directory
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iudanet/tgbridge/internal/metrics"
)

// defaultRunTimeout ограничение на один прогон очистки
const defaultRunTimeout = time.Minute

// TokenPurger удаляет истекшие токены и возвращает их количество
type TokenPurger interface {
	DeleteExpiredTokens(ctx context.Context) (int, error)
}

// Scheduler запускает очистку по cron расписанию
type Scheduler struct {
	cron    *cron.Cron
	purger  TokenPurger
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// New создает планировщик. schedule: стандартное cron выражение
// из пяти полей или дескриптор (@hourly, @every 30m).
func New(logger *slog.Logger, purger TokenPurger, schedule string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		purger:  purger,
		logger:  logger,
		timeout: defaultRunTimeout,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	return s, nil
}

// WithMetrics включает учет удаленных токенов
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// Start запускает планировщик в фоне
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Token cleanup scheduler started")
}

// Stop останавливает планировщик и ждет завершения текущего прогона
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Token cleanup did not finish before shutdown")
	}
}

// RunOnce выполняет одну очистку
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	deleted, err := s.purger.DeleteExpiredTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	s.metrics.TokensPurged(deleted)
	return deleted, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	deleted, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("Token cleanup failed", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		s.logger.Info("Expired tokens deleted", slog.Int("count", deleted))
	}
}
