package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/tgbridge/internal/initdata"
	"github.com/iudanet/tgbridge/internal/metrics"
	"github.com/iudanet/tgbridge/internal/session"
	"github.com/iudanet/tgbridge/pkg/api"
)

const (
	errInitDataRequired   = "initData is required"
	errInvalidRequestBody = "invalid request body"
)

// maxRequestBodySize предел тела запроса, init data занимает единицы KB
const maxRequestBodySize = 64 << 10

// SessionIssuer выпускает сессию по init data
type SessionIssuer interface {
	Issue(ctx context.Context, initData string, telegramID int64) (*session.Result, error)
}

// TelegramHandler обрабатывает запросы Telegram Mini App
type TelegramHandler struct {
	logger    *slog.Logger
	validator *initdata.Validator
	issuer    SessionIssuer
	metrics   *metrics.Metrics
}

// NewTelegramHandler создает новый handler для Telegram Mini App
func NewTelegramHandler(logger *slog.Logger, validator *initdata.Validator, issuer SessionIssuer) *TelegramHandler {
	return &TelegramHandler{
		logger:    logger,
		validator: validator,
		issuer:    issuer,
	}
}

// WithMetrics включает учет результатов проверки и выпуска сессий
func (h *TelegramHandler) WithMetrics(m *metrics.Metrics) *TelegramHandler {
	h.metrics = m
	return h
}

// VerifyInitData обрабатывает /verify-telegram-init-data.
// Проверяет только подлинность, без привязки к telegram id.
func (h *TelegramHandler) VerifyInitData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.VerifyInitDataRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode verify request", slog.Any("error", err))
		sendError(h.logger, w, errInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if req.InitData == "" {
		sendError(h.logger, w, errInitDataRequired, http.StatusBadRequest)
		return
	}

	if !h.validator.Configured() {
		h.logger.ErrorContext(ctx, "Telegram bot token is not configured")
		sendError(h.logger, w, string(session.ReasonBotTokenNotSet), http.StatusBadRequest)
		return
	}

	_, err := h.validator.Validate(req.InitData, initdata.NoBinding())
	if err != nil {
		h.logger.WarnContext(ctx, "init data verification failed", slog.Any("error", err))
	}
	h.metrics.Verification(err == nil)

	sendJSON(h.logger, w, api.VerifyInitDataResponse{OK: err == nil}, http.StatusOK)
}

// CreateSession обрабатывает /create-telegram-session.
// Все ошибки возвращаются как 400 со стабильным кодом.
func (h *TelegramHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode create session request", slog.Any("error", err))
		h.metrics.SessionResult(string(session.ReasonMissingParams))
		sendError(h.logger, w, string(session.ReasonMissingParams), http.StatusBadRequest)
		return
	}

	result, err := h.issuer.Issue(ctx, req.InitData, req.TelegramID.Int64())
	if err != nil {
		reason := session.ReasonOf(err)
		if reason == "" {
			h.logger.ErrorContext(ctx, "unexpected session issue error", slog.Any("error", err))
			reason = session.ReasonVerifyOTPFailed
		}
		h.metrics.SessionResult(string(reason))
		sendError(h.logger, w, string(reason), http.StatusBadRequest)
		return
	}

	h.metrics.SessionResult(metrics.ResultIssued)

	resp := api.CreateSessionResponse{
		User:    result.User,
		Session: result.Session,
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
