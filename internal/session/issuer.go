// Package session превращает проверенный Telegram init data в сессию account directory
package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/internal/initdata"
)

// Result ответ успешного выпуска сессии
type Result struct {
	User    *directory.Account `json:"user"`
	Session *directory.Session `json:"session"`
}

// Issuer выпускает сессии: validate -> lookup -> mint -> redeem.
// Не хранит состояния между запросами.
type Issuer struct {
	validator *initdata.Validator
	directory directory.Directory
	logger    *slog.Logger
}

// NewIssuer создает Issuer. directory == nil означает, что directory не настроен.
func NewIssuer(logger *slog.Logger, validator *initdata.Validator, dir directory.Directory) *Issuer {
	return &Issuer{
		validator: validator,
		directory: dir,
		logger:    logger,
	}
}

// Issue проверяет initData, привязанный к telegramID, и выпускает сессию
func (i *Issuer) Issue(ctx context.Context, initData string, telegramID int64) (*Result, error) {
	if initData == "" || telegramID == 0 {
		return nil, newError(ReasonMissingParams, nil)
	}

	if !i.validator.Configured() {
		i.logger.ErrorContext(ctx, "Telegram bot token is not configured")
		return nil, newError(ReasonBotTokenNotSet, nil)
	}
	if i.directory == nil {
		i.logger.ErrorContext(ctx, "Account directory is not configured")
		return nil, newError(ReasonDirectoryNotSet, nil)
	}

	if _, err := i.validator.Validate(initData, initdata.BindTo(telegramID)); err != nil {
		reason := validationReason(err)
		i.logger.WarnContext(ctx, "Init data rejected",
			slog.Int64("telegram_id", telegramID),
			slog.String("reason", string(reason)),
		)
		return nil, newError(reason, err)
	}

	identity, err := i.directory.LookupTelegramIdentity(ctx, telegramID)
	if err != nil {
		reason := ReasonTelegramUserNotFound
		if errors.Is(err, directory.ErrEmailNotFound) {
			reason = ReasonEmailNotFound
		}
		i.logLookupFailure(ctx, telegramID, reason, err)
		return nil, newError(reason, err)
	}
	if identity == nil {
		i.logLookupFailure(ctx, telegramID, ReasonTelegramUserNotFound, directory.ErrIdentityNotFound)
		return nil, newError(ReasonTelegramUserNotFound, directory.ErrIdentityNotFound)
	}
	if identity.Email == "" {
		i.logger.WarnContext(ctx, "Linked account has no email", slog.Int64("telegram_id", telegramID))
		return nil, newError(ReasonEmailNotFound, directory.ErrEmailNotFound)
	}

	link, err := i.directory.GenerateMagicLink(ctx, identity.Email)
	if err == nil && (link == nil || link.Token == "") {
		err = errors.New("empty one-time token")
	}
	if err != nil {
		i.logger.ErrorContext(ctx, "Failed to generate magic link",
			slog.String("user_id", identity.UserID),
			slog.Any("error", err),
		)
		return nil, newError(ReasonGenerateLinkFailed, err)
	}

	sess, err := i.directory.VerifyMagicLink(ctx, link)
	if err == nil && (sess == nil || sess.AccessToken == "") {
		err = errors.New("no session returned")
	}
	if err != nil {
		i.logger.ErrorContext(ctx, "Failed to verify magic link",
			slog.String("user_id", identity.UserID),
			slog.Any("error", err),
		)
		return nil, newError(ReasonVerifyOTPFailed, err)
	}

	user := sess.User
	if user == nil {
		user = &directory.Account{ID: identity.UserID, Email: identity.Email}
	}

	i.logger.InfoContext(ctx, "Session issued",
		slog.Int64("telegram_id", telegramID),
		slog.String("user_id", user.ID),
	)

	return &Result{User: user, Session: sess}, nil
}

func (i *Issuer) logLookupFailure(ctx context.Context, telegramID int64, reason Reason, err error) {
	attrs := []any{
		slog.Int64("telegram_id", telegramID),
		slog.String("reason", string(reason)),
	}
	if errors.Is(err, directory.ErrIdentityNotFound) || errors.Is(err, directory.ErrEmailNotFound) {
		i.logger.WarnContext(ctx, "Telegram identity lookup failed", attrs...)
		return
	}
	i.logger.ErrorContext(ctx, "Telegram identity lookup failed", append(attrs, slog.Any("error", err))...)
}

// validationReason сопоставляет ошибку initdata с кодом ответа
func validationReason(err error) Reason {
	switch {
	case errors.Is(err, initdata.ErrTelegramIDMismatch):
		return ReasonTelegramIDMismatch
	case errors.Is(err, initdata.ErrInvalidHash):
		return ReasonInvalidHash
	default:
		return ReasonInvalidInitData
	}
}
