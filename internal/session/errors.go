package session

import (
	"errors"
	"fmt"
)

// Reason стабильный код ошибки, который уходит клиенту в поле error
type Reason string

// Коды ошибок выпуска сессии
const (
	ReasonMissingParams        Reason = "missing_params"
	ReasonBotTokenNotSet       Reason = "bot_token_not_set"
	ReasonDirectoryNotSet      Reason = "supabase_env_not_set"
	ReasonInvalidInitData      Reason = "invalid_init_data"
	ReasonTelegramIDMismatch   Reason = "telegram_id_mismatch"
	ReasonInvalidHash          Reason = "invalid_hash"
	ReasonTelegramUserNotFound Reason = "telegram_user_not_found"
	ReasonEmailNotFound        Reason = "email_not_found"
	ReasonGenerateLinkFailed   Reason = "generate_link_failed"
	ReasonVerifyOTPFailed      Reason = "verify_otp_failed"
)

// Kind группа ошибки
type Kind string

// Группы ошибок
const (
	KindRequest       Kind = "request"
	KindAuthenticity  Kind = "authenticity"
	KindConfiguration Kind = "configuration"
	KindDownstream    Kind = "downstream"
)

// Kind возвращает группу, к которой относится код
func (r Reason) Kind() Kind {
	switch r {
	case ReasonMissingParams, ReasonInvalidInitData:
		return KindRequest
	case ReasonInvalidHash, ReasonTelegramIDMismatch:
		return KindAuthenticity
	case ReasonBotTokenNotSet, ReasonDirectoryNotSet:
		return KindConfiguration
	default:
		return KindDownstream
	}
}

// Error ошибка выпуска сессии с кодом и исходной причиной
type Error struct {
	Err    error
	Reason Reason
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// ReasonOf извлекает код из цепочки ошибок. Для чужих ошибок возвращает пустую строку.
func ReasonOf(err error) Reason {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Reason
	}
	return ""
}
