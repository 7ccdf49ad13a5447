// Package logger создает slog.Logger по конфигурации
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveKeys атрибуты, значения которых никогда не пишутся в лог
var sensitiveKeys = map[string]struct{}{
	"bot_token":     {},
	"init_data":     {},
	"initdata":      {},
	"hash":          {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"service_key":   {},
	"jwt_secret":    {},
}

// New создает логгер. format: json (по умолчанию) или text.
// output == nil означает os.Stderr.
func New(level, format string, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
				return slog.String(a.Key, redacted)
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text", "console":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}

// ParseLevel преобразует строку в slog.Level, неизвестное значение дает info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
