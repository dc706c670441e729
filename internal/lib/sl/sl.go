// Package sl содержит вспомогательные атрибуты для логгера slog.
package sl

import (
	"log/slog"
	"runtime/debug"
)

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to send email", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Panic возвращает атрибуты для восстановленной паники вместе со стеком.
func Panic(rec any) slog.Attr {
	return slog.Group("panic",
		slog.Any("value", rec),
		slog.String("stack", string(debug.Stack())),
	)
}
