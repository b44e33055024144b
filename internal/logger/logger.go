// Package logger wraps zerolog.Logger with the constructors and
// context helpers shared by the note server and the notes CLI.
//
// Logger embeds zerolog.Logger, so Debug, Info, Warn and friends are
// available directly. Request-scoped loggers travel in the context and are
// recovered with FromContext or FromRequest.
package logger

import (
	"context"
	"io"
	"net/http"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger struct {
	zerolog.Logger
}

// New builds a JSON logger writing to w. Every entry carries the role,
// a timestamp and the calling function name under "func". An unknown or
// empty level falls back to info.
func New(role string, w io.Writer, level string) *Logger {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(w).Level(lvl).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{logger}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// GetChildLogger returns a copy that can be enriched without touching
// the parent's fields.
func (l *Logger) GetChildLogger() *Logger {
	return &Logger{l.With().Logger()}
}

func FromRequest(r *http.Request) *Logger {
	return FromContext(r.Context())
}

// FromContext returns the logger attached with zerolog's WithContext. When
// none is attached zerolog hands back its disabled default, never nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
