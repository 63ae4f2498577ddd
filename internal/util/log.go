package util

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	CTXKeyLogger    contextKey = "logger"
	CTXKeyRequestID contextKey = "request_id"
)

// LogFromContext returns the request-scoped logger stored in ctx, falling back to the
// global logger.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l, ok := ctx.Value(CTXKeyLogger).(zerolog.Logger)
	if !ok {
		l = log.Logger
	}

	return &l
}

func LogFromEchoContext(c echo.Context) *zerolog.Logger {
	return LogFromContext(c.Request().Context())
}

func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, CTXKeyLogger, l)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CTXKeyRequestID).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CTXKeyRequestID, id)
}
