package router

import (
	"github.com/rs/zerolog"
)

// echoLogger routes echo's own log output (startup, internal errors) through zerolog.
type echoLogger struct {
	level zerolog.Level
	log   zerolog.Logger
}

func (l *echoLogger) Write(p []byte) (int, error) {
	l.log.WithLevel(l.level).Msg(string(p))
	return len(p), nil
}
