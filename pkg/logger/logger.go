// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package logger holds the process-wide zerolog logger.
package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type loggerKey struct{}

var globalLogger zerolog.Logger

func init() {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	pname, err := os.Executable()
	if err != nil {
		pname = "zapprops"
	}

	level := zerolog.InfoLevel
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level, err = zerolog.ParseLevel(env)
		if err != nil || level == zerolog.NoLevel {
			level = zerolog.InfoLevel
			log.Warn().Err(err).Str("value", env).Msg("invalid LOG_LEVEL, defaulting to INFO")
		}
	}

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	globalLogger = log.With().
		Str("hostname", hostname).
		Str("executable", filepath.Base(pname)).
		Stack().
		Caller().
		Logger().
		Level(level)

	log.Logger = globalLogger
}

// Ctx returns the logger stored in ctx, or the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok {
			return l
		}
	}
	return &globalLogger
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithRequestID returns a context whose logger tags every event with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	l := Ctx(ctx).With().Str("request_id", id).Logger()
	return WithLogger(ctx, &l)
}

// Component returns a child of the global logger tagged with name.
func Component(name string) zerolog.Logger {
	return globalLogger.With().Str("component", name).Logger()
}

// SetLevel updates the global log level
func SetLevel(level zerolog.Level) {
	globalLogger = globalLogger.Level(level)
	log.Logger = globalLogger
}

// SetOutput redirects the global logger, keeping its level and fields.
func SetOutput(w io.Writer) {
	globalLogger = globalLogger.Output(w)
	log.Logger = globalLogger
}

// Level returns the current global log level.
func Level() zerolog.Level {
	return globalLogger.GetLevel()
}

func Fatal() *zerolog.Event {
	return globalLogger.Fatal()
}

func Error() *zerolog.Event {
	return globalLogger.Error()
}

func Warn() *zerolog.Event {
	return globalLogger.Warn()
}

func Info() *zerolog.Event {
	return globalLogger.Info()
}

func Debug() *zerolog.Event {
	return globalLogger.Debug()
}

func Trace() *zerolog.Event {
	return globalLogger.Trace()
}

// StandardWriter returns an io.Writer that logs each write as one event
// tagged with component.
func StandardWriter(component string) io.Writer {
	return Component(component)
}
