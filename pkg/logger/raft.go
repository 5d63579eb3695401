// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"io"
	"log"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/rs/zerolog"
)

// ZerologRaftAdapter routes hclog output from hashicorp/raft into zerolog.
// Arguments are hclog key/value pairs and become structured fields.
type ZerologRaftAdapter struct {
	name   string
	fields []interface{}
}

// NewRaftLogger returns an hclog.Logger named name.
func NewRaftLogger(name string) hclog.Logger {
	return ZerologRaftAdapter{name: name}
}

func (z ZerologRaftAdapter) event(e *zerolog.Event, msg string, args []interface{}) {
	if z.name != "" {
		e = e.Str("component", z.name)
	}
	if len(z.fields) > 0 {
		e = e.Fields(z.fields)
	}
	if len(args)%2 == 1 {
		args = append(args, "<missing>")
	}
	if len(args) > 0 {
		e = e.Fields(args)
	}
	e.Msg(msg)
}

func (z ZerologRaftAdapter) Trace(msg string, args ...interface{}) { z.event(Trace(), msg, args) }
func (z ZerologRaftAdapter) Debug(msg string, args ...interface{}) { z.event(Debug(), msg, args) }
func (z ZerologRaftAdapter) Info(msg string, args ...interface{})  { z.event(Info(), msg, args) }
func (z ZerologRaftAdapter) Warn(msg string, args ...interface{})  { z.event(Warn(), msg, args) }
func (z ZerologRaftAdapter) Error(msg string, args ...interface{}) { z.event(Error(), msg, args) }

func (z ZerologRaftAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace:
		z.Trace(msg, args...)
	case hclog.Debug:
		z.Debug(msg, args...)
	case hclog.Warn:
		z.Warn(msg, args...)
	case hclog.Error:
		z.Error(msg, args...)
	default:
		z.Info(msg, args...)
	}
}

// GetLevel reports the global zerolog level in hclog terms.
func (z ZerologRaftAdapter) GetLevel() hclog.Level {
	switch Level() {
	case zerolog.TraceLevel:
		return hclog.Trace
	case zerolog.DebugLevel:
		return hclog.Debug
	case zerolog.WarnLevel:
		return hclog.Warn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return hclog.Error
	case zerolog.Disabled:
		return hclog.Off
	default:
		return hclog.Info
	}
}

func (z ZerologRaftAdapter) IsTrace() bool { return z.GetLevel() <= hclog.Trace }
func (z ZerologRaftAdapter) IsDebug() bool { return z.GetLevel() <= hclog.Debug }
func (z ZerologRaftAdapter) IsInfo() bool  { return z.GetLevel() <= hclog.Info }
func (z ZerologRaftAdapter) IsWarn() bool  { return z.GetLevel() <= hclog.Warn }
func (z ZerologRaftAdapter) IsError() bool { return z.GetLevel() <= hclog.Error }

// SetLevel is a no-op; the level follows the global logger.
func (z ZerologRaftAdapter) SetLevel(level hclog.Level) {}

func (z ZerologRaftAdapter) Name() string { return z.name }

func (z ZerologRaftAdapter) Named(name string) hclog.Logger {
	if z.name != "" {
		name = z.name + "." + name
	}
	return ZerologRaftAdapter{name: name, fields: z.fields}
}

func (z ZerologRaftAdapter) ResetNamed(name string) hclog.Logger {
	return ZerologRaftAdapter{name: name, fields: z.fields}
}

func (z ZerologRaftAdapter) With(args ...interface{}) hclog.Logger {
	fields := make([]interface{}, 0, len(z.fields)+len(args))
	fields = append(fields, z.fields...)
	fields = append(fields, args...)
	if len(fields)%2 == 1 {
		fields = append(fields, "<missing>")
	}
	return ZerologRaftAdapter{name: z.name, fields: fields}
}

func (z ZerologRaftAdapter) ImpliedArgs() []interface{} { return z.fields }

func (z ZerologRaftAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(z.StandardWriter(opts), "", 0)
}

func (z ZerologRaftAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	l := globalLogger.With().Str("component", z.name).Logger()
	return l
}
