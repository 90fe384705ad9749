// Package logging defines the structured logging seam used throughout
// the engine. The Logger interface is shaped after pkg/core/logger.go
// in the teacher repo (Debug/Info/Warn/Error plus a With for attaching
// key-values), but the default implementation is backed by zerolog
// instead of a hand-rolled formatter.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logging contract every component accepts
// at construction time. Implementations must be safe for concurrent
// use.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

// zlogger adapts zerolog.Logger to the Logger interface.
type zlogger struct {
	l zerolog.Logger
}

// New returns a Logger writing human-readable console output to w.
func New(w io.Writer) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05.000"}).With().Timestamp().Logger()
	return &zlogger{l: zl}
}

// NewStd returns a Logger writing to stdout, the default store.Open
// uses; other components default to Nop when given no Logger.
func NewStd() Logger {
	return New(os.Stdout)
}

func (z *zlogger) event(e *zerolog.Event, msg string, keyvals ...any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}

func (z *zlogger) Debug(msg string, keyvals ...any) { z.event(z.l.Debug(), msg, keyvals...) }
func (z *zlogger) Info(msg string, keyvals ...any)  { z.event(z.l.Info(), msg, keyvals...) }
func (z *zlogger) Warn(msg string, keyvals ...any)  { z.event(z.l.Warn(), msg, keyvals...) }
func (z *zlogger) Error(msg string, keyvals ...any) { z.event(z.l.Error(), msg, keyvals...) }

func (z *zlogger) With(keyvals ...any) Logger {
	ctx := z.l.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, keyvals[i+1])
	}
	return &zlogger{l: ctx.Logger()}
}

// nop discards everything; used in tests and whenever the caller does
// not want log output.
type nop struct{}

// Nop returns a Logger that discards all messages.
func Nop() Logger { return nop{} }

func (nop) Debug(string, ...any)  {}
func (nop) Info(string, ...any)   {}
func (nop) Warn(string, ...any)   {}
func (nop) Error(string, ...any)  {}
func (n nop) With(...any) Logger  { return n }
