// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

// Package log is the leveled, structured logger used throughout this
// module, in the same call shape go-ethereum's own log package uses:
// Debug/Info/Warn/Error taking a message followed by alternating
// key/value pairs. It wraps the standard library's log/slog text handler;
// records are written as plain, uncolored text.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger is the leveled logging interface the rest of this module depends
// on, so collaborators and tests can inject their own.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	// With returns a child logger that always includes the given
	// key/value pairs, e.g. a per-peer or per-block logger.
	With(kv ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// Root is the default process-wide logger, writing to stderr.
var Root Logger = New(os.Stderr)

// New builds a Logger writing human-readable text records to w. When w is
// a terminal *os.File it is wrapped with go-colorable; the handler itself
// writes no color codes.
func New(w io.Writer) Logger {
	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = colorable.NewColorable(f)
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().Format("2006-01-02T15:04:05.000"))
			}
			return a
		},
	})
	return &slogLogger{l: slog.New(handler)}
}

func (s *slogLogger) Debug(msg string, kv ...any) { s.l.Log(context.Background(), slog.LevelDebug, msg, kv...) }
func (s *slogLogger) Info(msg string, kv ...any)  { s.l.Log(context.Background(), slog.LevelInfo, msg, kv...) }
func (s *slogLogger) Warn(msg string, kv ...any)  { s.l.Log(context.Background(), slog.LevelWarn, msg, kv...) }
func (s *slogLogger) Error(msg string, kv ...any) { s.l.Log(context.Background(), slog.LevelError, msg, kv...) }

func (s *slogLogger) With(kv ...any) Logger {
	return &slogLogger{l: s.l.With(kv...)}
}

// Debug logs to Root.
func Debug(msg string, kv ...any) { Root.Debug(msg, kv...) }

// Info logs to Root.
func Info(msg string, kv ...any) { Root.Info(msg, kv...) }

// Warn logs to Root.
func Warn(msg string, kv ...any) { Root.Warn(msg, kv...) }

// Error logs to Root.
func Error(msg string, kv ...any) { Root.Error(msg, kv...) }
