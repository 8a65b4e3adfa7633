// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for the Attrail SDK.
//
// The SDK is a guest inside a host application, so the defaults are
// conservative: stderr output, Info level, text format. Host apps that
// want machine-parseable output can switch to JSON, and tests can
// attach a Capture handler to assert on emitted records.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("dispatching event", "event", name)
//	logger.Error("dispatch failed", "error", err)
//
// # Privacy
//
// This package does NOT redact attribute values. Callers must never log
// raw PII; log presence booleans instead:
//
//	// BAD: logs the address
//	logger.Info("signup", "email", user.Email)
//
//	// GOOD: log metadata only
//	logger.Info("signup", "email_present", user.Email != "")
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable, unexpected situations.
	LevelWarn

	// LevelError is for failed operations.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel bridges Level to the standard library.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures Logger behavior. The zero value writes Info+
// messages to stderr in text format.
type Config struct {
	// Level sets the minimum log level. Messages below it are discarded.
	// Default: LevelInfo
	Level Level

	// Service identifies the component generating logs. Included in
	// every record as the "service" attribute.
	// Default: "" (no service attribute)
	Service string

	// JSON switches stderr output to JSON objects.
	// Default: false (human-readable text)
	JSON bool

	// Quiet disables stderr output entirely. Useful when a Capture
	// handler is the only consumer (tests) or the host app owns stderr.
	// Default: false
	Quiet bool

	// Capture, when non-nil, additionally receives every record that
	// passes the level filter. Intended for tests.
	Capture *Capture
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps slog.Logger with the SDK's configuration surface.
// Safe for concurrent use.
type Logger struct {
	slog   *slog.Logger
	config Config
}

// New creates a Logger from config.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}
	if config.Capture != nil {
		handlers = append(handlers, &captureHandler{capture: config.Capture, level: opts.Level})
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet with no capture still needs a valid handler.
		handler = discardHandler{}
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	return &Logger{slog: slog.New(handler), config: config}
}

// Default returns a logger with Info level, text format, stderr output
// and the "attrail" service attribute.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "attrail"})
}

// Debug logs a message at Debug level with key-value attributes.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs a message at Info level with key-value attributes.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs a message at Warn level with key-value attributes.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs a message at Error level with key-value attributes.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger carrying additional attributes. The
// parent is not modified.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), config: l.config}
}

// Slog exposes the underlying slog.Logger for collaborators that speak
// slog directly (e.g. the BadgerDB adapter).
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// =============================================================================
// Capture (test support)
// =============================================================================

// Record is one captured log record.
type Record struct {
	Level   Level
	Message string
	Attrs   map[string]any
}

// Capture collects log records in memory for test assertions.
//
//	cap := logging.NewCapture()
//	logger := logging.New(logging.Config{Quiet: true, Capture: cap})
//	logger.Info("hello", "k", "v")
//	records := cap.Records()
type Capture struct {
	mu      sync.Mutex
	records []Record
}

// NewCapture creates an empty Capture.
func NewCapture() *Capture {
	return &Capture{}
}

// Records returns a copy of all captured records.
func (c *Capture) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Capture) add(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
}

// captureHandler feeds records into a Capture.
type captureHandler struct {
	capture *Capture
	level   slog.Leveler
	attrs   []slog.Attr
}

func (h *captureHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.capture.add(Record{Level: fromSlogLevel(r.Level), Message: r.Message, Attrs: attrs})
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &captureHandler{capture: h.capture, level: h.level, attrs: merged}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func fromSlogLevel(l slog.Level) Level {
	switch {
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out records to several slog handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// discardHandler drops everything.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
