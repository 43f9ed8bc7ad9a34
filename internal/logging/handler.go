// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package logging provides structured logging with trace and extension
// context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type extensionKey struct{}

// WithExtension tags ctx so every record logged with it carries the
// extension's unique id.
func WithExtension(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, extensionKey{}, id)
}

// ExtensionFrom returns the extension id set by WithExtension.
func ExtensionFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(extensionKey{}).(string)
	return id, ok && id != ""
}

// contextHandler decorates records with node identity, trace ids and the
// extension id carried by the context.
type contextHandler struct {
	next  slog.Handler
	attrs []slog.Attr
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)

	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		r.AddAttrs(slog.String("span_id", sc.SpanID().String()))
	}
	if id, ok := ExtensionFrom(ctx); ok {
		r.AddAttrs(slog.String("extension_id", id))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), attrs: h.attrs}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), attrs: h.attrs}
}

// ParseLevel maps a level name to a slog level. Unknown names yield info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Options configures Setup.
type Options struct {
	Service string
	Version string
	Node    string
	// Format is "json" or "text"; anything else means json.
	Format string
	Level  slog.Level
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Setup creates a configured slog.Logger.
func Setup(opts Options) *slog.Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	ho := &slog.HandlerOptions{Level: opts.Level}
	var base slog.Handler
	if opts.Format == "text" {
		base = slog.NewTextHandler(w, ho)
	} else {
		base = slog.NewJSONHandler(w, ho)
	}

	attrs := []slog.Attr{
		slog.String("service", opts.Service),
		slog.String("version", opts.Version),
	}
	if opts.Node != "" {
		attrs = append(attrs, slog.String("node", opts.Node))
	}
	return slog.New(&contextHandler{next: base, attrs: attrs})
}

// SetDefault sets up and installs the default logger.
func SetDefault(opts Options) *slog.Logger {
	logger := Setup(opts)
	slog.SetDefault(logger)
	return logger
}
