package logger

import (
	"context"
	"log/slog"
	"regexp"
)

// secretPattern matches API-key-shaped tokens so they never reach a log sink.
var secretPattern = regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`)

const redactedPlaceholder = "[REDACTED]"

// redactingHandler wraps an slog.Handler and scrubs secret-shaped substrings
// from every string attribute value before the record reaches the inner
// handler (§7 "Secret redaction").
type redactingHandler struct {
	inner slog.Handler
}

// WithRedaction wraps h so that string attribute values and the message are
// scrubbed of tokens matching sk-[A-Za-z0-9_-]{20,} before emission.
func WithRedaction(h slog.Handler) slog.Handler {
	return &redactingHandler{inner: h}
}

func (r *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return r.inner.Enabled(ctx, level)
}

func (r *redactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	rec.Message = redact(rec.Message)

	scrubbed := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(redactAttr(a))
		return true
	})
	return r.inner.Handle(ctx, scrubbed)
}

func (r *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = redactAttr(a)
	}
	return &redactingHandler{inner: r.inner.WithAttrs(scrubbed)}
}

func (r *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: r.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, redact(a.Value.String()))
	}
	return a
}

func redact(s string) string {
	return secretPattern.ReplaceAllString(s, redactedPlaceholder)
}
