// Package testlog provides a deterministic slog.Handler for tests: indexed
// lines without timestamps, so log output can be asserted verbatim.
package testlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Handler prints records as "[index] LEVEL: msg k=v, k2=v2" lines to a
// writer owned by the test. Clones made by WithAttrs/WithGroup share one
// index counter so interleaved output stays ordered.
type Handler struct {
	out    *output
	attrs  []slog.Attr
	groups []string
}

type output struct {
	mu    sync.Mutex
	w     io.Writer
	index int
}

func NewHandler(w io.Writer) *Handler {
	return &Handler{out: &output{w: w}}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := h.formatAttrs(&r)

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	if attrs != "" {
		fmt.Fprintf(h.out.w, "[%d] %s: %s %s\n", h.out.index, r.Level, r.Message, attrs)
	} else {
		fmt.Fprintf(h.out.w, "[%d] %s: %s\n", h.out.index, r.Level, r.Message)
	}
	h.out.index++
	return nil
}

// WithAttrs stores attrs with the current group prefix baked into their keys.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	prefix := h2.prefix()
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}
	return h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

func (h *Handler) clone() *Handler {
	return &Handler{
		out:    h.out,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

func (h *Handler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func (h *Handler) formatAttrs(r *slog.Record) string {
	var sb strings.Builder

	for _, a := range h.attrs {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatAttr(a, ""))
	}

	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatAttr(a, prefix))
		return true
	})
	return sb.String()
}

func formatAttr(a slog.Attr, prefix string) string {
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix + a.Key + "."
		parts := make([]string, 0, len(a.Value.Group()))
		for _, ga := range a.Value.Group() {
			parts = append(parts, formatAttr(ga, groupPrefix))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value)
}
