// Package zero adapts zerolog to the slog.Handler interface, so zerolog
// output can sit behind the module's logger facade.
package zero

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
)

// Handler writes slog records through a zerolog.Logger. Wrap it with
// logger.New to obtain the facade type.
type Handler struct {
	zl     zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

// NewHandler returns a Handler emitting through zl. Level filtering follows
// zl's own level.
func NewHandler(zl zerolog.Logger) *Handler {
	return &Handler{zl: zl}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return toZerologLevel(level) >= h.zl.GetLevel()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	ev := h.zl.WithLevel(toZerologLevel(r.Level))
	for _, a := range h.attrs {
		appendAttr(ev, "", a)
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(ev, prefix, a)
		return true
	})
	ev.Msg(r.Message)
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
		zl:     h.zl,
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

func appendAttr(ev *zerolog.Event, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		gp := prefix
		if a.Key != "" {
			gp = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(ev, gp, ga)
		}
		return
	}
	ev.Interface(prefix+a.Key, a.Value.Resolve().Any())
}

func toZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
