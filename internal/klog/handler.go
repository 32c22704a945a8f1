package klog

import (
	"context"
	"log/slog"
	"time"
)

// SubsystemKey is the attribute naming the kernel subsystem a record came
// from. Loggers handed to subsystems carry it via With.
const SubsystemKey = "sub"

// ringHandler is a slog.Handler that captures records into a Ring.
type ringHandler struct {
	ring   *Ring
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newRingHandler(ring *Ring, level slog.Level) *ringHandler {
	return &ringHandler{ring: ring, level: level}
}

func (h *ringHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ringHandler) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any)
	sub := "kernel"

	take := func(a slog.Attr) {
		if a.Key == SubsystemKey {
			sub = a.Value.String()
			return
		}
		flatten(attrs, h.groups, a)
	}
	for _, a := range h.attrs {
		take(a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		take(a)
		return true
	})

	when := rec.Time
	if when.IsZero() {
		when = time.Now()
	}
	h.ring.Append(Entry{
		Time:      when,
		Level:     levelString(rec.Level),
		Subsystem: sub,
		Message:   rec.Message,
		Attrs:     attrs,
	})
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ringHandler{ring: h.ring, level: h.level, attrs: merged, groups: h.groups}
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &ringHandler{ring: h.ring, level: h.level, attrs: h.attrs, groups: groups}
}

func flatten(into map[string]any, groups []string, a slog.Attr) {
	key := a.Key
	if len(groups) > 0 {
		key = joinGroups(groups) + "." + key
	}
	switch a.Value.Kind() {
	case slog.KindGroup:
		for _, ga := range a.Value.Group() {
			flatten(into, append(groups, a.Key), ga)
		}
	case slog.KindDuration:
		into[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			into[key] = err.Error()
			return
		}
		into[key] = a.Value.Any()
	default:
		into[key] = a.Value.Any()
	}
}

func joinGroups(groups []string) string {
	out := groups[0]
	for _, g := range groups[1:] {
		out += "." + g
	}
	return out
}

func levelString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// multiHandler fans a record out to every wrapped handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, rec.Level) {
			_ = h.Handle(ctx, rec.Clone())
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: hs}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: hs}
}
