package klog

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DefaultRingSize bounds the in-memory log history.
const DefaultRingSize = 512

// New builds the kernel logger: records go both to w as slog text output and
// into the returned Ring. Pass io.Discard to keep the log ring-only.
func New(level slog.Level, w io.Writer) (*slog.Logger, *Ring) {
	ring := NewRing(DefaultRingSize)
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	h := &multiHandler{handlers: []slog.Handler{text, newRingHandler(ring, level)}}
	return slog.New(h), ring
}

// ParseLevel maps a config string onto a slog level. The empty string means
// info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
