// Package klog is the kernel log: slog in front, a bounded in-memory ring
// behind. Every record goes to the configured writer and into the ring, so
// the CLI, the HTTP API, and the monitor can replay recent kernel activity
// the way dmesg does.
package klog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one captured kernel log record.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Subsystem string         `json:"subsystem"`
	Message   string         `json:"message"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Ring is a fixed-capacity circular store of log entries. When full, the
// oldest entry is overwritten.
type Ring struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
	boot    time.Time
}

// NewRing returns a ring holding at most size entries. Timestamps in
// formatted output are rendered relative to the ring's creation, which the
// kernel treats as boot time.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{
		entries: make([]Entry, size),
		boot:    time.Now(),
	}
}

// Append stores one entry, evicting the oldest when the ring is full.
func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.head] = e
	r.head = (r.head + 1) % len(r.entries)
	if r.count < len(r.entries) {
		r.count++
	}
}

// Entries returns the stored entries in chronological order.
func (r *Ring) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.count == 0 {
		return nil
	}
	out := make([]Entry, r.count)
	if r.count < len(r.entries) {
		copy(out, r.entries[:r.count])
		return out
	}
	n := copy(out, r.entries[r.head:])
	copy(out[n:], r.entries[:r.head])
	return out
}

// Lines renders the stored entries in the kernel's dmesg-like format.
func (r *Ring) Lines() []string {
	entries := r.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = r.formatLine(e)
	}
	return lines
}

// Len reports the number of stored entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func (r *Ring) formatLine(e Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%10.4f] %-5s %s: %s",
		e.Time.Sub(r.boot).Seconds(), e.Level, e.Subsystem, e.Message)
	if len(e.Attrs) > 0 {
		keys := make([]string, 0, len(e.Attrs))
		for k := range e.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, e.Attrs[k])
		}
	}
	return sb.String()
}
