// Package prog holds the program registry and the builtin workloads the boot
// manifest can name. A program factory turns manifest args into a kernel
// thread entry; the init program spawns the boot plan and reaps until the
// tree is empty.
package prog

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/h2323547425/weenix/internal/proc"
)

// Factory builds a thread entry from manifest args.
type Factory func(args map[string]string) proc.Func

// Registry maps program names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates factory with name. When multiple factories register
// the same name the most recent registration wins.
func (r *Registry) Register(name string, factory Factory) {
	if name == "" {
		panic("prog.Register: name must not be empty")
	}
	if factory == nil {
		panic("prog.Register: factory must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve looks a program up by name.
func (r *Registry) Resolve(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown program %q (have %v)", name, r.names())
	}
	return f, nil
}

// Names lists the registered programs sorted by name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// intArg parses args[key] as an int, falling back to def when missing or
// malformed.
func intArg(args map[string]string, key string, def int) int {
	raw, ok := args[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
