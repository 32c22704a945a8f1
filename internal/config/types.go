// Package config loads and validates the boot manifest: kernel tunables,
// console settings, and the list of programs init launches at boot.
package config

import (
	"fmt"
	"strings"
)

const (
	// DefaultMaxProcs bounds the PID space when the manifest leaves it unset.
	DefaultMaxProcs = 1024
	// DefaultMaxFiles is the per-process descriptor-table size.
	DefaultMaxFiles = 32

	minMaxProcs = 8
	maxMaxProcs = 1 << 20
	minMaxFiles = 4
	maxMaxFiles = 4096
)

// Manifest is the root of a boot manifest document.
type Manifest struct {
	Kernel  Kernel      `yaml:"kernel"`
	Console Console     `yaml:"console"`
	Boot    []BootEntry `yaml:"boot"`
}

// Kernel holds the kernel tunables.
type Kernel struct {
	MaxProcs int    `yaml:"maxProcs"`
	MaxFiles int    `yaml:"maxFiles"`
	LogLevel string `yaml:"logLevel"`
}

// Console configures the line-discipline console device.
type Console struct {
	Echo bool `yaml:"echo"`
	// Script is typed into the console after boot, byte by byte. Useful for
	// demos and tests that exercise blocked readers.
	Script string `yaml:"script"`
}

// BootEntry names one program instance init spawns at boot.
type BootEntry struct {
	Name    string            `yaml:"name"`
	Program string            `yaml:"program"`
	Copies  int               `yaml:"copies"`
	Args    map[string]string `yaml:"args"`
}

// ApplyDefaults fills unset fields with their defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Kernel.MaxProcs == 0 {
		m.Kernel.MaxProcs = DefaultMaxProcs
	}
	if m.Kernel.MaxFiles == 0 {
		m.Kernel.MaxFiles = DefaultMaxFiles
	}
	for i := range m.Boot {
		if m.Boot[i].Copies == 0 {
			m.Boot[i].Copies = 1
		}
	}
}

// Validate checks the manifest after defaults have been applied.
func (m *Manifest) Validate() error {
	if m.Kernel.MaxProcs < minMaxProcs || m.Kernel.MaxProcs > maxMaxProcs {
		return fmt.Errorf("kernel.maxProcs %d out of range [%d, %d]", m.Kernel.MaxProcs, minMaxProcs, maxMaxProcs)
	}
	if m.Kernel.MaxFiles < minMaxFiles || m.Kernel.MaxFiles > maxMaxFiles {
		return fmt.Errorf("kernel.maxFiles %d out of range [%d, %d]", m.Kernel.MaxFiles, minMaxFiles, maxMaxFiles)
	}
	seen := make(map[string]struct{}, len(m.Boot))
	for i, entry := range m.Boot {
		field := fmt.Sprintf("boot[%d]", i)
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return fmt.Errorf("%s: name must not be empty", field)
		}
		if name != entry.Name {
			return fmt.Errorf("%s: name %q has leading or trailing whitespace", field, entry.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%s: duplicate name %q", field, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(entry.Program) == "" {
			return fmt.Errorf("%s (%s): program must not be empty", field, name)
		}
		if entry.Copies < 1 {
			return fmt.Errorf("%s (%s): copies must be at least 1", field, name)
		}
	}
	return nil
}
