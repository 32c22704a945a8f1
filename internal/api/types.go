package api

import (
	"time"

	"github.com/h2323547425/weenix/internal/proc"
)

// Source is the read-only kernel view control servers expose. The kernel
// provides the process and kernel snapshots; the log ring provides dmesg.
type Source interface {
	Snapshot() []proc.Info
	KernelInfo() proc.KernelInfo
	Dmesg() []string
}

// ProcsReport lists every process visible at one instant.
type ProcsReport struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Procs       []proc.Info `json:"procs"`
}

// KernelReport carries the kernel-wide summary.
type KernelReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Kernel      proc.KernelInfo `json:"kernel"`
}

// DmesgReport carries the in-memory kernel log.
type DmesgReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Lines       []string  `json:"lines"`
}

// Health is the liveness probe body.
type Health struct {
	Status string `json:"status"`
	State  string `json:"state"`
}
