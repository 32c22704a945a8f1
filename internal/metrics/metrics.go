// Package metrics exposes kernel lifecycle counters over a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	procsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weenix",
		Name:      "procs_created_total",
		Help:      "Total number of process descriptors created.",
	})

	procsExited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weenix",
		Name:      "procs_exited_total",
		Help:      "Total number of processes that completed cleanup.",
	})

	procsReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weenix",
		Name:      "procs_reaped_total",
		Help:      "Total number of dead children collected by wait.",
	})

	procsAdopted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weenix",
		Name:      "procs_adopted_total",
		Help:      "Total number of orphans reparented to init.",
	})

	procsCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weenix",
		Name:      "procs_cancelled_total",
		Help:      "Total number of processes delivered a cancellation.",
	})

	pidExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weenix",
		Name:      "pid_exhausted_total",
		Help:      "Total number of process creations refused for lack of a free PID.",
	})

	procsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "weenix",
		Name:      "procs_live",
		Help:      "Process descriptors currently registered.",
	})

	threadsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "weenix",
		Name:      "threads_live",
		Help:      "Kernel threads currently running.",
	})

	waitBlock = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "weenix",
		Name:      "wait_block_seconds",
		Help:      "Time callers spent inside wait before collecting a child.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "weenix",
		Name:      "build_info",
		Help:      "Build metadata for the running weenix binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(
		procsCreated, procsExited, procsReaped, procsAdopted, procsCancelled,
		pidExhausted, procsLive, threadsLive, waitBlock, buildInfo,
	)
}

// Registry returns the Prometheus registry containing all kernel metrics.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the kernel metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncProcsCreated records a successful process creation.
func IncProcsCreated() { procsCreated.Inc(); procsLive.Inc() }

// IncProcsExited records a completed cleanup.
func IncProcsExited() { procsExited.Inc() }

// IncProcsReaped records a destroyed descriptor.
func IncProcsReaped() { procsReaped.Inc(); procsLive.Dec() }

// AddProcsAdopted records n orphans moved to init.
func AddProcsAdopted(n int) {
	if n > 0 {
		procsAdopted.Add(float64(n))
	}
}

// IncProcsCancelled records one cancellation delivery.
func IncProcsCancelled() { procsCancelled.Inc() }

// IncPIDExhausted records a creation refused because the PID space is full.
func IncPIDExhausted() { pidExhausted.Inc() }

// ThreadStarted counts a kernel thread entering its run loop.
func ThreadStarted() { threadsLive.Inc() }

// ThreadFinished counts a kernel thread reaching its terminal state.
func ThreadFinished() { threadsLive.Dec() }

// ObserveWaitBlock records how long a wait call took to collect a child.
func ObserveWaitBlock(d time.Duration) {
	waitBlock.Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
