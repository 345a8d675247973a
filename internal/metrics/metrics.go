// Package metrics exposes engine counters on a dedicated Prometheus
// registry so embedding applications can mount them without inheriting the
// process-wide default collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	// SnapshotPublishes counts snapshots made visible to the render side.
	SnapshotPublishes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fxgraph_snapshot_publishes_total",
		Help: "Snapshots published to the render pipeline.",
	})

	// Crossfades counts structural crossfades started by the renderer.
	Crossfades = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fxgraph_crossfades_total",
		Help: "Structural snapshot crossfades started.",
	})

	// CompileFailures counts lane compilations rejected at publish time.
	CompileFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fxgraph_compile_failures_total",
		Help: "Lane compilations that failed, rendering the lane silent.",
	})

	// RingDroppedFrames counts frames discarded by overflowing bridge writes.
	RingDroppedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fxgraph_ring_dropped_frames_total",
		Help: "Frames dropped by the ring bridge on overflow.",
	})

	// RingUnderruns counts bridge reads that found no frames.
	RingUnderruns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fxgraph_ring_underruns_total",
		Help: "Ring bridge reads that found the buffer empty.",
	})
)

func init() {
	registry.MustRegister(
		SnapshotPublishes,
		Crossfades,
		CompileFailures,
		RingDroppedFrames,
		RingUnderruns,
	)
}

// Registry returns the registry holding all engine collectors.
func Registry() *prometheus.Registry {
	return registry
}
