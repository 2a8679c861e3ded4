package engine

import (
	"github.com/Carmen-Shannon/oxy-trail/engine/scene"
	"github.com/Carmen-Shannon/oxy-trail/engine/window"
	"github.com/prometheus/client_golang/prometheus"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables the profiler, which records frame rate and memory metrics every frame.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets how often the tick callback runs, usually the trail config's frame rate.
// Values <= 0 are treated as 60 Hz.
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.tickPeriod = ratePeriod(fps)
	}
}

// WithWindow sets the window the engine renders into and runs the message loop of. Without a
// window Run blocks until Quit.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithScene registers a scene at the given z-index key during engine construction.
// Scenes are rendered in ascending key order during the render loop.
//
// Parameters:
//   - key: the z-index determining render order (lower renders first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.SetRenderFrameLimit(fps)
	}
}

// WithMetricsRegistry records profiler gauges on reg. Trail metrics created on the same
// registry are then exposed alongside frame timings.
//
// Parameters:
//   - reg: the Prometheus registry
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMetricsRegistry(reg *prometheus.Registry) EngineBuilderOption {
	return func(e *engine) {
		e.metricsRegistry = reg
	}
}
