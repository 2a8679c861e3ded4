package scene

import (
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer"
	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithRenderer attaches the renderer the scene's backend records into. The engine uses it to
// open compute and render frames around PrepareCompute and DrawCalls.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) SceneBuilderOption {
	return func(s *scene) {
		s.r = r
	}
}

// WithComputeWorkers sets the number of worker goroutines used to drain emitters during
// PrepareCompute. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}

// WithMetrics records every trail set added to the scene into metrics.
//
// Parameters:
//   - metrics: the trail metrics
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMetrics(metrics *trail.Metrics) SceneBuilderOption {
	return func(s *scene) {
		s.metrics = metrics
	}
}
