package trail

import "github.com/go-gl/mathgl/mgl32"

type emitterOptions struct {
	color           mgl32.Vec4
	inputRate       float32
	minNodeDistance float32
}

// EmitterBuilderOption configures an emitter.
type EmitterBuilderOption func(*emitterOptions)

// WithEmitterColor sets the color of emitted samples.
//
// Parameters:
//   - color: RGBA color
//
// Returns:
//   - EmitterBuilderOption: functional option to set the sample color
func WithEmitterColor(color mgl32.Vec4) EmitterBuilderOption {
	return func(o *emitterOptions) {
		o.color = color
	}
}

// WithInputRate sets the samples per second a LinearEmitter catches up at.
//
// Parameters:
//   - rate: samples per second
//
// Returns:
//   - EmitterBuilderOption: functional option to set the input rate
func WithInputRate(rate float32) EmitterBuilderOption {
	return func(o *emitterOptions) {
		o.inputRate = rate
	}
}

// WithMinNodeDistance drops LinearEmitter samples closer than d to the previous one.
//
// Parameters:
//   - d: minimum distance between samples
//
// Returns:
//   - EmitterBuilderOption: functional option to set the minimum node distance
func WithMinNodeDistance(d float32) EmitterBuilderOption {
	return func(o *emitterOptions) {
		o.minNodeDistance = d
	}
}

func newEmitterOptions(options []EmitterBuilderOption) emitterOptions {
	o := emitterOptions{
		color:     mgl32.Vec4{1, 1, 1, 1},
		inputRate: 60,
	}
	for _, option := range options {
		option(&o)
	}
	return o
}
