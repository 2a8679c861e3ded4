package trail

import "github.com/go-gl/mathgl/mgl32"

// BatchBuilderOption configures a Batch.
type BatchBuilderOption func(*Batch)

// WithDefaultColor sets the color applied to samples added without one.
//
// Parameters:
//   - color: RGBA color
//
// Returns:
//   - BatchBuilderOption: functional option to set the default color
func WithDefaultColor(color mgl32.Vec4) BatchBuilderOption {
	return func(b *Batch) {
		b.defaultColor = color
	}
}
