package renderer

import "fmt"

// RendererBackendType identifies the GPU API the Renderer records trail kernels and ribbons with.
type RendererBackendType int

const (
	// BackendTypeWGPU records through WebGPU.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for vertical blank, capping the frame rate to the display refresh.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents immediately and may tear.
	PresentModeUncapped
)

// MSAASampleCount is the number of samples per pixel of the color and depth targets. WebGPU
// guarantees 1 and 4; 8 and 16 depend on the adapter.
type MSAASampleCount uint32

const (
	MSAAOff MSAASampleCount = 1
	MSAA4x  MSAASampleCount = 4
	MSAA8x  MSAASampleCount = 8
	MSAA16x MSAASampleCount = 16
)

// ParseMSAA converts a sample count given on the command line. 0 is treated as off.
//
// Parameters:
//   - samples: 0, 1, 4, 8 or 16
//
// Returns:
//   - MSAASampleCount: the sample count
//   - error: if samples is not a supported count
func ParseMSAA(samples int) (MSAASampleCount, error) {
	switch samples {
	case 0, 1:
		return MSAAOff, nil
	case 4:
		return MSAA4x, nil
	case 8:
		return MSAA8x, nil
	case 16:
		return MSAA16x, nil
	default:
		return MSAAOff, fmt.Errorf("renderer: unsupported msaa sample count %d", samples)
	}
}

// RendererBackend is the backend the Renderer delegates to.
type RendererBackend interface {
	wgpuRendererBackend
}
