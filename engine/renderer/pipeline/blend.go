package pipeline

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BlendMode selects how a ribbon material combines with what is already in the color target.
type BlendMode int

const (
	// BlendModeOpaque overwrites the target.
	BlendModeOpaque BlendMode = iota
	// BlendModeAlpha is straight alpha blending, used for smoke and tracer ribbons.
	BlendModeAlpha
	// BlendModeAdditive adds the source scaled by its alpha, used for glowing ribbons.
	BlendModeAdditive
)

func (m BlendMode) String() string {
	switch m {
	case BlendModeOpaque:
		return "opaque"
	case BlendModeAlpha:
		return "alpha"
	case BlendModeAdditive:
		return "additive"
	default:
		return fmt.Sprintf("BlendMode(%d)", int(m))
	}
}

// ParseBlendMode maps a config name to a BlendMode. The empty string is alpha.
//
// Parameters:
//   - name: "opaque", "alpha", "additive" or ""
//
// Returns:
//   - BlendMode: the parsed mode
//   - error: if name is not a known mode
func ParseBlendMode(name string) (BlendMode, error) {
	switch name {
	case "", "alpha":
		return BlendModeAlpha, nil
	case "additive":
		return BlendModeAdditive, nil
	case "opaque":
		return BlendModeOpaque, nil
	default:
		return BlendModeAlpha, fmt.Errorf("unknown blend mode %q", name)
	}
}

// State returns the color target blend state for the mode, nil for opaque.
func (m BlendMode) State() *wgpu.BlendState {
	switch m {
	case BlendModeAlpha:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case BlendModeAdditive:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorZero,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	default:
		return nil
	}
}
