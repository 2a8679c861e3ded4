package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-trail/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("ribbon", PipelineTypeRender)

	assert.Equal(t, "ribbon", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.Equal(t, BlendModeOpaque, p.BlendMode())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Nil(t, p.Shader(shader.ShaderTypeVertex))
	assert.Nil(t, p.BindGroupLayout(0))
}

func TestPipelineOptions(t *testing.T) {
	p := NewPipeline("ribbon_glow", PipelineTypeRender,
		WithDepth(true, false),
		WithBlendMode(BlendModeAdditive),
		WithCullMode(wgpu.CullModeBack),
		WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
	)

	assert.True(t, p.DepthTestEnabled())
	assert.False(t, p.DepthWriteEnabled())
	assert.Equal(t, BlendModeAdditive, p.BlendMode())
	assert.Equal(t, wgpu.CullModeBack, p.CullMode())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleStrip, p.Topology())
}

func TestParseBlendMode(t *testing.T) {
	tests := []struct {
		name string
		want BlendMode
	}{
		{"", BlendModeAlpha},
		{"alpha", BlendModeAlpha},
		{"additive", BlendModeAdditive},
		{"opaque", BlendModeOpaque},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBlendMode(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseBlendMode("screen")
	assert.ErrorContains(t, err, `"screen"`)
}

func TestBlendModeState(t *testing.T) {
	assert.Nil(t, BlendModeOpaque.State())

	alpha := BlendModeAlpha.State()
	require.NotNil(t, alpha)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, alpha.Color.DstFactor)

	additive := BlendModeAdditive.State()
	require.NotNil(t, additive)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, additive.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOne, additive.Color.DstFactor)

	assert.Equal(t, "additive", BlendModeAdditive.String())
	assert.Equal(t, "BlendMode(7)", BlendMode(7).String())
}
