package scene

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-trail/engine/renderer"
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWGPUBufferUsage(t *testing.T) {
	tests := []struct {
		name  string
		usage trail.BufferUsage
		want  wgpu.BufferUsage
	}{
		{"none", 0, 0},
		{"storage", trail.BufferUsageStorage, wgpu.BufferUsageStorage},
		{"uniform upload", trail.BufferUsageUniform | trail.BufferUsageCopyDst, wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
		{"index", trail.BufferUsageIndex | trail.BufferUsageCopyDst, wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst},
		{
			"index list",
			trail.BufferUsageStorage | trail.BufferUsageCopySrc | trail.BufferUsageCopyDst,
			wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		},
		{
			"draw args",
			trail.BufferUsageIndirect | trail.BufferUsageStorage | trail.BufferUsageCopyDst,
			wgpu.BufferUsageIndirect | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toWGPUBufferUsage(tt.usage))
		})
	}
}

type foreignBuffer struct{}

func (foreignBuffer) Label() string            { return "foreign" }
func (foreignBuffer) Size() uint64             { return 4 }
func (foreignBuffer) Usage() trail.BufferUsage { return 0 }

func TestResolveBuffer(t *testing.T) {
	buf := &wgpuTrailBuffer{label: "args", size: 20, usage: trail.BufferUsageIndirect}

	got, err := resolveBuffer(buf, 8, 12)
	require.NoError(t, err)
	assert.Same(t, buf, got)

	_, err = resolveBuffer(buf, 12, 12)
	assert.ErrorContains(t, err, "exceeds size 20")

	_, err = resolveBuffer(foreignBuffer{}, 0, 0)
	assert.ErrorContains(t, err, "foreign buffer")

	_, err = resolveBuffer(nil, 0, 0)
	assert.Error(t, err)

	buf.released = true
	_, err = resolveBuffer(buf, 0, 4)
	assert.ErrorIs(t, err, trail.ErrReleased)
}

func TestBindGroupCacheKey(t *testing.T) {
	a := &wgpuTrailBuffer{label: "a"}
	b := &wgpuTrailBuffer{label: "b"}

	assert.Equal(t, bindGroupCacheKey("k", []*wgpuTrailBuffer{a, b}), bindGroupCacheKey("k", []*wgpuTrailBuffer{a, b}))
	assert.NotEqual(t, bindGroupCacheKey("k", []*wgpuTrailBuffer{a, b}), bindGroupCacheKey("k", []*wgpuTrailBuffer{b, a}))
	assert.NotEqual(t, bindGroupCacheKey("k", []*wgpuTrailBuffer{a}), bindGroupCacheKey("j", []*wgpuTrailBuffer{a}))
}

func TestKernelPipelineKey(t *testing.T) {
	assert.Equal(t, "trail_kernel_AppendNode", kernelPipelineKey(trail.KernelAppendNode))
}

// pipelineRecorder keeps the first pipeline registered under each key, as the renderer does.
type pipelineRecorder struct {
	renderer.Renderer
	registered map[string]pipeline.Pipeline
}

func (r *pipelineRecorder) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		if _, ok := r.registered[p.PipelineKey()]; !ok {
			r.registered[p.PipelineKey()] = p
		}
	}
	return nil
}

func newMaterialBackend() (*wgpuTrailBackend, *pipelineRecorder) {
	rec := &pipelineRecorder{registered: make(map[string]pipeline.Pipeline)}
	return &wgpuTrailBackend{mu: &sync.Mutex{}, renderer: rec, materials: make(map[string]string)}, rec
}

func TestRegisterMaterialsFollowsConfigBlend(t *testing.T) {
	b, rec := newMaterialBackend()
	s := &scene{backend: b}

	cfg := trail.DefaultConfig()
	cfg.Blend = trail.BlendAdditive
	require.NoError(t, s.registerMaterials(cfg))

	key, ok := b.materialKey(trail.DefaultMaterial)
	require.True(t, ok)
	assert.Equal(t, "trail_ribbon_additive", key)
	require.Contains(t, rec.registered, key)
	assert.Equal(t, pipeline.BlendModeAdditive, rec.registered[key].BlendMode())
	assert.True(t, rec.registered[key].DepthTestEnabled())
	assert.False(t, rec.registered[key].DepthWriteEnabled())

	cfg.Blend = trail.BlendOpaque
	require.NoError(t, s.registerMaterials(cfg))
	key, _ = b.materialKey(trail.DefaultMaterial)
	assert.Equal(t, "trail_ribbon_opaque", key)
	assert.Equal(t, pipeline.BlendModeOpaque, rec.registered[key].BlendMode())
	assert.True(t, rec.registered[key].DepthWriteEnabled())
	assert.Len(t, rec.registered, 2)

	cfg.Blend = "glow"
	assert.Error(t, s.registerMaterials(cfg))
}

func TestRegisterMaterialsDefaultsEmptyMaterial(t *testing.T) {
	b, _ := newMaterialBackend()
	s := &scene{backend: b}

	cfg := trail.DefaultConfig()
	cfg.Material = ""
	require.NoError(t, s.registerMaterials(cfg))
	key, ok := b.materialKey(trail.DefaultMaterial)
	require.True(t, ok)
	assert.Equal(t, "trail_ribbon_alpha", key)
}

func TestRegisterMaterialRejectsEmptyKey(t *testing.T) {
	b, rec := newMaterialBackend()
	assert.Error(t, b.RegisterMaterial("", pipeline.BlendModeAlpha))
	assert.Empty(t, rec.registered)
}
