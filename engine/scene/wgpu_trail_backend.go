package scene

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-trail/engine/camera"
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer"
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hashicorp/go-multierror"
)

// kernelPipelinePrefix namespaces trail compute pipelines in the renderer's pipeline cache.
const kernelPipelinePrefix = "trail_kernel_"

// wgpuTrailBuffer is a trail.Buffer backed by a WebGPU buffer.
type wgpuTrailBuffer struct {
	label    string
	size     uint64
	usage    trail.BufferUsage
	buf      *wgpu.Buffer
	released bool
}

var _ trail.Buffer = &wgpuTrailBuffer{}

func (b *wgpuTrailBuffer) Label() string            { return b.label }
func (b *wgpuTrailBuffer) Size() uint64             { return b.size }
func (b *wgpuTrailBuffer) Usage() trail.BufferUsage { return b.usage }

// cachedBindGroup is a bind group created for one kernel or draw and the buffers it references.
type cachedBindGroup struct {
	provider bind_group_provider.BindGroupProvider
	buffers  []*wgpuTrailBuffer
}

// WGPUTrailBackend runs the trail pipeline on the Renderer's device. Compute work is recorded
// into the Renderer's compute frame and draws into its render pass.
type WGPUTrailBackend interface {
	trail.Backend

	// SetCamera uploads the camera uniform every ribbon draw is shaded with.
	//
	// Parameters:
	//   - cam: the camera to snapshot
	//
	// Returns:
	//   - error: an error if the upload failed
	SetCamera(cam camera.Camera) error

	// RegisterMaterial points a material at the ribbon render pipeline for mode, creating it on
	// first use. Draws of the material use the most recently registered mode.
	//
	// Parameters:
	//   - material: the material key LODs refer to
	//   - mode: how the material's fragments blend with the target
	//
	// Returns:
	//   - error: an error if pipeline creation failed
	RegisterMaterial(material string, mode pipeline.BlendMode) error

	// LiveBuffers returns the number of buffers created and not yet released.
	//
	// Returns:
	//   - int: live buffer count
	LiveBuffers() int

	// Release frees the cached bind groups and the camera uniform. Buffers handed out by
	// CreateBuffer stay owned by their creators.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error
}

type wgpuTrailBackend struct {
	mu       *sync.Mutex
	renderer renderer.Renderer

	kernels    map[trail.Kernel]trail.KernelConfig
	// materials maps a material key to the pipeline key its draws use
	materials  map[string]string
	camera     *wgpu.Buffer
	bindGroups map[string]*cachedBindGroup
	live       int
}

var _ WGPUTrailBackend = &wgpuTrailBackend{}

// NewWGPUTrailBackend compiles every trail kernel on r. Ribbon materials are compiled as trail
// sets register them.
//
// Parameters:
//   - r: the renderer owning the device
//
// Returns:
//   - WGPUTrailBackend: the backend
//   - error: an error if a pipeline or the camera uniform could not be created
func NewWGPUTrailBackend(r renderer.Renderer) (WGPUTrailBackend, error) {
	b := &wgpuTrailBackend{
		mu:         &sync.Mutex{},
		renderer:   r,
		kernels:    trail.KernelConfigs(),
		materials:  make(map[string]string),
		bindGroups: make(map[string]*cachedBindGroup),
	}

	for kernel, cfg := range b.kernels {
		key := kernelPipelineKey(kernel)
		p := pipeline.NewPipeline(key, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(shader.NewShaderFromSource(key, shader.ShaderTypeCompute, cfg.Source)),
		)
		if err := r.RegisterPipelines(p); err != nil {
			return nil, fmt.Errorf("wgpu trail backend: kernel %s: %w", kernel, err)
		}
	}

	var cu camera.GPUCameraUniform
	buf, err := r.CreateBuffer("trail_camera", uint64(cu.Size()), wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("wgpu trail backend: camera uniform: %w", err)
	}
	b.camera = buf
	return b, nil
}

func (b *wgpuTrailBackend) Type() trail.BackendType {
	return trail.BackendTypeWGPU
}

func (b *wgpuTrailBackend) RegisterMaterial(material string, mode pipeline.BlendMode) error {
	if material == "" {
		return errors.New("wgpu trail backend: material key is empty")
	}
	p := materialPipeline(material, mode)
	if err := b.renderer.RegisterPipelines(p); err != nil {
		return fmt.Errorf("wgpu trail backend: material %q: %w", material, err)
	}
	b.useMaterial(material, p.PipelineKey())
	return nil
}

func (b *wgpuTrailBackend) useMaterial(material, pipelineKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.materials[material]; ok && prev != pipelineKey {
		log.Printf("[Scene] Material %q switched from %s to %s", material, prev, pipelineKey)
	}
	b.materials[material] = pipelineKey
}

func (b *wgpuTrailBackend) materialKey(material string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.materials[material]
	return key, ok
}

// materialPipelineKey names the render pipeline of a material in one blend mode.
func materialPipelineKey(material string, mode pipeline.BlendMode) string {
	return material + "_" + mode.String()
}

// materialPipeline describes the ribbon render pipeline of a material. Blended ribbons test
// depth without writing it; opaque ribbons write depth.
func materialPipeline(material string, mode pipeline.BlendMode) pipeline.Pipeline {
	key := materialPipelineKey(material, mode)
	return pipeline.NewPipeline(key, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(shader.NewShaderFromSource(key+"_vs", shader.ShaderTypeVertex, trail.RibbonShaderSource)),
		pipeline.WithFragmentShader(shader.NewShaderFromSource(key+"_fs", shader.ShaderTypeFragment, trail.RibbonShaderSource)),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithCullMode(wgpu.CullModeNone),
		pipeline.WithDepth(true, mode == pipeline.BlendModeOpaque),
		pipeline.WithBlendMode(mode),
	)
}

func (b *wgpuTrailBackend) SetCamera(cam camera.Camera) error {
	cu := camera.NewGPUCameraUniform(cam)
	return b.renderer.WriteBuffer(b.camera, 0, cu.Marshal())
}

func (b *wgpuTrailBackend) CreateBuffer(label string, size uint64, usage trail.BufferUsage) (trail.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("wgpu trail backend: buffer %q has zero size", label)
	}
	buf, err := b.renderer.CreateBuffer(label, size, toWGPUBufferUsage(usage))
	if err != nil {
		return nil, fmt.Errorf("wgpu trail backend: create %q: %w", label, err)
	}

	b.mu.Lock()
	b.live++
	b.mu.Unlock()
	return &wgpuTrailBuffer{label: label, size: size, usage: usage, buf: buf}, nil
}

func (b *wgpuTrailBackend) WriteBuffer(buf trail.Buffer, offset uint64, data []byte) error {
	wb, err := resolveBuffer(buf, offset, uint64(len(data)))
	if err != nil {
		return fmt.Errorf("wgpu trail backend: write: %w", err)
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("wgpu trail backend: write to %q must be 4-byte aligned", wb.label)
	}
	return b.renderer.WriteBuffer(wb.buf, offset, data)
}

func (b *wgpuTrailBackend) CopyBuffer(src trail.Buffer, srcOffset uint64, dst trail.Buffer, dstOffset uint64, size uint64) error {
	sb, err := resolveBuffer(src, srcOffset, size)
	if err != nil {
		return fmt.Errorf("wgpu trail backend: copy source: %w", err)
	}
	db, err := resolveBuffer(dst, dstOffset, size)
	if err != nil {
		return fmt.Errorf("wgpu trail backend: copy destination: %w", err)
	}
	if srcOffset%4 != 0 || dstOffset%4 != 0 || size%4 != 0 {
		return fmt.Errorf("wgpu trail backend: copy %q -> %q must be 4-byte aligned", sb.label, db.label)
	}

	return b.withComputeFrame(func() error {
		return b.renderer.CopyBufferToBuffer(sb.buf, srcOffset, db.buf, dstOffset, size)
	})
}

func (b *wgpuTrailBackend) Dispatch(kernel trail.Kernel, bindings []trail.Binding, x, y, z uint32) error {
	if x == 0 || y == 0 || z == 0 {
		return nil
	}
	provider, err := b.kernelBindGroup(kernel, bindings)
	if err != nil {
		return err
	}
	return b.withComputeFrame(func() error {
		return b.renderer.DispatchCompute(kernelPipelineKey(kernel), provider, [3]uint32{x, y, z})
	})
}

func (b *wgpuTrailBackend) DispatchIndirect(kernel trail.Kernel, bindings []trail.Binding, args trail.Buffer, offset uint64) error {
	ab, err := resolveBuffer(args, offset, 12)
	if err != nil {
		return fmt.Errorf("wgpu trail backend: dispatch %s args: %w", kernel, err)
	}
	if !ab.usage.Has(trail.BufferUsageIndirect) {
		return fmt.Errorf("wgpu trail backend: dispatch %s: args buffer %q lacks indirect usage", kernel, ab.label)
	}
	provider, err := b.kernelBindGroup(kernel, bindings)
	if err != nil {
		return err
	}
	return b.withComputeFrame(func() error {
		return b.renderer.DispatchComputeIndirect(kernelPipelineKey(kernel), provider, ab.buf, offset)
	})
}

func (b *wgpuTrailBackend) DrawIndirect(call trail.DrawCall) error {
	pipelineKey, ok := b.materialKey(call.Material)
	if !ok {
		return fmt.Errorf("wgpu trail backend: unknown material %q", call.Material)
	}

	indices, err := resolveBuffer(call.Indices, 0, 0)
	if err != nil {
		return fmt.Errorf("wgpu trail backend: draw %q indices: %w", call.Material, err)
	}
	args, err := resolveBuffer(call.Args, 0, 20)
	if err != nil {
		return fmt.Errorf("wgpu trail backend: draw %q args: %w", call.Material, err)
	}
	vertices, err := resolveBuffer(call.Vertices, 0, 0)
	if err != nil {
		return fmt.Errorf("wgpu trail backend: draw %q vertices: %w", call.Material, err)
	}
	params, err := resolveBuffer(call.Params, 0, 0)
	if err != nil {
		return fmt.Errorf("wgpu trail backend: draw %q params: %w", call.Material, err)
	}

	p := b.renderer.Pipeline(pipelineKey)
	vs := p.Shader(shader.ShaderTypeVertex)
	group, err := b.bindGroup(
		"draw:"+pipelineKey,
		p.BindGroupLayout(0),
		vs.BindGroupLayoutDescriptor(0),
		map[uint32]*wgpuTrailBuffer{
			trail.RibbonBindVertices: vertices,
			trail.RibbonBindDraw:     params,
		},
		map[int]*wgpu.Buffer{int(trail.RibbonBindCamera): b.camera},
	)
	if err != nil {
		return err
	}

	ribbonIndices := bind_group_provider.NewBindGroupProvider(call.Material+"_indices",
		bind_group_provider.WithBorrowedIndexBuffer(indices.buf, int(call.IndexCount)),
	)
	defer ribbonIndices.Release()
	return b.renderer.DrawCallIndirect(pipelineKey, ribbonIndices, args.buf, []bind_group_provider.BindGroupProvider{group})
}

func (b *wgpuTrailBackend) ReleaseBuffer(buf trail.Buffer) error {
	wb, ok := buf.(*wgpuTrailBuffer)
	if !ok || wb == nil {
		return fmt.Errorf("wgpu trail backend: foreign buffer %T", buf)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if wb.released {
		return fmt.Errorf("wgpu trail backend: buffer %q: %w", wb.label, trail.ErrReleased)
	}

	for key, cached := range b.bindGroups {
		for _, ref := range cached.buffers {
			if ref == wb {
				cached.provider.Release()
				delete(b.bindGroups, key)
				break
			}
		}
	}
	wb.buf.Release()
	wb.buf = nil
	wb.released = true
	b.live--
	return nil
}

func (b *wgpuTrailBackend) LiveBuffers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

func (b *wgpuTrailBackend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, cached := range b.bindGroups {
		cached.provider.Release()
		delete(b.bindGroups, key)
	}
	if b.camera != nil {
		b.camera.Release()
		b.camera = nil
	}

	var errs *multierror.Error
	if b.live > 0 {
		errs = multierror.Append(errs, fmt.Errorf("wgpu trail backend: %d buffers still live", b.live))
	}
	return errs.ErrorOrNil()
}

// withComputeFrame runs fn inside the Renderer's compute frame, opening a one-shot frame when
// none is active so work recorded between frames is submitted immediately.
func (b *wgpuTrailBackend) withComputeFrame(fn func() error) error {
	if b.renderer.ComputeFrameActive() {
		return fn()
	}
	if err := b.renderer.BeginComputeFrame(); err != nil {
		return fmt.Errorf("wgpu trail backend: begin compute frame: %w", err)
	}
	defer b.renderer.EndComputeFrame()
	return fn()
}

func (b *wgpuTrailBackend) kernelBindGroup(kernel trail.Kernel, bindings []trail.Binding) (bind_group_provider.BindGroupProvider, error) {
	if _, ok := b.kernels[kernel]; !ok {
		return nil, fmt.Errorf("wgpu trail backend: unknown kernel %q", kernel)
	}
	p := b.renderer.Pipeline(kernelPipelineKey(kernel))
	if p == nil {
		return nil, fmt.Errorf("wgpu trail backend: kernel %s is not registered", kernel)
	}

	buffers := make(map[uint32]*wgpuTrailBuffer, len(bindings))
	for _, binding := range bindings {
		wb, err := resolveBuffer(binding.Buffer, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("wgpu trail backend: %s binding %d: %w", kernel, binding.Slot, err)
		}
		buffers[binding.Slot] = wb
	}
	return b.bindGroup(string(kernel), p.BindGroupLayout(0), p.Shader(shader.ShaderTypeCompute).BindGroupLayoutDescriptor(0), buffers, nil)
}

// bindGroup returns the cached group 0 bind group for a set of buffers, creating it against the
// pipeline's own layout on first use. Every binding the descriptor declares must be supplied.
func (b *wgpuTrailBackend) bindGroup(
	name string,
	layout *wgpu.BindGroupLayout,
	descriptor wgpu.BindGroupLayoutDescriptor,
	buffers map[uint32]*wgpuTrailBuffer,
	extra map[int]*wgpu.Buffer,
) (bind_group_provider.BindGroupProvider, error) {
	if layout == nil {
		return nil, fmt.Errorf("wgpu trail backend: %s has no group 0 layout", name)
	}
	borrowed := make(map[int]*wgpu.Buffer, len(descriptor.Entries))
	refs := make([]*wgpuTrailBuffer, 0, len(buffers))
	for _, entry := range descriptor.Entries {
		if buf, ok := extra[int(entry.Binding)]; ok {
			borrowed[int(entry.Binding)] = buf
			continue
		}
		wb, ok := buffers[entry.Binding]
		if !ok {
			return nil, fmt.Errorf("wgpu trail backend: %s: binding %d is missing", name, entry.Binding)
		}
		borrowed[int(entry.Binding)] = wb.buf
		refs = append(refs, wb)
	}

	key := bindGroupCacheKey(name, refs)
	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.bindGroups[key]; ok {
		return cached.provider, nil
	}

	provider := bind_group_provider.NewBindGroupProvider(name,
		bind_group_provider.WithBindGroupLayout(layout),
		bind_group_provider.WithBorrowedBuffers(borrowed),
	)
	if err := b.renderer.InitBindGroup(provider, descriptor, nil, nil); err != nil {
		provider.Release()
		return nil, fmt.Errorf("wgpu trail backend: %s bind group: %w", name, err)
	}
	b.bindGroups[key] = &cachedBindGroup{provider: provider, buffers: refs}
	return provider, nil
}

// bindGroupCacheKey identifies a bind group by its owner and the identity of its buffers.
func bindGroupCacheKey(name string, refs []*wgpuTrailBuffer) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, ref := range refs {
		fmt.Fprintf(&sb, "|%p", ref)
	}
	return sb.String()
}

func kernelPipelineKey(kernel trail.Kernel) string {
	return kernelPipelinePrefix + string(kernel)
}

// resolveBuffer checks that buf belongs to this backend, is live and covers [offset, offset+size).
func resolveBuffer(buf trail.Buffer, offset, size uint64) (*wgpuTrailBuffer, error) {
	wb, ok := buf.(*wgpuTrailBuffer)
	if !ok || wb == nil {
		return nil, fmt.Errorf("foreign buffer %T", buf)
	}
	if wb.released {
		return nil, fmt.Errorf("buffer %q: %w", wb.label, trail.ErrReleased)
	}
	if offset+size > wb.size {
		return nil, fmt.Errorf("buffer %q: range [%d, %d) exceeds size %d", wb.label, offset, offset+size, wb.size)
	}
	return wb, nil
}

// toWGPUBufferUsage maps trail usage flags to WebGPU usage flags.
func toWGPUBufferUsage(usage trail.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if usage.Has(trail.BufferUsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if usage.Has(trail.BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if usage.Has(trail.BufferUsageIndirect) {
		out |= wgpu.BufferUsageIndirect
	}
	if usage.Has(trail.BufferUsageIndex) {
		out |= wgpu.BufferUsageIndex
	}
	if usage.Has(trail.BufferUsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	if usage.Has(trail.BufferUsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}
