package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// The following fields are GPU allocated resources and must be released when no longer needed. They are populated by the Renderer during initialization, not by user-creation.

	// bindGroup is the GPU bind group created for this provider, or nil if not initialized with the Renderer.
	bindGroup *wgpu.BindGroup
	// bindGroupLayout is the GPU bind group layout created for this provider, or nil if not initialized with the Renderer.
	bindGroupLayout *wgpu.BindGroupLayout
	// ownsLayout reports whether the layout was created for this provider rather than shared from a pipeline.
	ownsLayout bool
	// buffers holds the GPU buffers bound by this provider, keyed by binding index.
	buffers map[int]*wgpu.Buffer
	// borrowed marks bindings whose buffers are owned elsewhere and must survive Release.
	borrowed map[int]bool

	// indexBuffer is the GPU index buffer used by indexed draws, or nil for compute providers.
	indexBuffer *wgpu.Buffer
	// indexBorrowed reports whether the index buffer is owned elsewhere.
	indexBorrowed bool
	// indexCount is the number of indices for direct draw calls.
	indexCount int
}

// BindGroupProvider defines the interface for components that require GPU bind group resources.
// Trail kernel invocations and ribbon draws hold a BindGroupProvider describing their
// group 0 buffers. The Renderer uses the provider to create the bind group.
//
// Usage pattern:
//  1. Create a provider with a label, optionally borrowing buffers that already exist
//  2. Call Renderer.InitBindGroup(provider, descriptor, ...) to create missing buffers and the bind group
//  3. Update borrowed buffers with Renderer.WriteBuffer
//  4. Pass the provider to DispatchCompute or DrawCallIndirect
type BindGroupProvider interface {
	// Release releases any GPU resources held by this provider. Borrowed buffers are
	// detached but not released.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the bind group layout used to create the bind group.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer bound at a binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// Buffers returns every buffer bound by this provider, keyed by binding index.
	//
	// Returns:
	//   - map[int]*wgpu.Buffer: buffers keyed by binding index
	Buffers() map[int]*wgpu.Buffer

	// Borrowed reports whether the buffer at a binding index is owned elsewhere.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - bool: true if Release will leave the buffer alive
	Borrowed(binding int) bool

	// IndexBuffer returns the index buffer used by indexed draws.
	//
	// Returns:
	//   - *wgpu.Buffer: the index buffer or nil
	IndexBuffer() *wgpu.Buffer

	// IndexCount returns the number of indices used by direct indexed draws.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	SetBindGroup(bg *wgpu.BindGroup)

	// SetBindGroupLayout sets a layout created for, and released with, this provider.
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer binds a buffer owned by this provider.
	SetBuffer(binding int, buf *wgpu.Buffer)

	// BorrowBuffer binds a buffer owned by someone else. Release will not free it.
	BorrowBuffer(binding int, buf *wgpu.Buffer)

	// SetIndexBuffer sets an index buffer owned by this provider.
	SetIndexBuffer(buf *wgpu.Buffer)

	// BorrowIndexBuffer sets an index buffer owned by someone else.
	BorrowIndexBuffer(buf *wgpu.Buffer)

	SetIndexCount(count int)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the specified options applied.
//
// Parameters:
//   - label: a debug label used to name the GPU objects created for this provider
//   - options: functional options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new provider with no GPU bind group yet
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:    label,
		buffers:  make(map[int]*wgpu.Buffer),
		borrowed: make(map[int]bool),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Buffers() map[int]*wgpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) Borrowed(binding int) bool {
	return p.borrowed[binding]
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
	p.ownsLayout = true
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
	delete(p.borrowed, binding)
}

func (p *bindGroupProvider) BorrowBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
	p.borrowed[binding] = true
}

func (p *bindGroupProvider) SetIndexBuffer(buf *wgpu.Buffer) {
	p.indexBuffer = buf
	p.indexBorrowed = false
}

func (p *bindGroupProvider) BorrowIndexBuffer(buf *wgpu.Buffer) {
	p.indexBuffer = buf
	p.indexBorrowed = true
}

func (p *bindGroupProvider) SetIndexCount(count int) {
	p.indexCount = count
}

func (p *bindGroupProvider) Release() {
	for i, buf := range p.buffers {
		if buf != nil && !p.borrowed[i] {
			buf.Release()
		}
		delete(p.buffers, i)
		delete(p.borrowed, i)
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil && p.ownsLayout {
		p.bindGroupLayout.Release()
	}
	p.bindGroupLayout = nil
	p.ownsLayout = false

	if p.indexBuffer != nil {
		if !p.indexBorrowed {
			p.indexBuffer.Release()
		}
		p.indexBuffer = nil
	}
}
