package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBindGroupLayout sets the bind group layout for this provider. Use the layout owned by the
// pipeline the provider will be bound to.
//
// Parameters:
//   - bgl: the bind group layout to use for this provider
//
// Returns:
//   - BindGroupProviderOption: a function that sets the bind group layout for this provider
func WithBindGroupLayout(bgl *wgpu.BindGroupLayout) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindGroupLayout = bgl
	}
}

// WithBuffer sets an owned buffer for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf *wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithBorrowedBuffers binds buffers owned elsewhere, keyed by binding index. Release leaves them alive.
//
// Parameters:
//   - buffers: a map of binding indices to buffers
//
// Returns:
//   - BindGroupProviderOption: a function that borrows the buffers
func WithBorrowedBuffers(buffers map[int]*wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for binding, buf := range buffers {
			p.buffers[binding] = buf
			p.borrowed[binding] = true
		}
	}
}

// WithBorrowedIndexBuffer sets an index buffer owned elsewhere.
//
// Parameters:
//   - buf: the index buffer
//   - count: the number of indices for direct draws
//
// Returns:
//   - BindGroupProviderOption: a function that sets the index buffer
func WithBorrowedIndexBuffer(buf *wgpu.Buffer, count int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.indexBuffer = buf
		p.indexBorrowed = true
		p.indexCount = count
	}
}
