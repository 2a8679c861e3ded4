package trail

// BackendType selects the compute/draw backend a trail pipeline runs on.
type BackendType int

const (
	// BackendTypeSoftware executes kernel contracts against host memory. Used for headless runs and tests.
	BackendTypeSoftware BackendType = iota

	// BackendTypeWGPU executes kernels as WebGPU compute pipelines.
	BackendTypeWGPU
)

// String returns the backend name.
func (b BackendType) String() string {
	switch b {
	case BackendTypeSoftware:
		return "software"
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return "unknown"
	}
}

// BufferUsage is a bitmask describing how a backend buffer will be used.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageIndirect
	BufferUsageIndex
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// Has reports whether every bit of flag is set.
func (u BufferUsage) Has(flag BufferUsage) bool {
	return u&flag == flag
}

// Buffer is an opaque handle to backend-owned memory.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	//
	// Returns:
	//   - string: the buffer label
	Label() string

	// Size returns the buffer size in bytes.
	//
	// Returns:
	//   - uint64: the allocated size in bytes
	Size() uint64

	// Usage returns the usage flags the buffer was created with.
	//
	// Returns:
	//   - BufferUsage: the usage bitmask
	Usage() BufferUsage
}

// Binding attaches a buffer to a kernel binding slot in group 0.
type Binding struct {
	Slot   uint32
	Buffer Buffer
}

// DrawCall describes one indexed indirect ribbon draw for a single LOD material pass.
type DrawCall struct {
	// Material is the render pipeline key the draw uses.
	Material string

	// Indices holds the per-trail quad-strip index pattern.
	Indices Buffer

	// IndexCount is the number of indices per instance, mirrored from the args buffer.
	IndexCount uint32

	// Args is the 20-byte DrawIndexedIndirect argument buffer.
	Args Buffer

	// Vertices is the storage buffer the render program pulls vertices from.
	Vertices Buffer

	// Params is the DrawParams uniform buffer.
	Params Buffer
}

// Backend is the device abstraction the trail pipeline records its work against.
// Every call is issued from a single control thread in strict order; host writes
// made before a dispatch are visible to it.
type Backend interface {
	// Type returns the backend kind.
	//
	// Returns:
	//   - BackendType: the backend kind
	Type() BackendType

	// CreateBuffer allocates a zeroed buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - size: size in bytes
	//   - usage: usage flags
	//
	// Returns:
	//   - Buffer: the new buffer handle
	//   - error: an error if allocation failed
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)

	// WriteBuffer uploads host data into a buffer at the given byte offset.
	//
	// Parameters:
	//   - buf: destination buffer
	//   - offset: byte offset into buf
	//   - data: bytes to write
	//
	// Returns:
	//   - error: an error if the write is out of range or the buffer is released
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CopyBuffer records a device-side buffer-to-buffer copy.
	//
	// Parameters:
	//   - src: source buffer
	//   - srcOffset: byte offset into src
	//   - dst: destination buffer
	//   - dstOffset: byte offset into dst
	//   - size: number of bytes to copy
	//
	// Returns:
	//   - error: an error if either range is invalid
	CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error

	// Dispatch runs a kernel with a fixed workgroup count.
	//
	// Parameters:
	//   - kernel: the kernel to run
	//   - bindings: buffers bound to the kernel's group 0 slots
	//   - x, y, z: workgroup counts
	//
	// Returns:
	//   - error: an error if the kernel is unknown or a binding is missing
	Dispatch(kernel Kernel, bindings []Binding, x, y, z uint32) error

	// DispatchIndirect runs a kernel with workgroup counts read from a DispatchArgs buffer.
	//
	// Parameters:
	//   - kernel: the kernel to run
	//   - bindings: buffers bound to the kernel's group 0 slots
	//   - args: buffer holding [x, y, z] as u32
	//   - offset: byte offset of the args within the buffer
	//
	// Returns:
	//   - error: an error if the kernel is unknown or a binding is missing
	DispatchIndirect(kernel Kernel, bindings []Binding, args Buffer, offset uint64) error

	// DrawIndirect records one indexed indirect ribbon draw.
	//
	// Parameters:
	//   - call: the draw description
	//
	// Returns:
	//   - error: an error if the draw could not be recorded
	DrawIndirect(call DrawCall) error

	// ReleaseBuffer frees a buffer. Releasing a buffer twice returns ErrReleased.
	//
	// Parameters:
	//   - buf: the buffer to free
	//
	// Returns:
	//   - error: an error if the buffer was already released
	ReleaseBuffer(buf Buffer) error
}
