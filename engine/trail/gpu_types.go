package trail

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// Trail flag bits packed into GPUTrailParams.Flags.
const (
	// FlagIgnoreOrigin skips input samples located exactly at the world origin.
	FlagIgnoreOrigin uint32 = 1 << 0
)

// DispatchWorkgroupSize is the x workgroup size shared by every per-trail kernel.
// CalcArgsBufferForCS divides the compacted count by this value.
const DispatchWorkgroupSize = 64

// GPUNodeSource is the canonical WGSL definition of the Node struct.
// Matches GPUNode layout exactly (32 bytes, std430 aligned).
//
//go:embed assets/node.wgsl
var GPUNodeSource string

// GPUNode is one historical sample of a trail stored in the ring buffer.
// Size: 32 bytes (std430 aligned).
type GPUNode struct {
	Position [3]float32 // offset 0: world-space position
	Time     float32    // offset 12: sample timestamp in seconds
	Color    [4]float32 // offset 16: RGBA color
}

// Size returns the size of the GPUNode struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUNode) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUNode struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUNode) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
	}
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.Time))
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Color[i]))
	}
	return buf
}

// Unmarshal decodes a GPUNode from a 32-byte buffer.
//
// Parameters:
//   - buf: the encoded node bytes
//
// Returns:
//   - error: an error if buf is shorter than the struct size
func (g *GPUNode) Unmarshal(buf []byte) error {
	if len(buf) < g.Size() {
		return fmt.Errorf("node: need %d bytes, got %d", g.Size(), len(buf))
	}
	for i := range 3 {
		g.Position[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	g.Time = math.Float32frombits(binary.LittleEndian.Uint32(buf[12:]))
	for i := range 4 {
		g.Color[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[16+i*4:]))
	}
	return nil
}

// GPUTrailStateSource is the canonical WGSL definition of the TrailState struct.
//
//go:embed assets/trail_state.wgsl
var GPUTrailStateSource string

// GPUTrailState is the per-trail metadata record.
// Size: 8 bytes.
type GPUTrailState struct {
	StartTime       float32 // offset 0: time of the first appended sample
	TotalInputCount uint32  // offset 4: samples ever appended, never decreases
}

// Size returns the size of the GPUTrailState struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (8)
func (g *GPUTrailState) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUTrailState struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 8-byte buffer ready for GPU upload
func (g *GPUTrailState) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(g.StartTime))
	binary.LittleEndian.PutUint32(buf[4:], g.TotalInputCount)
	return buf
}

// Unmarshal decodes a GPUTrailState from an 8-byte buffer.
//
// Parameters:
//   - buf: the encoded trail bytes
//
// Returns:
//   - error: an error if buf is shorter than the struct size
func (g *GPUTrailState) Unmarshal(buf []byte) error {
	if len(buf) < g.Size() {
		return fmt.Errorf("trail state: need %d bytes, got %d", g.Size(), len(buf))
	}
	g.StartTime = math.Float32frombits(binary.LittleEndian.Uint32(buf[0:]))
	g.TotalInputCount = binary.LittleEndian.Uint32(buf[4:])
	return nil
}

// GPUVertexSource is the canonical WGSL definition of the ribbon Vertex struct.
// Matches GPUVertex layout exactly (48 bytes, std430 aligned).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is one ribbon vertex written by UpdateVertex and pulled by the ribbon vertex shader.
// Size: 48 bytes (vec3 + pad, vec2 + pad, vec4).
type GPUVertex struct {
	Position [3]float32 // offset 0
	_pad0    float32    // offset 12: vec2 alignment pad
	UV       [2]float32 // offset 16: x = age rate, y = side (0 left, 1 right)
	_pad1    [2]float32 // offset 24: vec4 alignment pad
	Color    [4]float32 // offset 32
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
	}
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(g.UV[0]))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(g.UV[1]))
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(g.Color[i]))
	}
	return buf
}

// Unmarshal decodes a GPUVertex from a 48-byte buffer.
//
// Parameters:
//   - buf: the encoded vertex bytes
//
// Returns:
//   - error: an error if buf is shorter than the struct size
func (g *GPUVertex) Unmarshal(buf []byte) error {
	if len(buf) < g.Size() {
		return fmt.Errorf("vertex: need %d bytes, got %d", g.Size(), len(buf))
	}
	for i := range 3 {
		g.Position[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	g.UV[0] = math.Float32frombits(binary.LittleEndian.Uint32(buf[16:]))
	g.UV[1] = math.Float32frombits(binary.LittleEndian.Uint32(buf[20:]))
	for i := range 4 {
		g.Color[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[32+i*4:]))
	}
	return nil
}

// GPUIndirectArgsSource is the canonical WGSL definition of the IndirectArgs struct.
// Matches WebGPU's DrawIndexedIndirect argument layout (20 bytes).
//
//go:embed assets/indirect_args.wgsl
var GPUIndirectArgsSource string

// GPUIndirectArgs is the DrawIndexedIndirect argument block.
// InstanceCount sits at byte offset 4 and is the target of compacted-count copies.
// Size: 20 bytes.
type GPUIndirectArgs struct {
	IndexCount    uint32 // offset 0: indices per instance
	InstanceCount uint32 // offset 4: instances (trails) to draw
	FirstIndex    uint32 // offset 8
	BaseVertex    int32  // offset 12
	FirstInstance uint32 // offset 16
}

// IndirectInstanceCountOffset is the byte offset of InstanceCount inside GPUIndirectArgs.
const IndirectInstanceCountOffset = 4

// Size returns the size of the GPUIndirectArgs struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (20)
func (g *GPUIndirectArgs) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUIndirectArgs struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 20-byte buffer ready for GPU upload
func (g *GPUIndirectArgs) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.IndexCount)
	binary.LittleEndian.PutUint32(buf[4:], g.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:], g.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:], uint32(g.BaseVertex))
	binary.LittleEndian.PutUint32(buf[16:], g.FirstInstance)
	return buf
}

// Unmarshal decodes a GPUIndirectArgs from a 20-byte buffer.
//
// Parameters:
//   - buf: the encoded argument bytes
//
// Returns:
//   - error: an error if buf is shorter than the struct size
func (g *GPUIndirectArgs) Unmarshal(buf []byte) error {
	if len(buf) < g.Size() {
		return fmt.Errorf("indirect args: need %d bytes, got %d", g.Size(), len(buf))
	}
	g.IndexCount = binary.LittleEndian.Uint32(buf[0:])
	g.InstanceCount = binary.LittleEndian.Uint32(buf[4:])
	g.FirstIndex = binary.LittleEndian.Uint32(buf[8:])
	g.BaseVertex = int32(binary.LittleEndian.Uint32(buf[12:]))
	g.FirstInstance = binary.LittleEndian.Uint32(buf[16:])
	return nil
}

// GPUDispatchArgsSource is the canonical WGSL definition of the DispatchArgs struct.
//
//go:embed assets/dispatch_args.wgsl
var GPUDispatchArgsSource string

// GPUDispatchArgs is the DispatchWorkgroupsIndirect argument block.
// Size: 12 bytes.
type GPUDispatchArgs struct {
	X uint32
	Y uint32
	Z uint32
}

// Size returns the size of the GPUDispatchArgs struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (12)
func (g *GPUDispatchArgs) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDispatchArgs struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 12-byte buffer ready for GPU upload
func (g *GPUDispatchArgs) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.X)
	binary.LittleEndian.PutUint32(buf[4:], g.Y)
	binary.LittleEndian.PutUint32(buf[8:], g.Z)
	return buf
}

// Unmarshal decodes a GPUDispatchArgs from a 12-byte buffer.
//
// Parameters:
//   - buf: the encoded argument bytes
//
// Returns:
//   - error: an error if buf is shorter than the struct size
func (g *GPUDispatchArgs) Unmarshal(buf []byte) error {
	if len(buf) < g.Size() {
		return fmt.Errorf("dispatch args: need %d bytes, got %d", g.Size(), len(buf))
	}
	g.X = binary.LittleEndian.Uint32(buf[0:])
	g.Y = binary.LittleEndian.Uint32(buf[4:])
	g.Z = binary.LittleEndian.Uint32(buf[8:])
	return nil
}

// GPUTrailParamsSource is the canonical WGSL definition of the TrailParams uniform.
//
//go:embed assets/trail_params.wgsl
var GPUTrailParamsSource string

// GPUTrailParams is the per-frame uniform shared by every kernel that reads trail history.
// Size: 32 bytes.
type GPUTrailParams struct {
	TrailCount      uint32  // offset 0
	NodesPerTrail   uint32  // offset 4
	InputCountMax   uint32  // offset 8: input slots per trail in the current batch layout
	Flags           uint32  // offset 12: Flag* bits
	Time            float32 // offset 16: current frame time
	PrevTime        float32 // offset 20: time of the previous append
	Life            float32 // offset 24: seconds a node stays visible
	MinNodeDistance float32 // offset 28: samples closer than this to the head are skipped
}

// Size returns the size of the GPUTrailParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUTrailParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUTrailParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUTrailParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.TrailCount)
	binary.LittleEndian.PutUint32(buf[4:], g.NodesPerTrail)
	binary.LittleEndian.PutUint32(buf[8:], g.InputCountMax)
	binary.LittleEndian.PutUint32(buf[12:], g.Flags)
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(g.Time))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(g.PrevTime))
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(g.Life))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.MinNodeDistance))
	return buf
}

// GPUFrustumPlane is a single side plane in vec4 form (normal.xyz, distance).
// Size: 16 bytes.
type GPUFrustumPlane struct {
	Normal   [3]float32 // offset 0: inward-facing unit normal
	Distance float32    // offset 12: plane constant
}

// GPUCullParamsSource is the canonical WGSL definition of the CullParams uniform.
//
//go:embed assets/cull_params.wgsl
var GPUCullParamsSource string

// GPUCullParams is the uniform read by the visibility culling kernel.
// Only the four side planes are carried; near and far are never tested.
// Size: 80 bytes.
type GPUCullParams struct {
	Planes     [4]GPUFrustumPlane // offset 0: left, right, bottom, top
	TrailWidth float32            // offset 64: max(startWidth, endWidth)
	_pad       [3]float32         // offset 68
}

// Size returns the size of the GPUCullParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUCullParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCullParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPUCullParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for p := range 4 {
		off := p * 16
		for i := range 3 {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(g.Planes[p].Normal[i]))
		}
		binary.LittleEndian.PutUint32(buf[off+12:], math.Float32bits(g.Planes[p].Distance))
	}
	binary.LittleEndian.PutUint32(buf[64:], math.Float32bits(g.TrailWidth))
	return buf
}

// GPULodParamsSource is the canonical WGSL definition of the LodParams uniform.
//
//go:embed assets/lod_params.wgsl
var GPULodParamsSource string

// GPULodParams is the uniform read by the LOD classification kernel.
// Size: 16 bytes.
type GPULodParams struct {
	CameraPos [3]float32 // offset 0
	LodCount  uint32     // offset 12: number of entries in the distance buffer
}

// Size returns the size of the GPULodParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPULodParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULodParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPULodParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.CameraPos[i]))
	}
	binary.LittleEndian.PutUint32(buf[12:], g.LodCount)
	return buf
}

// GPUBucketParamsSource is the canonical WGSL definition of the BucketParams uniform.
//
//go:embed assets/bucket_params.wgsl
var GPUBucketParamsSource string

// GPUBucketParams selects which LOD bucket a partition dispatch collects.
// Size: 16 bytes.
type GPUBucketParams struct {
	Lod  uint32    // offset 0
	_pad [3]uint32 // offset 4
}

// Size returns the size of the GPUBucketParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUBucketParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUBucketParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPUBucketParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.Lod)
	return buf
}

// GPURibbonParamsSource is the canonical WGSL definition of the RibbonParams uniform.
//
//go:embed assets/ribbon_params.wgsl
var GPURibbonParamsSource string

// GPURibbonParams is the per-LOD uniform read by UpdateVertex.
// Size: 80 bytes.
type GPURibbonParams struct {
	CameraPos            [3]float32 // offset 0
	StartWidth           float32    // offset 12: width at the newest node
	ToCameraDir          [3]float32 // offset 16: zero unless the camera is orthographic
	EndWidth             float32    // offset 28: width at the oldest retained node
	StartColor           [4]float32 // offset 32
	EndColor             [4]float32 // offset 48
	LodNodeStep          uint32     // offset 64
	NodesPerTrailWithLod uint32     // offset 68
	_pad                 [2]uint32  // offset 72
}

// Size returns the size of the GPURibbonParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPURibbonParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPURibbonParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPURibbonParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.CameraPos[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.ToCameraDir[i]))
	}
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.StartWidth))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.EndWidth))
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(g.StartColor[i]))
		binary.LittleEndian.PutUint32(buf[48+i*4:], math.Float32bits(g.EndColor[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:], g.LodNodeStep)
	binary.LittleEndian.PutUint32(buf[68:], g.NodesPerTrailWithLod)
	return buf
}

// GPUDrawParamsSource is the canonical WGSL definition of the DrawParams uniform.
//
//go:embed assets/draw_params.wgsl
var GPUDrawParamsSource string

// GPUDrawParams is the per-LOD uniform read by the ribbon vertex shader.
// Size: 16 bytes.
type GPUDrawParams struct {
	VertexNumPerTrail uint32    // offset 0
	InstanceDivisor   uint32    // offset 4: 2 for single-pass stereo, where each trail is drawn once per eye
	_pad              [2]uint32 // offset 8
}

// Size returns the size of the GPUDrawParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUDrawParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDrawParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPUDrawParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.VertexNumPerTrail)
	binary.LittleEndian.PutUint32(buf[4:], g.InstanceDivisor)
	return buf
}

// GPUTrailIndexListSource holds both the atomic (read_write) and plain (read) views of a
// compacted trail index list. The count word sits at byte offset 0 in both.
//
//go:embed assets/trail_index_list.wgsl
var GPUTrailIndexListSource string

// IndexListHeaderSize is the byte size of the count header preceding the index array.
const IndexListHeaderSize = 4
