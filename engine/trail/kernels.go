package trail

import (
	_ "embed"
)

// Kernel names a compute entry point of the trail pipeline.
type Kernel string

const (
	KernelAppendNode             Kernel = "AppendNode"
	KernelUpdateTrailIdxBuffer   Kernel = "UpdateTrailIdxBuffer"
	KernelCalcArgsBufferForCS    Kernel = "CalcArgsBufferForCS"
	KernelUpdateTrailLodBuffer   Kernel = "UpdateTrailLodBuffer"
	KernelUpdateTrailIndexBuffer Kernel = "UpdateTrailIndexBuffer"
	KernelUpdateVertex           Kernel = "UpdateVertex"
	KernelArgsBufferMultiply     Kernel = "ArgsBufferMultiply"
)

// Binding slots for each kernel. All bindings live in group 0.
const (
	AppendBindParams      uint32 = 0
	AppendBindTrails      uint32 = 1
	AppendBindNodes       uint32 = 2
	AppendBindInputNodes  uint32 = 3
	AppendBindInputCounts uint32 = 4

	CullBindParams  uint32 = 0
	CullBindTrails  uint32 = 1
	CullBindNodes   uint32 = 2
	CullBindCull    uint32 = 3
	CullBindVisible uint32 = 4

	CalcArgsBindList uint32 = 0
	CalcArgsBindArgs uint32 = 1

	LodBindParams    uint32 = 0
	LodBindTrails    uint32 = 1
	LodBindNodes     uint32 = 2
	LodBindLod       uint32 = 3
	LodBindDistances uint32 = 4
	LodBindSource    uint32 = 5
	LodBindTrailLod  uint32 = 6

	BucketBindParams   uint32 = 0
	BucketBindSource   uint32 = 1
	BucketBindTrailLod uint32 = 2
	BucketBindList     uint32 = 3

	VertexBindParams   uint32 = 0
	VertexBindTrails   uint32 = 1
	VertexBindNodes    uint32 = 2
	VertexBindRibbon   uint32 = 3
	VertexBindList     uint32 = 4
	VertexBindVertices uint32 = 5

	MultiplyBindArgs uint32 = 0
)

// Binding slots of the ribbon render program.
const (
	RibbonBindCamera   uint32 = 0
	RibbonBindVertices uint32 = 1
	RibbonBindDraw     uint32 = 2
)

//go:embed assets/kernels/append_node.wgsl
var appendNodeSource string

//go:embed assets/kernels/update_trail_idx_buffer.wgsl
var updateTrailIdxBufferSource string

//go:embed assets/kernels/calc_args_buffer_for_cs.wgsl
var calcArgsBufferForCSSource string

//go:embed assets/kernels/update_trail_lod_buffer.wgsl
var updateTrailLodBufferSource string

//go:embed assets/kernels/update_trail_index_buffer.wgsl
var updateTrailIndexBufferSource string

//go:embed assets/kernels/update_vertex.wgsl
var updateVertexSource string

//go:embed assets/kernels/args_buffer_multiply.wgsl
var argsBufferMultiplySource string

// RibbonShaderSource is the annotated WGSL of the ribbon render program (vs_main / fs_main).
//
//go:embed assets/trail_ribbon.wgsl
var RibbonShaderSource string

// KernelConfig is the resolved description of one kernel: its annotated WGSL source,
// workgroup size and the binding slots it expects.
type KernelConfig struct {
	Kernel        Kernel
	Source        string
	WorkgroupSize uint32
	Bindings      []uint32
}

// KernelConfigs resolves the configuration of every trail kernel. Each backend calls
// this once and keeps its own copy.
//
// Returns:
//   - map[Kernel]KernelConfig: kernel configs keyed by kernel name
func KernelConfigs() map[Kernel]KernelConfig {
	return map[Kernel]KernelConfig{
		KernelAppendNode: {
			Kernel:        KernelAppendNode,
			Source:        appendNodeSource,
			WorkgroupSize: DispatchWorkgroupSize,
			Bindings:      []uint32{AppendBindParams, AppendBindTrails, AppendBindNodes, AppendBindInputNodes, AppendBindInputCounts},
		},
		KernelUpdateTrailIdxBuffer: {
			Kernel:        KernelUpdateTrailIdxBuffer,
			Source:        updateTrailIdxBufferSource,
			WorkgroupSize: DispatchWorkgroupSize,
			Bindings:      []uint32{CullBindParams, CullBindTrails, CullBindNodes, CullBindCull, CullBindVisible},
		},
		KernelCalcArgsBufferForCS: {
			Kernel:        KernelCalcArgsBufferForCS,
			Source:        calcArgsBufferForCSSource,
			WorkgroupSize: 1,
			Bindings:      []uint32{CalcArgsBindList, CalcArgsBindArgs},
		},
		KernelUpdateTrailLodBuffer: {
			Kernel:        KernelUpdateTrailLodBuffer,
			Source:        updateTrailLodBufferSource,
			WorkgroupSize: DispatchWorkgroupSize,
			Bindings:      []uint32{LodBindParams, LodBindTrails, LodBindNodes, LodBindLod, LodBindDistances, LodBindSource, LodBindTrailLod},
		},
		KernelUpdateTrailIndexBuffer: {
			Kernel:        KernelUpdateTrailIndexBuffer,
			Source:        updateTrailIndexBufferSource,
			WorkgroupSize: DispatchWorkgroupSize,
			Bindings:      []uint32{BucketBindParams, BucketBindSource, BucketBindTrailLod, BucketBindList},
		},
		KernelUpdateVertex: {
			Kernel:        KernelUpdateVertex,
			Source:        updateVertexSource,
			WorkgroupSize: DispatchWorkgroupSize,
			Bindings:      []uint32{VertexBindParams, VertexBindTrails, VertexBindNodes, VertexBindRibbon, VertexBindList, VertexBindVertices},
		},
		KernelArgsBufferMultiply: {
			Kernel:        KernelArgsBufferMultiply,
			Source:        argsBufferMultiplySource,
			WorkgroupSize: 1,
			Bindings:      []uint32{MultiplyBindArgs},
		},
	}
}

// workgroupsFor returns the number of workgroups needed to cover n invocations.
func workgroupsFor(n uint32) uint32 {
	return (n + DispatchWorkgroupSize - 1) / DispatchWorkgroupSize
}
