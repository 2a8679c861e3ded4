package trail

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

type sizedStruct interface {
	Size() int
	Marshal() []byte
}

func TestGPUStructSizes(t *testing.T) {
	tests := []struct {
		name string
		v    sizedStruct
		size int
	}{
		{"Node", &GPUNode{}, 32},
		{"TrailState", &GPUTrailState{}, 8},
		{"Vertex", &GPUVertex{}, 48},
		{"IndirectArgs", &GPUIndirectArgs{}, 20},
		{"DispatchArgs", &GPUDispatchArgs{}, 12},
		{"TrailParams", &GPUTrailParams{}, 32},
		{"CullParams", &GPUCullParams{}, 80},
		{"LodParams", &GPULodParams{}, 16},
		{"BucketParams", &GPUBucketParams{}, 16},
		{"RibbonParams", &GPURibbonParams{}, 80},
		{"DrawParams", &GPUDrawParams{}, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.v.Size())
			assert.Len(t, tt.v.Marshal(), tt.size)
		})
	}
}

func TestGPUStructOffsets(t *testing.T) {
	var node GPUNode
	assert.Equal(t, uintptr(12), unsafe.Offsetof(node.Time))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(node.Color))

	var vertex GPUVertex
	assert.Equal(t, uintptr(16), unsafe.Offsetof(vertex.UV))
	assert.Equal(t, uintptr(32), unsafe.Offsetof(vertex.Color))

	var args GPUIndirectArgs
	assert.Equal(t, uintptr(IndirectInstanceCountOffset), unsafe.Offsetof(args.InstanceCount))

	var ribbon GPURibbonParams
	assert.Equal(t, uintptr(16), unsafe.Offsetof(ribbon.ToCameraDir))
	assert.Equal(t, uintptr(64), unsafe.Offsetof(ribbon.LodNodeStep))

	var cull GPUCullParams
	assert.Equal(t, uintptr(64), unsafe.Offsetof(cull.TrailWidth))
}

func TestGPUVertexMarshalSkipsPadding(t *testing.T) {
	in := GPUVertex{
		Position: [3]float32{1, 2, 3},
		UV:       [2]float32{0.5, 1},
		Color:    [4]float32{0.1, 0.2, 0.3, 0.4},
	}
	var out GPUVertex
	assert.NoError(t, out.Unmarshal(in.Marshal()))
	assert.Equal(t, in, out)
}

func TestGPUIndirectArgsInstanceCountAtOffset4(t *testing.T) {
	args := GPUIndirectArgs{IndexCount: 6, InstanceCount: 0x01020304}
	buf := args.Marshal()
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf[IndirectInstanceCountOffset:IndirectInstanceCountOffset+4])
}

func TestGPUStructSourcesDeclareTypes(t *testing.T) {
	sources := map[string]string{
		"struct Node":               GPUNodeSource,
		"struct TrailState":         GPUTrailStateSource,
		"struct Vertex":             GPUVertexSource,
		"struct IndirectArgs":       GPUIndirectArgsSource,
		"struct DispatchArgs":       GPUDispatchArgsSource,
		"struct TrailParams":        GPUTrailParamsSource,
		"struct CullParams":         GPUCullParamsSource,
		"struct LodParams":          GPULodParamsSource,
		"struct BucketParams":       GPUBucketParamsSource,
		"struct RibbonParams":       GPURibbonParamsSource,
		"struct DrawParams":         GPUDrawParamsSource,
		"struct TrailIndexList":     GPUTrailIndexListSource,
		"struct TrailIndexListView": GPUTrailIndexListSource,
	}
	for decl, src := range sources {
		assert.Contains(t, src, decl)
	}
}
