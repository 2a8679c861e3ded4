package trail

import (
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) SoftwareBackend {
	t.Helper()
	backend := NewSoftwareBackend(WithWorkers(4))
	t.Cleanup(backend.Close)
	return backend
}

func newTestStore(t *testing.T, backend Backend, trailCount int, life, inputRate float32) Store {
	t.Helper()
	s := NewStore(backend, WithFrameRate(inputRate))
	require.NoError(t, s.Initialize(trailCount, life, inputRate))
	t.Cleanup(func() { _ = s.Release() })
	return s
}

// newTestFrame writes a TrailParams uniform for the store and returns a frame context.
func newTestFrame(t *testing.T, backend Backend, s Store, inputCountMax int, time, prevTime float32, view View) *FrameContext {
	t.Helper()
	var tp GPUTrailParams
	params, err := backend.CreateBuffer("test_params", uint64(tp.Size()), BufferUsageUniform|BufferUsageCopyDst)
	require.NoError(t, err)
	tp = GPUTrailParams{
		TrailCount:    uint32(s.TrailCount()),
		NodesPerTrail: uint32(s.NodesPerTrail()),
		InputCountMax: uint32(inputCountMax),
		Time:          time,
		PrevTime:      prevTime,
		Life:          s.Life(),
	}
	require.NoError(t, backend.WriteBuffer(params, 0, tp.Marshal()))
	return &FrameContext{
		Backend: backend,
		Store:   s,
		Params:  params,
		Frame:   Frame{Time: time, View: view},
	}
}

// frontView is a 90 degree perspective camera at the origin looking down +Z.
func frontView() View {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 1000)
	return NewView(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}, proj, false)
}

func readAll(t *testing.T, backend SoftwareBackend, buf Buffer) []byte {
	t.Helper()
	data, err := backend.ReadBuffer(buf, 0, buf.Size())
	require.NoError(t, err)
	return data
}

func readNodes(t *testing.T, backend SoftwareBackend, s Store) []GPUNode {
	t.Helper()
	buf, err := s.Nodes()
	require.NoError(t, err)
	data := readAll(t, backend, buf)
	out := make([]GPUNode, s.NodeCount())
	for i := range out {
		require.NoError(t, out[i].Unmarshal(data[i*32:]))
	}
	return out
}

func readTrailStates(t *testing.T, backend SoftwareBackend, s Store) []GPUTrailState {
	t.Helper()
	buf, err := s.Trails()
	require.NoError(t, err)
	data := readAll(t, backend, buf)
	out := make([]GPUTrailState, s.TrailCount())
	for i := range out {
		require.NoError(t, out[i].Unmarshal(data[i*8:]))
	}
	return out
}

func readList(t *testing.T, backend SoftwareBackend, list *IndexList) []uint32 {
	t.Helper()
	return DecodeIndexList(readAll(t, backend, list.Buffer()))
}

func readVertices(t *testing.T, backend SoftwareBackend, buf Buffer) []GPUVertex {
	t.Helper()
	data := readAll(t, backend, buf)
	out := make([]GPUVertex, len(data)/48)
	for i := range out {
		require.NoError(t, out[i].Unmarshal(data[i*48:]))
	}
	return out
}

func readArgs(t *testing.T, backend SoftwareBackend, buf Buffer) GPUIndirectArgs {
	t.Helper()
	var args GPUIndirectArgs
	require.NoError(t, args.Unmarshal(readAll(t, backend, buf)))
	return args
}

func readDispatchArgs(t *testing.T, backend SoftwareBackend, buf Buffer) [3]uint32 {
	t.Helper()
	data := readAll(t, backend, buf)
	return [3]uint32{
		binary.LittleEndian.Uint32(data[0:]),
		binary.LittleEndian.Uint32(data[4:]),
		binary.LittleEndian.Uint32(data[8:]),
	}
}

// appendHeads appends one sample per trail at the given positions.
func appendHeads(t *testing.T, backend Backend, s Store, ctx *FrameContext, heads []mgl32.Vec3) {
	t.Helper()
	engine, err := NewAppendEngine(backend, s, 1)
	require.NoError(t, err)
	defer func() { _ = engine.Release() }()

	batch := NewBatch(s.TrailCount(), 1)
	for i, h := range heads {
		require.NoError(t, batch.Add(i, h))
	}
	require.NoError(t, engine.Append(batch, ctx.Params))
}

// rewriteParams rewrites the frame's TrailParams after applying mutate.
func rewriteParams(t *testing.T, backend Backend, ctx *FrameContext, inputCountMax int, mutate func(*GPUTrailParams)) {
	t.Helper()
	tp := GPUTrailParams{
		TrailCount:    uint32(ctx.Store.TrailCount()),
		NodesPerTrail: uint32(ctx.Store.NodesPerTrail()),
		InputCountMax: uint32(inputCountMax),
		Time:          ctx.Frame.Time,
		Life:          ctx.Store.Life(),
	}
	mutate(&tp)
	require.NoError(t, backend.WriteBuffer(ctx.Params, 0, tp.Marshal()))
}
