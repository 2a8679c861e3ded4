package trail

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// boundResources maps binding slots to the buffers bound for one dispatch.
type boundResources map[uint32]*softwareBuffer

// softwareKernel decodes a dispatch's uniforms once and returns the per-invocation body.
type softwareKernel func(res boundResources) func(inv uint32)

// Word strides of the std430 structs as laid out in host memory.
const (
	nodeWords       = 8
	trailStateWords = 2
	vertexWords     = 12
)

func softwareKernels() map[Kernel]softwareKernel {
	return map[Kernel]softwareKernel{
		KernelAppendNode:             appendNodeKernel,
		KernelUpdateTrailIdxBuffer:   cullKernel,
		KernelCalcArgsBufferForCS:    calcArgsKernel,
		KernelUpdateTrailLodBuffer:   lodKernel,
		KernelUpdateTrailIndexBuffer: bucketKernel,
		KernelUpdateVertex:           vertexKernel,
		KernelArgsBufferMultiply:     multiplyKernel,
	}
}

func readTrailParams(b *softwareBuffer) GPUTrailParams {
	return GPUTrailParams{
		TrailCount:      b.u32(0),
		NodesPerTrail:   b.u32(1),
		InputCountMax:   b.u32(2),
		Flags:           b.u32(3),
		Time:            b.f32(4),
		PrevTime:        b.f32(5),
		Life:            b.f32(6),
		MinNodeDistance: b.f32(7),
	}
}

func readNode(b *softwareBuffer, idx uint32) GPUNode {
	w := idx * nodeWords
	return GPUNode{
		Position: [3]float32{b.f32(w), b.f32(w + 1), b.f32(w + 2)},
		Time:     b.f32(w + 3),
		Color:    [4]float32{b.f32(w + 4), b.f32(w + 5), b.f32(w + 6), b.f32(w + 7)},
	}
}

func writeNode(b *softwareBuffer, idx uint32, n GPUNode) {
	w := idx * nodeWords
	for i := range uint32(3) {
		b.setF32(w+i, n.Position[i])
	}
	b.setF32(w+3, n.Time)
	for i := range uint32(4) {
		b.setF32(w+4+i, n.Color[i])
	}
}

func readTrailState(b *softwareBuffer, idx uint32) GPUTrailState {
	w := idx * trailStateWords
	return GPUTrailState{StartTime: b.f32(w), TotalInputCount: b.u32(w + 1)}
}

func writeTrailState(b *softwareBuffer, idx uint32, t GPUTrailState) {
	w := idx * trailStateWords
	b.setF32(w, t.StartTime)
	b.setU32(w+1, t.TotalInputCount)
}

func writeVertex(b *softwareBuffer, idx uint32, v GPUVertex) {
	w := idx * vertexWords
	for i := range uint32(3) {
		b.setF32(w+i, v.Position[i])
	}
	b.setF32(w+4, v.UV[0])
	b.setF32(w+5, v.UV[1])
	for i := range uint32(4) {
		b.setF32(w+8+i, v.Color[i])
	}
}

// headPosition returns the newest node of a trail. total must be non-zero.
func headPosition(nodes *softwareBuffer, p GPUTrailParams, trail, total uint32) mgl32.Vec3 {
	return readNode(nodes, trail*p.NodesPerTrail+(total-1)%p.NodesPerTrail).Position
}

func appendNodeKernel(res boundResources) func(uint32) {
	p := readTrailParams(res[AppendBindParams])
	trails, nodes := res[AppendBindTrails], res[AppendBindNodes]
	input, counts := res[AppendBindInputNodes], res[AppendBindInputCounts]

	return func(trail uint32) {
		if trail >= p.TrailCount || p.NodesPerTrail == 0 {
			return
		}
		count := min(counts.u32(trail), p.InputCountMax)
		if count == 0 {
			return
		}

		state := readTrailState(trails, trail)
		base := trail * p.NodesPerTrail
		appended := uint32(0)
		for i := uint32(0); i < count; i++ {
			sample := readNode(input, i*p.TrailCount+trail)
			if p.Flags&FlagIgnoreOrigin != 0 && sample.Position == [3]float32{} {
				continue
			}
			total := state.TotalInputCount + appended
			if total > 0 && p.MinNodeDistance > 0 {
				head := headPosition(nodes, p, trail, total)
				if head.Sub(sample.Position).Len() < p.MinNodeDistance {
					continue
				}
			}

			sample.Time = p.PrevTime + (p.Time-p.PrevTime)*float32(i+1)/float32(count)
			writeNode(nodes, base+total%p.NodesPerTrail, sample)
			if total == 0 {
				state.StartTime = sample.Time
			}
			appended++
		}
		state.TotalInputCount += appended
		writeTrailState(trails, trail, state)
	}
}

func cullKernel(res boundResources) func(uint32) {
	p := readTrailParams(res[CullBindParams])
	trails, nodes, cull, visible := res[CullBindTrails], res[CullBindNodes], res[CullBindCull], res[CullBindVisible]

	var planes [4]mgl32.Vec4
	for i := range uint32(4) {
		planes[i] = mgl32.Vec4{cull.f32(i * 4), cull.f32(i*4 + 1), cull.f32(i*4 + 2), cull.f32(i*4 + 3)}
	}
	margin := -cull.f32(16) * 0.5

	return func(trail uint32) {
		if trail >= p.TrailCount || p.NodesPerTrail == 0 {
			return
		}
		total := readTrailState(trails, trail).TotalInputCount
		if total == 0 {
			return
		}
		head := headPosition(nodes, p, trail, total)
		for _, plane := range planes {
			if plane.Vec3().Dot(head)+plane.W() < margin {
				return
			}
		}
		slot := visible.atomicAdd(0, 1)
		visible.setU32(1+slot, trail)
	}
}

func calcArgsKernel(res boundResources) func(uint32) {
	list, args := res[CalcArgsBindList], res[CalcArgsBindArgs]
	return func(inv uint32) {
		if inv != 0 {
			return
		}
		args.setU32(0, workgroupsFor(list.u32(0)))
		args.setU32(1, 1)
		args.setU32(2, 1)
	}
}

func lodKernel(res boundResources) func(uint32) {
	p := readTrailParams(res[LodBindParams])
	trails, nodes, lod := res[LodBindTrails], res[LodBindNodes], res[LodBindLod]
	distances, source, trailLod := res[LodBindDistances], res[LodBindSource], res[LodBindTrailLod]

	cameraPos := mgl32.Vec3{lod.f32(0), lod.f32(1), lod.f32(2)}
	lodCount := lod.u32(3)
	count := source.u32(0)

	return func(i uint32) {
		if i >= count || lodCount == 0 {
			return
		}
		trail := source.u32(1 + i)
		total := readTrailState(trails, trail).TotalInputCount

		bucket := lodCount - 1
		if total > 0 && p.NodesPerTrail > 0 {
			dist := headPosition(nodes, p, trail, total).Sub(cameraPos).Len()
			for b := uint32(0); b < lodCount; b++ {
				if dist < distances.f32(b) {
					bucket = b
					break
				}
			}
		}
		trailLod.setU32(trail, bucket)
	}
}

func bucketKernel(res boundResources) func(uint32) {
	lod := res[BucketBindParams].u32(0)
	source, trailLod, list := res[BucketBindSource], res[BucketBindTrailLod], res[BucketBindList]
	count := source.u32(0)

	return func(i uint32) {
		if i >= count {
			return
		}
		trail := source.u32(1 + i)
		if trailLod.u32(trail) != lod {
			return
		}
		slot := list.atomicAdd(0, 1)
		list.setU32(1+slot, trail)
	}
}

// ribbonParams is the decoded form of GPURibbonParams used by the vertex kernel.
type ribbonParams struct {
	cameraPos   mgl32.Vec3
	toCameraDir mgl32.Vec3
	startWidth  float32
	endWidth    float32
	startColor  mgl32.Vec4
	endColor    mgl32.Vec4
	nodeStep    uint32
	perTrail    uint32
}

func readRibbonParams(b *softwareBuffer) ribbonParams {
	return ribbonParams{
		cameraPos:   mgl32.Vec3{b.f32(0), b.f32(1), b.f32(2)},
		startWidth:  b.f32(3),
		toCameraDir: mgl32.Vec3{b.f32(4), b.f32(5), b.f32(6)},
		endWidth:    b.f32(7),
		startColor:  mgl32.Vec4{b.f32(8), b.f32(9), b.f32(10), b.f32(11)},
		endColor:    mgl32.Vec4{b.f32(12), b.f32(13), b.f32(14), b.f32(15)},
		nodeStep:    b.u32(16),
		perTrail:    b.u32(17),
	}
}

// rightVector returns the unit ribbon side direction for a node, or zero when the
// tangent is parallel to the view direction.
func (r ribbonParams) rightVector(tangent, pos mgl32.Vec3) mgl32.Vec3 {
	toCamera := r.toCameraDir
	if toCamera.Dot(toCamera) == 0 {
		toCamera = r.cameraPos.Sub(pos)
		if l := toCamera.Len(); l > 0 {
			toCamera = toCamera.Mul(1 / l)
		}
	}
	right := tangent.Cross(toCamera)
	l := right.Len()
	if l < 1e-6 {
		return mgl32.Vec3{}
	}
	return right.Mul(1 / l)
}

func vertexKernel(res boundResources) func(uint32) {
	p := readTrailParams(res[VertexBindParams])
	trails, nodes, list, vertices := res[VertexBindTrails], res[VertexBindNodes], res[VertexBindList], res[VertexBindVertices]
	r := readRibbonParams(res[VertexBindRibbon])
	count := list.u32(0)

	return func(slot uint32) {
		if slot >= count || p.NodesPerTrail == 0 {
			return
		}
		trail := list.u32(1 + slot)
		total := readTrailState(trails, trail).TotalInputCount
		available := min(total, p.NodesPerTrail)
		nodeAt := func(age uint32) GPUNode {
			return readNode(nodes, trail*p.NodesPerTrail+(total-1-age)%p.NodesPerTrail)
		}

		retained := uint32(0)
		for k := uint32(0); k < r.perTrail; k++ {
			age := k * r.nodeStep
			if age >= available {
				break
			}
			if p.Time-nodeAt(age).Time > p.Life {
				break
			}
			retained++
		}

		base := slot * r.perTrail * 2
		if retained == 0 {
			for k := uint32(0); k < r.perTrail; k++ {
				writeVertex(vertices, base+k*2, GPUVertex{})
				writeVertex(vertices, base+k*2+1, GPUVertex{UV: [2]float32{0, 1}})
			}
			return
		}

		last := retained - 1
		for k := uint32(0); k < r.perTrail; k++ {
			kk := min(k, last)
			node := nodeAt(kk * r.nodeStep)
			pos := mgl32.Vec3(node.Position)

			rate := float32(0)
			if last > 0 {
				rate = float32(kk) / float32(last)
			}
			halfWidth := float32(0)
			if k <= last {
				halfWidth = lerpf(r.startWidth, r.endWidth, rate) * 0.5
			}

			var tangent mgl32.Vec3
			if last > 0 {
				if kk == 0 {
					tangent = pos.Sub(nodeAt(r.nodeStep).Position)
				} else {
					tangent = mgl32.Vec3(nodeAt((kk - 1) * r.nodeStep).Position).Sub(pos)
				}
			}
			if l := tangent.Len(); l > 0 {
				tangent = tangent.Mul(1 / l)
			}

			right := r.rightVector(tangent, pos).Mul(halfWidth)
			tint := LerpVec4(r.startColor, r.endColor, rate)
			var color [4]float32
			for i := range 4 {
				color[i] = node.Color[i] * tint[i]
			}

			writeVertex(vertices, base+k*2, GPUVertex{Position: pos.Add(right), UV: [2]float32{rate, 0}, Color: color})
			writeVertex(vertices, base+k*2+1, GPUVertex{Position: pos.Sub(right), UV: [2]float32{rate, 1}, Color: color})
		}
	}
}

func multiplyKernel(res boundResources) func(uint32) {
	args := res[MultiplyBindArgs]
	return func(inv uint32) {
		if inv != 0 {
			return
		}
		args.setU32(1, args.u32(1)*2)
	}
}

// lerpf linearly interpolates between two scalars.
func lerpf(a, b, t float32) float32 {
	return a + (b-a)*t
}

// isFinite reports whether v is neither NaN nor infinite.
func isFinite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
