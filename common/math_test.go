package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func viewProjection(eye mgl32.Vec3) []float32 {
	view := make([]float32, 16)
	proj := make([]float32, 16)
	vp := make([]float32, 16)
	LookAt(view, eye[0], eye[1], eye[2], 0, 0, 0, 0, 1, 0)
	Perspective(proj, math.Pi/2, 1, 1, 100)
	Mul4(vp, proj, view)
	return vp
}

func TestExtractFrustumFromMatrix(t *testing.T) {
	f := ExtractFrustumFromMatrix(viewProjection(mgl32.Vec3{0, 0, 5}))

	for i, p := range f.Planes {
		assert.Positive(t, p.SignedDistance([3]float32{0, 0, 0}), "plane %d", i)
		assert.InDelta(t, 1, mgl32.Vec3(p.Normal).Len(), 1e-5, "plane %d", i)
	}
	assert.Negative(t, f.Planes[FrustumRight].SignedDistance([3]float32{100, 0, 0}))
	assert.Negative(t, f.Planes[FrustumLeft].SignedDistance([3]float32{-100, 0, 0}))
	assert.Negative(t, f.Planes[FrustumNear].SignedDistance([3]float32{0, 0, 10}))
	assert.Negative(t, f.Planes[FrustumFar].SignedDistance([3]float32{0, 0, -200}))
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := make([]float32, 16)
	Perspective(proj, math.Pi/2, 1, 1, 100)
	m := toMat4(proj)

	near := m.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := m.Mul4x1(mgl32.Vec4{0, 0, -100, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)
}

func TestOrthographicDepthRange(t *testing.T) {
	proj := make([]float32, 16)
	Orthographic(proj, 10, 2, 1, 11)
	m := toMat4(proj)

	assert.InDelta(t, 0, m.Mul4x1(mgl32.Vec4{0, 0, -1, 1}).Z(), 1e-5)
	assert.InDelta(t, 1, m.Mul4x1(mgl32.Vec4{0, 0, -11, 1}).Z(), 1e-5)
	assert.InDelta(t, 1, m.Mul4x1(mgl32.Vec4{10, 5, -1, 1}).X(), 1e-5)
}

func TestLookAtDegenerateTarget(t *testing.T) {
	view := make([]float32, 16)
	LookAt(view, 1, 2, 3, 1, 2, 3, 0, 1, 0)
	p := toMat4(view).Mul4x1(mgl32.Vec4{1, 2, 2, 1})
	assert.InDelta(t, -1, p.Z(), 1e-5)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 0, 3, 4))
	assert.Equal(t, float32(60), Coalesce(float32(0), 60))
	assert.Equal(t, "", Coalesce("", ""))
}
