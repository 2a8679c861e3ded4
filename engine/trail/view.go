package trail

import (
	"github.com/Carmen-Shannon/oxy-trail/common"
	"github.com/Carmen-Shannon/oxy-trail/engine/camera"
	"github.com/go-gl/mathgl/mgl32"
)

// View is the camera state one frame of the trail pipeline is evaluated against.
type View struct {
	// ViewProj is the combined view-projection matrix (column-major).
	ViewProj mgl32.Mat4

	// Position is the world-space eye position.
	Position mgl32.Vec3

	// Forward is the unit view direction.
	Forward mgl32.Vec3

	// Orthographic selects a fixed to-camera direction for every node.
	Orthographic bool
}

// ViewFromCamera snapshots a camera.
//
// Parameters:
//   - cam: the camera to snapshot
//
// Returns:
//   - View: the frame view
func ViewFromCamera(cam camera.Camera) View {
	return View{
		ViewProj:     cam.ViewProjectionMatrix(),
		Position:     cam.Position(),
		Forward:      cam.Forward(),
		Orthographic: cam.Mode() == camera.ProjectionOrthographic,
	}
}

// NewView builds a view from an eye, a target and a projection matrix.
//
// Parameters:
//   - eye: world-space eye position
//   - target: world-space look-at point
//   - up: world up vector
//   - projection: the projection matrix
//   - orthographic: whether projection is orthographic
//
// Returns:
//   - View: the frame view
func NewView(eye, target, up mgl32.Vec3, projection mgl32.Mat4, orthographic bool) View {
	var viewMat [16]float32
	common.LookAt(viewMat[:], eye[0], eye[1], eye[2], target[0], target[1], target[2], up[0], up[1], up[2])
	forward := target.Sub(eye)
	if l := forward.Len(); l > 0 {
		forward = forward.Mul(1 / l)
	}
	return View{
		ViewProj:     projection.Mul4(viewMat),
		Position:     eye,
		Forward:      forward,
		Orthographic: orthographic,
	}
}

// ToCameraDir returns the constant node-to-camera direction for orthographic views,
// and zero for perspective views where it is derived per node.
func (v View) ToCameraDir() mgl32.Vec3 {
	if !v.Orthographic {
		return mgl32.Vec3{}
	}
	return v.Forward.Mul(-1)
}

// SidePlanes returns the left, right, bottom and top planes of the view frustum.
func (v View) SidePlanes() [4]GPUFrustumPlane {
	f := common.ExtractFrustumFromMatrix(v.ViewProj[:])
	var planes [4]GPUFrustumPlane
	for i, idx := range []int{common.FrustumLeft, common.FrustumRight, common.FrustumBottom, common.FrustumTop} {
		planes[i] = GPUFrustumPlane{Normal: f.Planes[idx].Normal, Distance: f.Planes[idx].Distance}
	}
	return planes
}
