package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-trail/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ProjectionMode selects how the camera projects view space into clip space.
type ProjectionMode int

const (
	// ProjectionPerspective uses a vertical field of view.
	ProjectionPerspective ProjectionMode = iota
	// ProjectionOrthographic uses a fixed view-volume height.
	ProjectionOrthographic
)

// worldUp is the up vector every view matrix is built with.
var worldUp = mgl32.Vec3{0, 1, 0}

type cameraImpl struct {
	mu *sync.Mutex

	mode        ProjectionMode
	fov         float32
	orthoHeight float32
	aspect      float32
	near        float32
	far         float32

	viewProjection [16]float32
	position       mgl32.Vec3
	forward        mgl32.Vec3

	controller CameraController
}

// Camera is the view trails are culled, LOD-classified and drawn against. Its matrices follow
// the attached CameraController and are rebuilt by Update once per frame.
type Camera interface {
	// ViewProjectionMatrix returns the combined view-projection matrix, column-major.
	//
	// Returns:
	//   - [16]float32: the view-projection matrix
	ViewProjectionMatrix() [16]float32

	// Position returns the eye position the matrices were last built from.
	Position() mgl32.Vec3

	// Forward returns the unit view direction the matrices were last built from.
	Forward() mgl32.Vec3

	// Mode returns the active projection mode.
	Mode() ProjectionMode

	// Controller returns the attached controller, or nil.
	Controller() CameraController

	// Update rebuilds the matrices from the controller. Does nothing without a controller.
	Update()

	// SetAspect sets the aspect ratio (width / height) and rebuilds the matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetMode switches the projection mode and rebuilds the matrices.
	//
	// Parameters:
	//   - mode: the projection mode
	SetMode(mode ProjectionMode)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a perspective camera with a 45 degree field of view looking down -Z.
// Matrices are built from the controller once one is attached with WithController.
//
// Parameters:
//   - options: camera options
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:             &sync.Mutex{},
		mode:           ProjectionPerspective,
		fov:            math.Pi / 4,
		orthoHeight:    10,
		aspect:         1,
		near:           0.1,
		far:            100,
		viewProjection: mgl32.Ident4(),
		forward:        mgl32.Vec3{0, 0, -1},
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjection
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Forward() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward
}

func (c *cameraImpl) Mode() ProjectionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetMode(mode ProjectionMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.updateMatrices()
}

// updateMatrices rebuilds the view-projection matrix from the controller. Caller holds mu.
func (c *cameraImpl) updateMatrices() {
	if c.controller == nil {
		return
	}
	eye := c.controller.Position()
	target := c.controller.Target()

	var view, proj [16]float32
	common.LookAt(view[:],
		eye[0], eye[1], eye[2],
		target[0], target[1], target[2],
		worldUp[0], worldUp[1], worldUp[2],
	)
	if c.mode == ProjectionOrthographic {
		common.Orthographic(proj[:], c.orthoHeight, c.aspect, c.near, c.far)
	} else {
		common.Perspective(proj[:], c.fov, c.aspect, c.near, c.far)
	}
	common.Mul4(c.viewProjection[:], proj[:], view[:])

	c.position = eye
	if fwd := target.Sub(eye); fwd.Len() > 0 {
		c.forward = fwd.Normalize()
	}
}
