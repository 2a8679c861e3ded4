package camera

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraController positions the camera on a sphere around a target point. The camera reads
// Position and Target from it in Update; input handlers drive it through Orbit, Zoom and Pan.
type CameraController interface {
	// Position returns the eye position derived from the target and spherical coordinates.
	//
	// Returns:
	//   - mgl32.Vec3: world-space eye position
	Position() mgl32.Vec3

	// Target returns the point the camera orbits and looks at.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target
	Target() mgl32.Vec3

	// SetTarget moves the orbit center, keeping radius and angles.
	//
	// Parameters:
	//   - target: world-space target
	SetTarget(target mgl32.Vec3)

	// Orbit rotates around the target by pointer deltas scaled by the mouse sensitivity.
	// Elevation is clamped to the configured bounds.
	//
	// Parameters:
	//   - dx: horizontal delta, positive turns right
	//   - dy: vertical delta, positive tilts down
	Orbit(dx, dy float32)

	// Zoom moves toward the target by delta times the zoom speed, clamped to the radius bounds.
	//
	// Parameters:
	//   - delta: zoom amount (positive = closer)
	Zoom(delta float32)

	// Pan translates target and eye together along the camera's right and up axes.
	//
	// Parameters:
	//   - right: distance along the right axis, scaled by the pan speed
	//   - up: distance along the up axis, scaled by the pan speed
	Pan(right, up float32)

	// Radius returns the distance from the target.
	Radius() float32

	// SetRadius sets the distance from the target, clamped to the radius bounds.
	SetRadius(radius float32)

	// Azimuth returns the horizontal angle around the Y axis in radians.
	Azimuth() float32

	// Elevation returns the angle above the horizontal plane in radians.
	Elevation() float32
}

type orbitController struct {
	mu *sync.Mutex

	target    mgl32.Vec3
	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
}

var _ CameraController = &orbitController{}

// NewOrbitController creates an orbit controller looking at the origin from 250 units away.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewOrbitController(options ...CameraControllerOption) CameraController {
	cc := &orbitController{
		mu:        &sync.Mutex{},
		radius:    250,
		elevation: math32.Pi / 6,

		minRadius:    1,
		maxRadius:    2000,
		minElevation: -math32.Pi/2 + 0.05,
		maxElevation: math32.Pi/2 - 0.05,

		mouseSensitivity: 0.005,
		zoomSpeed:        1,
		panSpeed:         1,
	}
	for _, option := range options {
		option(cc)
	}
	cc.radius = mgl32.Clamp(cc.radius, cc.minRadius, cc.maxRadius)
	cc.elevation = mgl32.Clamp(cc.elevation, cc.minElevation, cc.maxElevation)
	return cc
}

// offset is the eye position relative to the target. Caller must hold the mutex.
func (cc *orbitController) offset() mgl32.Vec3 {
	cosElev, sinElev := math32.Cos(cc.elevation), math32.Sin(cc.elevation)
	return mgl32.Vec3{
		cc.radius * cosElev * math32.Sin(cc.azimuth),
		cc.radius * sinElev,
		cc.radius * cosElev * math32.Cos(cc.azimuth),
	}
}

func (cc *orbitController) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target.Add(cc.offset())
}

func (cc *orbitController) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *orbitController) SetTarget(target mgl32.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
}

func (cc *orbitController) Orbit(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += dx * cc.mouseSensitivity
	cc.elevation = mgl32.Clamp(cc.elevation-dy*cc.mouseSensitivity, cc.minElevation, cc.maxElevation)
}

func (cc *orbitController) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = mgl32.Clamp(cc.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
}

func (cc *orbitController) Pan(right, up float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	back := cc.offset()
	if back.Len() < 1e-8 {
		return
	}
	back = back.Normalize()
	// right = worldUp x back, up = back x right, matching LookAt's axes
	r := mgl32.Vec3{0, 1, 0}.Cross(back)
	if r.Len() < 1e-8 {
		return
	}
	r = r.Normalize()
	u := back.Cross(r)
	cc.target = cc.target.Add(r.Mul(right * cc.panSpeed)).Add(u.Mul(up * cc.panSpeed))
}

func (cc *orbitController) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *orbitController) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = mgl32.Clamp(radius, cc.minRadius, cc.maxRadius)
}

func (cc *orbitController) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *orbitController) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}
