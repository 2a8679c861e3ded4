package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order (OpenGL/WebGPU convention).
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	res := toMat4(a).Mul4(toMat4(b))
	copy(out, res[:])
}

// Perspective creates a perspective projection matrix mapping depth to the WebGPU clip range [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1.0 / math32.Tan(fovY/2.0)
	m := mgl32.Mat4{}
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1.0
	m[14] = (near * far) / (near - far)
	copy(out, m[:])
}

// Orthographic creates an orthographic projection matrix centred on the view axis,
// mapping depth to the WebGPU clip range [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - height: vertical extent of the view volume in world units
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance
//   - far: far clipping plane distance (must be > near)
func Orthographic(out []float32, height, aspect, near, far float32) {
	halfH := height / 2
	halfW := halfH * aspect
	m := mgl32.Ident4()
	m[0] = 1 / halfW
	m[5] = 1 / halfH
	m[10] = 1 / (near - far)
	m[14] = near / (near - far)
	copy(out, m[:])
}

// LookAt creates a view matrix that positions and orients the camera.
// The resulting matrix transforms world coordinates to view/camera space.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eyeX, eyeY, eyeZ: camera position in world space
//   - centerX, centerY, centerZ: target point the camera looks at
//   - upX, upY, upZ: up vector defining camera orientation (typically 0,1,0)
func LookAt(out []float32, eyeX, eyeY, eyeZ, centerX, centerY, centerZ, upX, upY, upZ float32) {
	eye := mgl32.Vec3{eyeX, eyeY, eyeZ}
	center := mgl32.Vec3{centerX, centerY, centerZ}
	if eye.ApproxEqual(center) {
		center = eye.Sub(mgl32.Vec3{0, 0, 1})
	}
	m := mgl32.LookAtV(eye, center, mgl32.Vec3{upX, upY, upZ})
	copy(out, m[:])
}

func toMat4(s []float32) mgl32.Mat4 {
	var m mgl32.Mat4
	copy(m[:], s)
	return m
}
