package common

// Key codes delivered in window.InputEvent.Key. Printable keys use their ASCII value and
// the rest use GLFW's numbering, so both compare directly against glfw.Key values.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeySpace = 32
	KeyA     = 65
	KeyC     = 67
	KeyD     = 68
	KeyR     = 82
	KeyS     = 83
	KeyW     = 87
	KeyEsc   = 256
)
