package trail

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-trail/engine/camera"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestViewToCameraDir(t *testing.T) {
	v := frontView()
	assert.Equal(t, mgl32.Vec3{}, v.ToCameraDir())

	v.Orthographic = true
	assert.True(t, v.ToCameraDir().ApproxEqual(mgl32.Vec3{0, 0, -1}))
}

func TestViewFromCamera(t *testing.T) {
	cam := camera.NewCamera()
	cam.Update()
	v := ViewFromCamera(cam)

	assert.Equal(t, mgl32.Mat4(cam.ViewProjectionMatrix()), v.ViewProj)
	assert.Equal(t, cam.Position(), v.Position)
	assert.False(t, v.Orthographic)

	cam.SetMode(camera.ProjectionOrthographic)
	assert.True(t, ViewFromCamera(cam).Orthographic)
}
