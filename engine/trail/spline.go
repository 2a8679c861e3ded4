package trail

import (
	"github.com/go-gl/mathgl/mgl32"
)

// CatmullRom evaluates the uniform Catmull-Rom segment between start and end, shaped by
// the point before start. The curve passes exactly through start at t=0 and end at t=1.
//
// Parameters:
//   - t: segment parameter in [0, 1]
//   - prev: the control point preceding start
//   - start: the segment start point
//   - end: the segment end point
//
// Returns:
//   - mgl32.Vec3: the interpolated point
func CatmullRom(t float32, prev, start, end mgl32.Vec3) mgl32.Vec3 {
	if t == 0 {
		return start
	}
	if t == 1 {
		return end
	}
	a := prev.Sub(start.Mul(2)).Add(end).Mul(t * t)
	b := end.Sub(prev).Mul(t)
	return a.Add(b).Mul(0.5).Add(start)
}

// Interpolate produces n samples on the Catmull-Rom segment from prev0 to pos: n-1 evenly
// spaced intermediates followed by pos itself.
//
// Parameters:
//   - n: number of samples to produce
//   - prev1: the sample before prev0
//   - prev0: the previous sample (segment start)
//   - pos: the current sample (segment end)
//
// Returns:
//   - []mgl32.Vec3: n samples, oldest first; nil if n < 1
func Interpolate(n int, prev1, prev0, pos mgl32.Vec3) []mgl32.Vec3 {
	if n < 1 {
		return nil
	}
	out := make([]mgl32.Vec3, n)
	for k := 1; k < n; k++ {
		out[k-1] = CatmullRom(float32(k)/float32(n), prev1, prev0, pos)
	}
	out[n-1] = pos
	return out
}

// Lerp linearly interpolates between two points.
//
// Parameters:
//   - a: the point at t=0
//   - b: the point at t=1
//   - t: interpolation factor
//
// Returns:
//   - mgl32.Vec3: the interpolated point
func Lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	if t == 1 {
		return b
	}
	return a.Add(b.Sub(a).Mul(t))
}

// LerpVec4 linearly interpolates between two colors.
func LerpVec4(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}

// InterpolateLinear produces n samples on the line from prev0 to pos, ending exactly at pos.
//
// Parameters:
//   - n: number of samples to produce
//   - prev0: the previous sample
//   - pos: the current sample
//
// Returns:
//   - []mgl32.Vec3: n samples, oldest first; nil if n < 1
func InterpolateLinear(n int, prev0, pos mgl32.Vec3) []mgl32.Vec3 {
	if n < 1 {
		return nil
	}
	out := make([]mgl32.Vec3, n)
	for k := 1; k <= n; k++ {
		out[k-1] = Lerp(prev0, pos, float32(k)/float32(n))
	}
	return out
}
