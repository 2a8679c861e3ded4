package trail

// Frame is the host input of one pipeline update.
type Frame struct {
	// Time is the current time in seconds.
	Time float32

	// DeltaTime is the time since the previous frame in seconds.
	DeltaTime float32

	// View is the camera the frame is culled, classified and shaded against.
	View View
}

// FrameContext carries the per-frame resources shared by the pipeline stages.
type FrameContext struct {
	Backend Backend
	Store   Store

	// Params is the frame's TrailParams uniform, written before any dispatch.
	Params Buffer

	Frame Frame
}
