package trail

// StoreBuilderOption configures a Store.
type StoreBuilderOption func(*store)

// WithFrameRate sets the host frame rate used to flag input rates that sample below frame cadence.
//
// Parameters:
//   - fps: frames per second
//
// Returns:
//   - StoreBuilderOption: functional option to set the frame rate
func WithFrameRate(fps float32) StoreBuilderOption {
	return func(s *store) {
		if fps > 0 {
			s.frameRate = fps
		}
	}
}
