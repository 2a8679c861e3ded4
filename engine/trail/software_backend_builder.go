package trail

// SoftwareBackendBuilderOption configures a software backend.
type SoftwareBackendBuilderOption func(*softwareBackend)

// WithWorkers sets the number of pool workers that execute workgroups.
//
// Parameters:
//   - n: worker count, values below 1 are raised to 1
//
// Returns:
//   - SoftwareBackendBuilderOption: functional option to set the worker count
func WithWorkers(n int) SoftwareBackendBuilderOption {
	return func(s *softwareBackend) {
		s.workers = max(n, 1)
	}
}
