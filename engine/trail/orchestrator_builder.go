package trail

// OrchestratorBuilderOption configures an Orchestrator.
type OrchestratorBuilderOption func(*orchestrator)

// WithCuller replaces the culler chosen by Config.Culling. A nil culler disables culling.
//
// Parameters:
//   - culler: the culler to use, or nil
//
// Returns:
//   - OrchestratorBuilderOption: functional option to set the culler
func WithCuller(culler Culler) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.culler = culler
		o.cullerSet = true
	}
}

// WithLodClassifier replaces the classifier built from Config.Lods. A nil classifier
// disables LOD.
//
// Parameters:
//   - lod: the classifier to use, or nil
//
// Returns:
//   - OrchestratorBuilderOption: functional option to set the LOD classifier
func WithLodClassifier(lod LodClassifier) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.lod = lod
		o.lodSet = true
	}
}

// WithStereo overrides Config.Stereo.
//
// Parameters:
//   - stereo: whether every trail is drawn once per eye
//
// Returns:
//   - OrchestratorBuilderOption: functional option to set stereo rendering
func WithStereo(stereo bool) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.stereo = stereo
		o.stereoSet = true
	}
}

// WithRibbonGeneratorFactory replaces the per-LOD ribbon generator constructor.
//
// Parameters:
//   - factory: the constructor called once per LOD on every initialize
//
// Returns:
//   - OrchestratorBuilderOption: functional option to set the generator factory
func WithRibbonGeneratorFactory(factory RibbonGeneratorFactory) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		if factory != nil {
			o.factory = factory
		}
	}
}

// DefaultSetName labels the metrics of an orchestrator built without WithName.
const DefaultSetName = "default"

// WithName sets the trail set name the orchestrator's metrics are labelled with.
func WithName(name string) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		if name != "" {
			o.name = name
		}
	}
}

// WithMetrics records pipeline counters into metrics.
//
// Parameters:
//   - metrics: the metrics to record into
//
// Returns:
//   - OrchestratorBuilderOption: functional option to set the metrics
func WithMetrics(metrics *Metrics) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.metrics = metrics
	}
}
