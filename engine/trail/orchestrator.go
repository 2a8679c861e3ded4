package trail

import (
	"fmt"
	"log"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Orchestrator drives one trail set through the per-frame pipeline:
// Ready -> Appending -> Culling -> ClassifyingLOD -> GeneratingRibbons -> Drawing -> Ready.
// Culling and LOD are skipped when their strategy slot is empty. Every call must come
// from the same control thread as the rest of the frame's device work.
type Orchestrator interface {
	// Initialize allocates the store, append engine, strategies and per-LOD generators.
	//
	// Returns:
	//   - error: ErrReleased after Release, ErrInvalidState if already initialized,
	//     or an error if the config is invalid or allocation failed
	Initialize() error

	// Update stages every host write of the frame, then appends, culls, classifies and
	// generates ribbon vertices.
	//
	// Parameters:
	//   - frame: the frame time and view
	//   - batch: the frame's samples; nil or empty skips the append
	//
	// Returns:
	//   - error: a lifecycle error, or the first stage error after which the
	//     orchestrator returns to Ready
	Update(frame Frame, batch *Batch) error

	// UpdateFrom collects an emitter and runs Update with its batch.
	//
	// Parameters:
	//   - frame: the frame time and view
	//   - emitter: the input source
	//
	// Returns:
	//   - error: see Update
	UpdateFrom(frame Frame, emitter Emitter) error

	// Draw records one indirect draw per LOD.
	//
	// Returns:
	//   - error: a lifecycle error or the first draw error
	Draw() error

	// Reconfigure releases everything and initializes again with a new config.
	// Only valid between frames.
	//
	// Parameters:
	//   - cfg: the new config
	//
	// Returns:
	//   - error: an error if the config is invalid, the state forbids it, or reinit failed
	Reconfigure(cfg Config) error

	// Release frees every resource. Further calls return ErrReleased; a second Release is a no-op.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error

	// State returns the current pipeline state.
	//
	// Returns:
	//   - State: the state
	State() State

	// Config returns the active config.
	//
	// Returns:
	//   - Config: the config
	Config() Config

	// NewBatch returns an empty batch sized for the active config.
	//
	// Returns:
	//   - *Batch: the batch
	NewBatch() *Batch

	// Store returns the trail store.
	//
	// Returns:
	//   - Store: the store, nil before Initialize
	Store() Store

	// Culler returns the active culler.
	//
	// Returns:
	//   - Culler: the culler, nil when culling is disabled
	Culler() Culler

	// LodClassifier returns the active classifier.
	//
	// Returns:
	//   - LodClassifier: the classifier, nil when LOD is disabled
	LodClassifier() LodClassifier

	// Generators returns the per-LOD ribbon generators in bucket order.
	//
	// Returns:
	//   - []RibbonGenerator: the generators
	Generators() []RibbonGenerator
}

type orchestrator struct {
	mu *sync.Mutex

	name    string
	backend Backend
	cfg     Config
	metrics *Metrics
	factory RibbonGeneratorFactory

	culler    Culler
	cullerSet bool
	lod       LodClassifier
	lodSet    bool
	stereo    bool
	stereoSet bool

	store      Store
	appender   AppendEngine
	params     Buffer
	identity   *IndexList
	generators []RibbonGenerator

	state    State
	prevTime float32
	hasPrev  bool
}

var _ Orchestrator = &orchestrator{}

// NewOrchestrator creates an uninitialized orchestrator. Strategies not set through
// options are derived from cfg on every Initialize.
//
// Parameters:
//   - backend: the device backend
//   - cfg: the trail set config
//   - options: functional options to configure the orchestrator
//
// Returns:
//   - Orchestrator: the orchestrator
func NewOrchestrator(backend Backend, cfg Config, options ...OrchestratorBuilderOption) Orchestrator {
	o := &orchestrator{
		mu:      &sync.Mutex{},
		name:    DefaultSetName,
		cfg:     cfg,
		factory: NewRibbonGenerator,
		state:   StateUninitialized,
	}
	for _, option := range options {
		option(o)
	}
	o.backend = InstrumentBackend(backend, o.metrics)
	o.metrics.setState(o.name, o.state)
	return o
}

func (o *orchestrator) Initialize() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.lifecycleLocked(StateUninitialized); err != nil {
		return err
	}
	if err := o.cfg.Validate(); err != nil {
		return fmt.Errorf("trail: %w", err)
	}
	if err := o.allocateLocked(); err != nil {
		if rerr := o.releaseResourcesLocked(); rerr != nil {
			err = multierror.Append(err, rerr)
		}
		return err
	}
	log.Printf("[Trail] Initialized %d trails x %d nodes, culling=%t, lods=%d", o.cfg.TrailCount, o.store.NodesPerTrail(), o.culler != nil, len(o.generators))
	return o.transitionLocked(StateReady)
}

func (o *orchestrator) allocateLocked() error {
	cfg := o.cfg
	if !o.cullerSet {
		o.culler = nil
		if cfg.Culling {
			o.culler = NewFrustumCuller()
		}
	}
	if !o.lodSet {
		o.lod = nil
		if len(cfg.Lods) > 0 {
			o.lod = NewLodClassifier(cfg.LodSettings()...)
		}
	}
	if !o.stereoSet {
		o.stereo = cfg.Stereo
	}

	o.store = NewStore(o.backend, WithFrameRate(cfg.FrameRate))
	if err := o.store.Initialize(cfg.TrailCount, cfg.Life, cfg.InputRate); err != nil {
		return fmt.Errorf("trail: %w", err)
	}
	var err error
	if o.appender, err = NewAppendEngine(o.backend, o.store, cfg.InputCountMax); err != nil {
		return fmt.Errorf("trail: %w", err)
	}
	var tp GPUTrailParams
	if o.params, err = o.backend.CreateBuffer("trail_params", uint64(tp.Size()), BufferUsageUniform|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("trail: params: %w", err)
	}

	if o.culler != nil {
		if err := o.culler.Allocate(o.backend, cfg.TrailCount); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
	} else {
		if o.identity, err = NewIndexList(o.backend, "trail_all", cfg.TrailCount); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
		if err := o.identity.StageIdentity(o.backend, cfg.TrailCount); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
	}

	settings := []LodSetting{{NodeStep: 1, Material: cfg.material()}}
	if o.lod != nil {
		if err := o.lod.Allocate(o.backend, cfg.TrailCount); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
		settings = o.lod.Settings()
	}
	for i, setting := range settings {
		if setting.Material == "" {
			setting.Material = cfg.material()
		}
		gen, err := o.factory(o.backend, o.store, i, setting, o.stereo)
		if err != nil {
			return fmt.Errorf("trail: %w", err)
		}
		o.generators = append(o.generators, gen)
	}
	return nil
}

func (o *orchestrator) Update(frame Frame, batch *Batch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.lifecycleLocked(StateReady, StateGeneratingRibbons); err != nil {
		return err
	}
	if err := o.updateLocked(frame, batch); err != nil {
		log.Printf("[Trail] Frame aborted in %s: %v", o.state, err)
		o.state = StateReady
		o.metrics.setState(o.name, o.state)
		return err
	}
	o.prevTime = frame.Time
	o.hasPrev = true
	o.metrics.frame()
	return nil
}

func (o *orchestrator) updateLocked(frame Frame, batch *Batch) error {
	if err := o.transitionLocked(StateAppending); err != nil {
		return err
	}
	ctx := &FrameContext{
		Backend: o.backend,
		Store:   o.store,
		Params:  o.params,
		Frame:   frame,
	}

	appended, err := o.stageLocked(ctx, batch)
	if err != nil {
		return err
	}
	if appended {
		if err := o.appender.Dispatch(o.params); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
		o.metrics.staged(batch.Count())
	}

	if err := o.transitionLocked(StateCulling); err != nil {
		return err
	}
	source := o.identity
	if o.culler != nil {
		if err := o.culler.Dispatch(ctx); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
		source = o.culler.Visible()
	}

	if err := o.transitionLocked(StateClassifyingLOD); err != nil {
		return err
	}
	if o.lod != nil {
		if err := o.lod.Dispatch(ctx, source); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
	}

	if err := o.transitionLocked(StateGeneratingRibbons); err != nil {
		return err
	}
	deviceCount := o.culler != nil || o.lod != nil
	for i, gen := range o.generators {
		list := source
		if o.lod != nil {
			list = o.lod.Bucket(i)
		}
		if err := gen.Generate(ctx, list); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
		if !deviceCount {
			continue
		}
		if err := gen.Driver().CopyInstanceCount(o.backend, list); err != nil {
			return fmt.Errorf("trail: %w", err)
		}
		if o.stereo {
			if err := gen.Driver().Multiply(o.backend); err != nil {
				return fmt.Errorf("trail: %w", err)
			}
		}
	}
	return nil
}

// stageLocked queues every host write of the frame before the first dispatch.
func (o *orchestrator) stageLocked(ctx *FrameContext, batch *Batch) (bool, error) {
	cfg := o.cfg
	prev := o.prevTime
	if !o.hasPrev {
		prev = ctx.Frame.Time
	}
	tp := GPUTrailParams{
		TrailCount:      uint32(cfg.TrailCount),
		NodesPerTrail:   uint32(o.store.NodesPerTrail()),
		InputCountMax:   uint32(cfg.InputCountMax),
		Time:            ctx.Frame.Time,
		PrevTime:        prev,
		Life:            cfg.Life,
		MinNodeDistance: cfg.MinNodeDistance,
	}
	if cfg.IgnoreOrigin {
		tp.Flags |= FlagIgnoreOrigin
	}
	if err := o.backend.WriteBuffer(o.params, 0, tp.Marshal()); err != nil {
		return false, fmt.Errorf("trail: params: %w", err)
	}

	appended, err := o.appender.Stage(batch)
	if err != nil {
		return false, fmt.Errorf("trail: %w", err)
	}

	look := cfg.Appearance()
	if o.culler != nil {
		if err := o.culler.Stage(ctx, look.MaxWidth()); err != nil {
			return false, fmt.Errorf("trail: %w", err)
		}
	}
	if o.lod != nil {
		if err := o.lod.Stage(ctx); err != nil {
			return false, fmt.Errorf("trail: %w", err)
		}
	}

	instances := uint32(cfg.TrailCount)
	if o.stereo {
		instances *= 2
	}
	for _, gen := range o.generators {
		if err := gen.Stage(ctx, look); err != nil {
			return false, fmt.Errorf("trail: %w", err)
		}
		if o.culler == nil && o.lod == nil {
			if err := gen.Driver().StageInstanceCount(o.backend, instances); err != nil {
				return false, fmt.Errorf("trail: %w", err)
			}
		}
	}
	return appended, nil
}

func (o *orchestrator) UpdateFrom(frame Frame, emitter Emitter) error {
	count, batch := emitter.Collect()
	if count == 0 {
		batch = nil
	}
	return o.Update(frame, batch)
}

func (o *orchestrator) Draw() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.lifecycleLocked(StateReady, StateGeneratingRibbons); err != nil {
		return err
	}
	if err := o.transitionLocked(StateDrawing); err != nil {
		return err
	}
	var drawErr error
	for _, gen := range o.generators {
		if err := gen.Draw(o.backend); err != nil {
			drawErr = fmt.Errorf("trail: %w", err)
			break
		}
	}
	if err := o.transitionLocked(StateReady); err != nil {
		return err
	}
	return drawErr
}

func (o *orchestrator) Reconfigure(cfg Config) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.lifecycleLocked(StateReady, StateGeneratingRibbons); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("trail: reconfigure: %w", err)
	}
	if err := o.transitionLocked(StateUninitialized); err != nil {
		return err
	}
	if err := o.releaseResourcesLocked(); err != nil {
		log.Printf("[Trail] Release during reconfigure: %v", err)
	}
	o.cfg = cfg
	o.hasPrev = false

	if err := o.allocateLocked(); err != nil {
		if rerr := o.releaseResourcesLocked(); rerr != nil {
			err = multierror.Append(err, rerr)
		}
		return fmt.Errorf("trail: reconfigure: %w", err)
	}
	log.Printf("[Trail] Reconfigured to %d trails x %d nodes", cfg.TrailCount, o.store.NodesPerTrail())
	return o.transitionLocked(StateReady)
}

func (o *orchestrator) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateReleased {
		return nil
	}
	err := o.releaseResourcesLocked()
	o.state = StateReleased
	o.metrics.setState(o.name, o.state)
	log.Printf("[Trail] Released")
	return err
}

func (o *orchestrator) releaseResourcesLocked() error {
	var errs *multierror.Error
	for _, gen := range o.generators {
		if err := gen.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	o.generators = nil

	if o.lod != nil {
		if err := o.lod.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if o.culler != nil {
		if err := o.culler.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if o.identity != nil {
		if err := o.identity.Release(o.backend); err != nil {
			errs = multierror.Append(errs, err)
		}
		o.identity = nil
	}
	if o.params != nil {
		if err := o.backend.ReleaseBuffer(o.params); err != nil {
			errs = multierror.Append(errs, err)
		}
		o.params = nil
	}
	if o.appender != nil {
		if err := o.appender.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
		o.appender = nil
	}
	if o.store != nil {
		if err := o.store.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// lifecycleLocked checks that the orchestrator is in one of the allowed states.
func (o *orchestrator) lifecycleLocked(allowed ...State) error {
	for _, s := range allowed {
		if o.state == s {
			return nil
		}
	}
	switch o.state {
	case StateReleased:
		return fmt.Errorf("trail: %w", ErrReleased)
	case StateUninitialized:
		return fmt.Errorf("trail: %w", ErrNotInitialized)
	}
	return fmt.Errorf("trail: in state %s: %w", o.state, ErrInvalidState)
}

func (o *orchestrator) transitionLocked(to State) error {
	if !CanTransition(o.state, to) {
		return fmt.Errorf("trail: %s -> %s: %w", o.state, to, ErrInvalidState)
	}
	o.state = to
	o.metrics.setState(o.name, to)
	return nil
}

func (o *orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *orchestrator) Config() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

func (o *orchestrator) NewBatch() *Batch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return NewBatch(o.cfg.TrailCount, o.cfg.InputCountMax, WithDefaultColor(o.cfg.Color()))
}

func (o *orchestrator) Store() Store {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store
}

func (o *orchestrator) Culler() Culler {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.culler
}

func (o *orchestrator) LodClassifier() LodClassifier {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lod
}

func (o *orchestrator) Generators() []RibbonGenerator {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]RibbonGenerator(nil), o.generators...)
}
