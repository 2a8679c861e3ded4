package scene

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-trail/common"
	"github.com/Carmen-Shannon/oxy-trail/engine/camera"
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer"
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/hashicorp/go-multierror"
)

// ErrTrailSetExists is returned by AddTrailSet when the key is already in use.
var ErrTrailSetExists = errors.New("scene: trail set already exists")

// ErrTrailSetNotFound is returned when a key names no trail set.
var ErrTrailSetNotFound = errors.New("scene: trail set not found")

// Scene owns a camera, a trail backend and any number of keyed trail sets. Each trail set is
// an Orchestrator fed by an Emitter. Scenes can be hot-swapped via the Active flag.
// Thread-safe for concurrent access; all device work happens on the goroutine that calls
// PrepareCompute and DrawCalls.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Renderer returns the scene's renderer, or nil for headless scenes.
	Renderer() renderer.Renderer

	// Backend returns the trail backend every trail set records into.
	Backend() trail.Backend

	// Time returns the scene clock in seconds, advanced by PrepareCompute.
	Time() float32

	// AddTrailSet creates and initializes an orchestrator for cfg. Materials named by the
	// config are registered on wgpu backends before initialization.
	//
	// Parameters:
	//   - key: unique trail set key
	//   - cfg: the trail set config
	//   - emitter: the input source, may be nil for trail sets updated through Orchestrator directly
	//   - options: orchestrator options
	//
	// Returns:
	//   - trail.Orchestrator: the initialized orchestrator
	//   - error: ErrTrailSetExists, or an initialization error
	AddTrailSet(key string, cfg trail.Config, emitter trail.Emitter, options ...trail.OrchestratorBuilderOption) (trail.Orchestrator, error)

	// RemoveTrailSet releases a trail set and forgets it.
	//
	// Parameters:
	//   - key: the trail set key
	//
	// Returns:
	//   - error: ErrTrailSetNotFound, or release errors
	RemoveTrailSet(key string) error

	// TrailSet returns the orchestrator stored under key, or nil.
	//
	// Parameters:
	//   - key: the trail set key
	//
	// Returns:
	//   - trail.Orchestrator: the orchestrator or nil
	TrailSet(key string) trail.Orchestrator

	// TrailSetKeys returns every trail set key in update order.
	//
	// Returns:
	//   - []string: sorted keys
	TrailSetKeys() []string

	// Reconfigure validates cfg and schedules it for the trail set. The reinit happens at the
	// start of the next PrepareCompute, between frames.
	//
	// Parameters:
	//   - key: the trail set key
	//   - cfg: the new config
	//
	// Returns:
	//   - error: ErrTrailSetNotFound, or a validation error
	Reconfigure(key string, cfg trail.Config) error

	// PrepareCompute advances the scene clock, applies pending reconfigures, uploads the camera,
	// collects every emitter in parallel and runs each trail set's Update in key order.
	// On wgpu scenes it must be called within a BeginComputeFrame/EndComputeFrame block.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	//
	// Returns:
	//   - error: the aggregated trail set errors; failing sets are skipped for the frame
	PrepareCompute(deltaTime float32) error

	// DrawCalls records every trail set's draws. On wgpu scenes it must be called within a
	// BeginFrame/EndFrame block.
	//
	// Returns:
	//   - error: the aggregated draw errors
	DrawCalls() error

	// Release releases every trail set and the scene-owned backend resources.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error
}

type trailSet struct {
	key     string
	orch    trail.Orchestrator
	emitter trail.Emitter
	pending *trail.Config
	batch   *trail.Batch
	count   int
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	cam     camera.Camera
	r       renderer.Renderer
	backend trail.Backend
	metrics *trail.Metrics

	sets  map[string]*trailSet
	time  float32
	frame int

	computeWorkers int
	computePool    worker.DynamicWorkerPool
}

var _ Scene = &scene{}

// NewScene creates a scene recording into backend. Use WithRenderer to attach the renderer a
// wgpu backend was created on; headless scenes run on a software backend without one.
//
// Parameters:
//   - name: the scene name
//   - cam: the camera trails are culled, classified and shaded against
//   - backend: the trail backend
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
func NewScene(name string, cam camera.Camera, backend trail.Backend, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:             &sync.RWMutex{},
		name:           name,
		active:         true,
		cam:            cam,
		backend:        backend,
		sets:           make(map[string]*trailSet),
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(s)
	}

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

// NewWGPUScene creates a scene whose trail backend runs on r's device.
//
// Parameters:
//   - name: the scene name
//   - cam: the scene camera
//   - r: the renderer
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
//   - error: an error if the trail pipelines could not be created
func NewWGPUScene(name string, cam camera.Camera, r renderer.Renderer, options ...SceneBuilderOption) (Scene, error) {
	backend, err := NewWGPUTrailBackend(r)
	if err != nil {
		return nil, err
	}
	return NewScene(name, cam, backend, append([]SceneBuilderOption{WithRenderer(r)}, options...)...), nil
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Renderer() renderer.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

func (s *scene) Backend() trail.Backend {
	return s.backend
}

func (s *scene) Time() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.time
}

func (s *scene) AddTrailSet(key string, cfg trail.Config, emitter trail.Emitter, options ...trail.OrchestratorBuilderOption) (trail.Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sets[key]; exists {
		return nil, fmt.Errorf("%w: %q", ErrTrailSetExists, key)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scene: trail set %q: %w", key, err)
	}
	if cfg.Backend != s.backend.Type().String() {
		log.Printf("[Scene] Trail set %q asks for the %s backend, running on %s", key, cfg.Backend, s.backend.Type())
	}
	if err := s.registerMaterials(cfg); err != nil {
		return nil, err
	}

	options = append([]trail.OrchestratorBuilderOption{trail.WithName(key)}, options...)
	if s.metrics != nil {
		options = append([]trail.OrchestratorBuilderOption{trail.WithMetrics(s.metrics)}, options...)
	}
	orch := trail.NewOrchestrator(s.backend, cfg, options...)
	if err := orch.Initialize(); err != nil {
		return nil, fmt.Errorf("scene: trail set %q: %w", key, err)
	}
	s.sets[key] = &trailSet{key: key, orch: orch, emitter: emitter}
	log.Printf("[Scene] Added trail set %q to %q", key, s.name)
	return orch, nil
}

func (s *scene) RemoveTrailSet(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTrailSetNotFound, key)
	}
	delete(s.sets, key)
	return set.orch.Release()
}

func (s *scene) TrailSet(key string) trail.Orchestrator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.sets[key]; ok {
		return set.orch
	}
	return nil
}

func (s *scene) TrailSetKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keysLocked()
}

func (s *scene) keysLocked() []string {
	keys := make([]string, 0, len(s.sets))
	for k := range s.sets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s *scene) Reconfigure(key string, cfg trail.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("scene: reconfigure %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTrailSetNotFound, key)
	}
	set.pending = &cfg
	return nil
}

func (s *scene) PrepareCompute(deltaTime float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.time += max(deltaTime, 0)
	s.frame++
	keys := s.keysLocked()

	var errs *multierror.Error
	for _, key := range keys {
		set := s.sets[key]
		if set.pending == nil {
			continue
		}
		cfg := *set.pending
		set.pending = nil
		if err := s.registerMaterials(cfg); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if err := set.orch.Reconfigure(cfg); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("scene: reconfigure %q: %w", key, err))
			continue
		}
		if re, ok := set.emitter.(trail.ResizableEmitter); ok {
			re.Resize(cfg.TrailCount, cfg.InputCountMax)
		}
	}

	if s.cam == nil {
		errs = multierror.Append(errs, errors.New("scene: no camera"))
		return errs.ErrorOrNil()
	}
	s.cam.Update()
	if wb, ok := s.backend.(WGPUTrailBackend); ok {
		if err := wb.SetCamera(s.cam); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("scene: camera: %w", err))
		}
	}
	frame := trail.Frame{
		Time:      s.time,
		DeltaTime: deltaTime,
		View:      trail.ViewFromCamera(s.cam),
	}

	// Phase 1: drain every emitter on the compute pool. A WaitGroup provides the per-frame
	// barrier since pool.Wait() blocks until workers idle-exit.
	var wg sync.WaitGroup
	for i, key := range keys {
		set := s.sets[key]
		set.count, set.batch = 0, nil
		if set.emitter == nil {
			continue
		}
		wg.Add(1)
		setCap := set
		s.computePool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				setCap.count, setCap.batch = setCap.emitter.Collect()
				return nil, nil
			},
		})
	}
	wg.Wait()

	// Phase 2: device work stays on this goroutine, in key order.
	for _, key := range keys {
		set := s.sets[key]
		batch := set.batch
		if set.count == 0 {
			batch = nil
		}
		if err := set.orch.Update(frame, batch); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("scene: trail set %q: %w", key, err))
		}
		set.batch = nil
	}
	return errs.ErrorOrNil()
}

func (s *scene) DrawCalls() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs *multierror.Error
	for _, key := range s.keysLocked() {
		if err := s.sets[key].orch.Draw(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("scene: trail set %q: %w", key, err))
		}
	}
	return errs.ErrorOrNil()
}

func (s *scene) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs *multierror.Error
	for _, key := range s.keysLocked() {
		if err := s.sets[key].orch.Release(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("scene: trail set %q: %w", key, err))
		}
		delete(s.sets, key)
	}
	switch b := s.backend.(type) {
	case WGPUTrailBackend:
		if err := b.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
	case trail.SoftwareBackend:
		b.Close()
	}
	s.computePool.Stop()
	log.Printf("[Scene] Released %q after %d frames", s.name, s.frame)
	return errs.ErrorOrNil()
}

// registerMaterials registers the render pipelines cfg's LODs draw with. Software backends
// record draws by name and need no registration.
func (s *scene) registerMaterials(cfg trail.Config) error {
	wb, ok := s.backend.(WGPUTrailBackend)
	if !ok {
		return nil
	}
	mode, err := pipeline.ParseBlendMode(cfg.Blend)
	if err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	for _, material := range configMaterials(cfg) {
		if err := wb.RegisterMaterial(material, mode); err != nil {
			return fmt.Errorf("scene: %w", err)
		}
	}
	return nil
}

// configMaterials lists the distinct render pipeline keys a config draws with.
func configMaterials(cfg trail.Config) []string {
	materials := []string{common.Coalesce(cfg.Material, trail.DefaultMaterial)}
	for _, lod := range cfg.LodSettings() {
		materials = append(materials, lod.Material)
	}
	slices.Sort(materials)
	return slices.Compact(materials)
}
