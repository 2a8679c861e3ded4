package engine

import (
	"log"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-trail/engine/profiler"
	"github.com/Carmen-Shannon/oxy-trail/engine/scene"
	"github.com/Carmen-Shannon/oxy-trail/engine/window"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultTickRate = 60

// engine implements the Engine interface.
// Coordinates the tick, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window window.Window

	profiler         *profiler.Profiler
	profilingEnabled bool
	metricsRegistry  *prometheus.Registry

	tickPeriod   time.Duration
	tickCallback func(deltaTime float32)

	scenesMu sync.RWMutex
	scenes   map[int]scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	errMu      sync.Mutex
	lastErrors map[string]string
}

// Engine drives every registered scene's trail sets. A fixed-rate tick goroutine moves emitters
// through the tick callback, and a render goroutine runs the compute phase of every active
// scene followed by their ribbon draws, once per frame.
type Engine interface {
	// Window returns the underlying window, or nil for an engine without one.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// MetricsRegistry returns the registry the profiler records frame metrics on.
	//
	// Returns:
	//   - *prometheus.Registry: the metrics registry
	MetricsRegistry() *prometheus.Registry

	// SetTickRate sets how often the tick callback runs. Takes effect immediately on a running
	// engine, which lets a reloaded trail config change the emitter sample rate.
	//
	// Parameters:
	//   - fps: ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each tick, typically to feed emitters.
	//
	// Parameters:
	//   - callback: receives the seconds elapsed since the previous tick
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit caps the render loop. Pass 0 to uncap it.
	//
	// Parameters:
	//   - fps: maximum render frames per second
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key. Scenes run in ascending key order.
	//
	// Parameters:
	//   - key: the z-index
	//   - s: the scene
	AddScene(key int, s scene.Scene)

	// RemoveScene unregisters the scene at key. The scene is not released.
	//
	// Parameters:
	//   - key: the z-index
	RemoveScene(key int)

	// Scene returns the scene at key, or nil.
	//
	// Parameters:
	//   - key: the z-index
	//
	// Returns:
	//   - scene.Scene: the scene or nil
	Scene(key int) scene.Scene

	// Run starts the tick and render goroutines and blocks in the window loop until the window
	// closes or Quit is called.
	Run()

	// Quit stops the engine goroutines and closes the window. Safe to call more than once.
	Quit()
}

// NewEngine creates an engine. Options are applied before the profiler is created so that
// WithMetricsRegistry takes effect.
//
// Parameters:
//   - options: engine options
//
// Returns:
//   - Engine: the engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		lastErrors:      make(map[string]string),
		tickPeriod:      ratePeriod(defaultTickRate),
	}

	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(profiler.WithRegistry(e.metricsRegistry))

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}
	return e
}

// ratePeriod converts a rate in Hz to a period, treating rates <= 0 as 60 Hz.
func ratePeriod(fps float64) time.Duration {
	if fps <= 0 {
		fps = defaultTickRate
	}
	return time.Duration(float64(time.Second) / fps)
}

func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	for _, s := range e.sortedScenes(false) {
		if r := s.Renderer(); r != nil {
			r.Resize(width, height)
		}
		if c := s.Camera(); c != nil {
			c.SetAspect(float32(width) / float32(height))
		}
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) MetricsRegistry() *prometheus.Registry {
	return e.profiler.Registry()
}

// Run blocks in the window message loop. When the window closes, the tick and render
// goroutines are stopped and joined before the window is destroyed.
func (e *engine) Run() {
	e.running.Store(true)
	e.wg.Add(2)
	go e.tickLoop()
	go e.renderLoop()

	if e.window != nil {
		e.window.ProcessMessages()
	} else {
		<-e.quitChannel
	}

	e.signalQuit()
	e.wg.Wait()
	e.running.Store(false)
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			log.Printf("[Engine] Close window: %v", err)
		}
	}
}

func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil {
		e.window.RequestClose()
	}
}

func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// tickLoop fires the tick callback at the tick rate and picks up rate changes from
// tickRateChannel until quit.
func (e *engine) tickLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickPeriod)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case now := <-ticker.C:
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case period := <-e.tickRateChannel:
			ticker.Reset(period)
			e.tickPeriod = period
		}
	}
}

// renderLoop renders frames until quit. A panic in a frame is logged and stops the engine.
func (e *engine) renderLoop() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] Render goroutine recovered from panic: %v", r)
			e.Quit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		e.renderFrame(float32(now.Sub(lastRender).Seconds()))
		lastRender = now

		if e.profilingEnabled {
			e.profiler.Tick()
		}
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// renderFrame runs one frame over the active scenes in z-index order. Every scene's compute
// phase is recorded before any scene draws, so ribbons read counts from the same frame. GPU
// scenes share the first active scene's renderer for both submissions; scenes without a
// renderer run on their own backends.
func (e *engine) renderFrame(dt float32) {
	active := e.sortedScenes(true)
	if len(active) == 0 {
		return
	}
	r := active[0].Renderer()

	computeOpen := r == nil || r.BeginComputeFrame() == nil
	if computeOpen {
		for _, s := range active {
			if err := s.PrepareCompute(dt); err != nil {
				e.logSceneError(s, err)
			}
		}
		if r != nil {
			r.EndComputeFrame()
		}
	}

	if r != nil {
		if err := r.BeginFrame(); err != nil {
			return
		}
	}
	for _, s := range active {
		if err := s.DrawCalls(); err != nil {
			e.logSceneError(s, err)
		}
	}
	if r != nil {
		r.EndFrame()
		r.Present()
	}
}

// sortedScenes returns the registered scenes in ascending key order, optionally only active ones.
func (e *engine) sortedScenes(activeOnly bool) []scene.Scene {
	e.scenesMu.RLock()
	defer e.scenesMu.RUnlock()
	out := make([]scene.Scene, 0, len(e.scenes))
	for _, k := range slices.Sorted(maps.Keys(e.scenes)) {
		if s := e.scenes[k]; !activeOnly || s.Active() {
			out = append(out, s)
		}
	}
	return out
}

// logSceneError logs a scene's frame error once per distinct message so a persistent
// failure does not flood the log every frame.
func (e *engine) logSceneError(s scene.Scene, err error) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	msg := err.Error()
	if e.lastErrors[s.Name()] == msg {
		return
	}
	e.lastErrors[s.Name()] = msg
	log.Printf("[Engine] Scene %q: %v", s.Name(), err)
}

func (e *engine) SetTickRate(fps float64) {
	period := ratePeriod(fps)
	if !e.running.Load() {
		e.tickPeriod = period
		return
	}
	// replace any pending change that the tick loop has not picked up yet
	for {
		select {
		case e.tickRateChannel <- period:
			return
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
		}
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.scenesMu.RLock()
	defer e.scenesMu.RUnlock()
	return e.scenes[key]
}
