package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-trail/common"
	"github.com/Carmen-Shannon/oxy-trail/engine"
	"github.com/Carmen-Shannon/oxy-trail/engine/camera"
	"github.com/Carmen-Shannon/oxy-trail/engine/renderer"
	"github.com/Carmen-Shannon/oxy-trail/engine/scene"
	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/Carmen-Shannon/oxy-trail/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const trailSetKey = "demo"

type runOptions struct {
	configPath  string
	headless    bool
	frames      int
	software    bool
	watch       bool
	metricsAddr string
	radius      float32
	msaa        int
	vsync       bool
	maxFPS      float64
}

func newRunCommand() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a trail set from a config file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfigOrDefault(opts.configPath)
			if err != nil {
				return err
			}
			if opts.headless {
				cfg.Backend = trail.BackendNameSoftware
			}

			reg := prometheus.NewRegistry()
			if opts.metricsAddr != "" {
				srv := serveMetrics(opts.metricsAddr, reg)
				defer func() { _ = srv.Close() }()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if cfg.Backend == trail.BackendNameSoftware {
				return runHeadless(ctx, cfg, opts, reg)
			}
			return runWindowed(ctx, cfg, opts, reg)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "trail config file (.toml, .yaml or .yml)")
	flags.BoolVar(&opts.headless, "headless", false, "run on the software backend without a window")
	flags.IntVar(&opts.frames, "frames", 120, "frames to run headless, 0 runs until interrupted")
	flags.BoolVar(&opts.software, "software", false, "force a software WebGPU adapter")
	flags.BoolVar(&opts.watch, "watch", true, "reload the config file when it changes")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Float32Var(&opts.radius, "radius", 10, "radius of the emitter orbits")
	flags.IntVar(&opts.msaa, "msaa", 4, "ribbon multisample count: 1, 4, 8 or 16")
	flags.BoolVar(&opts.vsync, "vsync", true, "wait for vertical blank when presenting")
	flags.Float64Var(&opts.maxFPS, "max-fps", 0, "cap the render loop, 0 is uncapped")
	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Metrics] %v", err)
		}
	}()
	log.Printf("[Metrics] Serving on %s/metrics", addr)
	return srv
}

// startWatcher hot-reloads the config into the demo trail set when watching is enabled.
// startWatcher reconfigures the demo trail set whenever the config file changes. onReload,
// if set, runs after each successful reconfigure.
func startWatcher(ctx context.Context, opts runOptions, sc scene.Scene, onReload func(trail.Config)) {
	if !opts.watch || opts.configPath == "" {
		return
	}
	go func() {
		err := watchConfig(ctx, opts.configPath, func(cfg trail.Config) {
			if err := sc.Reconfigure(trailSetKey, cfg); err != nil {
				log.Printf("[Config] %v", err)
				return
			}
			log.Printf("[Config] Reloaded %s", opts.configPath)
			if onReload != nil {
				onReload(cfg)
			}
		})
		if err != nil {
			log.Printf("[Config] Watcher stopped: %v", err)
		}
	}()
}

func runHeadless(ctx context.Context, cfg trail.Config, opts runOptions, reg *prometheus.Registry) error {
	backend := trail.NewSoftwareBackend()
	cam := newDemoCamera(16.0/9.0, opts.radius)
	sc := scene.NewScene("oxy-trail", cam, backend,
		scene.WithActive(true),
		scene.WithMetrics(trail.NewMetrics(reg)),
	)

	emitters := trail.NewEmitterGroup(cfg.TrailCount, cfg.InputCountMax, trail.WithEmitterColor(cfg.Color()))
	if _, err := sc.AddTrailSet(trailSetKey, cfg, emitters); err != nil {
		return multierror.Append(err, sc.Release()).ErrorOrNil()
	}
	startWatcher(ctx, opts, sc, nil)

	dt := float32(1) / common.Coalesce(cfg.FrameRate, 60)
	for frame := 0; opts.frames == 0 || frame < opts.frames; frame++ {
		select {
		case <-ctx.Done():
			return sc.Release()
		default:
		}

		moveEmitters(emitters, sc.Time()+dt, opts.radius)
		if err := sc.PrepareCompute(dt); err != nil {
			log.Printf("[Headless] Frame %d: %v", frame, err)
		}
		backend.ResetDraws()
		if err := sc.DrawCalls(); err != nil {
			log.Printf("[Headless] Frame %d: %v", frame, err)
		}
		for _, d := range backend.Draws() {
			log.Printf("[Headless] Frame %d: %s indices=%d instances=%d", frame, d.Material, d.IndexCount, d.InstanceCount)
		}
	}
	return sc.Release()
}

func runWindowed(ctx context.Context, cfg trail.Config, opts runOptions, reg *prometheus.Registry) error {
	msaa, err := renderer.ParseMSAA(opts.msaa)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(
		engine.WithProfiling(true),
		engine.WithMetricsRegistry(reg),
		engine.WithTickRate(float64(common.Coalesce(cfg.FrameRate, 60))),
		engine.WithRenderFrameLimit(opts.maxFPS),
		engine.WithWindow(window.NewWindow(
			window.WithTitle("Oxy Trail"),
			window.WithSize(1600, 900),
		)),
	)

	present := renderer.PresentModeVSync
	if !opts.vsync {
		present = renderer.PresentModeUncapped
	}
	r := renderer.NewRenderer(
		renderer.BackendTypeWGPU,
		eng.Window(),
		renderer.WithPresentMode(present),
		renderer.WithMSAA(msaa),
		renderer.WithForceSoftwareRenderer(opts.software),
	)
	defer r.Release()

	cam := newDemoCamera(float32(eng.Window().Width())/float32(eng.Window().Height()), opts.radius)
	sc, err := scene.NewWGPUScene("oxy-trail", cam, r,
		scene.WithActive(true),
		scene.WithMetrics(trail.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}

	emitters := trail.NewEmitterGroup(cfg.TrailCount, cfg.InputCountMax, trail.WithEmitterColor(cfg.Color()))
	if _, err := sc.AddTrailSet(trailSetKey, cfg, emitters); err != nil {
		return multierror.Append(err, sc.Release()).ErrorOrNil()
	}
	eng.AddScene(0, sc)
	startWatcher(ctx, opts, sc, func(cfg trail.Config) {
		eng.SetTickRate(float64(cfg.FrameRate))
	})

	var paused atomic.Bool
	var t float32
	eng.SetTickCallback(func(dt float32) {
		if paused.Load() {
			return
		}
		t += dt
		moveEmitters(emitters, t, opts.radius)
	})
	setupInput(eng, cam, inputActions{
		togglePause: func() {
			title := fmt.Sprintf("Oxy Trail - %d trails", emitters.TrailCount())
			if !paused.Load() {
				title += " (paused)"
			}
			paused.Store(!paused.Load())
			eng.Window().SetTitle(title)
		},
		resetTrails: emitters.Reset,
		toggleCulling: func() {
			if err := toggleCulling(sc, trailSetKey); err != nil {
				log.Printf("[Oxy] %v", err)
			}
		},
	})

	go func() {
		<-ctx.Done()
		eng.Quit()
	}()

	log.Printf("[Oxy] %d trails on %s, Space pauses, R resets, C toggles culling, Esc quits", cfg.TrailCount, trail.BackendNameWGPU)
	eng.Run()
	return sc.Release()
}

func newDemoCamera(aspect, radius float32) camera.Camera {
	return camera.NewCamera(
		camera.WithFov(float32(45.0*math.Pi/180.0)),
		camera.WithAspect(aspect),
		camera.WithNear(0.1),
		camera.WithFar(1000),
		camera.WithController(camera.NewOrbitController(
			camera.WithRadius(radius*3),
			camera.WithZoomSpeed(radius*0.25),
			camera.WithPanSpeed(radius*0.05),
			camera.WithElevation(0.5),
			camera.WithRadiusBounds(1, 500),
			camera.WithMouseSensitivity(0.005),
		)),
	)
}

// moveEmitters places the group's emitters on evenly phased orbits of the given radius,
// each bobbing at its own height.
func moveEmitters(g *trail.EmitterGroup, t, radius float32) {
	n := g.TrailCount()
	for i := range n {
		g.SetPosition(i, orbitPosition(i, n, t, radius))
	}
}

func orbitPosition(i, n int, t, radius float32) mgl32.Vec3 {
	phase := 2 * math.Pi * float64(i) / float64(max(n, 1))
	angle := float64(t) + phase
	return mgl32.Vec3{
		radius * float32(math.Cos(angle)),
		radius * 0.25 * float32(math.Sin(2*angle+phase)),
		radius * float32(math.Sin(angle)),
	}
}

type inputActions struct {
	togglePause   func()
	resetTrails   func()
	toggleCulling func()
}

// toggleCulling flips the visibility culler of a trail set. The change is applied between
// frames like a config reload.
func toggleCulling(sc scene.Scene, key string) error {
	set := sc.TrailSet(key)
	if set == nil {
		return fmt.Errorf("trail set %q not found", key)
	}
	cfg := set.Config()
	cfg.Culling = !cfg.Culling
	if err := sc.Reconfigure(key, cfg); err != nil {
		return err
	}
	log.Printf("[Oxy] Culling %t", cfg.Culling)
	return nil
}

// setupInput wires middle-mouse orbit, scroll zoom and WASD panning. Space pauses, R clears
// the emitter history, C toggles culling and Esc quits.
func setupInput(eng engine.Engine, cam camera.Camera, actions inputActions) {
	var dragging bool
	var lastX, lastY int32

	eng.Window().SetInputCallback(func(ev window.InputEvent) {
		ctrl := cam.Controller()
		switch ev.Kind {
		case window.InputKeyDown:
			switch ev.Key {
			case common.KeyEsc:
				eng.Quit()
			case common.KeySpace:
				actions.togglePause()
			case common.KeyR:
				actions.resetTrails()
			case common.KeyC:
				actions.toggleCulling()
			case common.KeyA:
				ctrl.Pan(-1, 0)
			case common.KeyD:
				ctrl.Pan(1, 0)
			case common.KeyW:
				ctrl.Pan(0, 1)
			case common.KeyS:
				ctrl.Pan(0, -1)
			}
		case window.InputButtonDown:
			if ev.Button == window.MouseButtonMiddle {
				dragging = true
				lastX, lastY = ev.X, ev.Y
			}
		case window.InputButtonUp:
			if ev.Button == window.MouseButtonMiddle {
				dragging = false
			}
		case window.InputMouseMove:
			if dragging {
				ctrl.Orbit(float32(ev.X-lastX), float32(ev.Y-lastY))
				lastX, lastY = ev.X, ev.Y
			}
		case window.InputScroll:
			ctrl.Zoom(ev.Delta)
		}
	})
}
