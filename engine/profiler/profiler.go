package profiler

import (
	"log"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval and mirrors them as gauges
// on the profiler's Prometheus registry.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	registry  *prometheus.Registry
	fps       prometheus.Gauge
	heapBytes prometheus.Gauge
	sysBytes  prometheus.Gauge
	gcPauseUs prometheus.Gauge
	frames    prometheus.Counter
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		frameCount:     0,
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
		registry:       prometheus.NewRegistry(),
	}
	for _, opt := range options {
		opt(p)
	}

	factory := promauto.With(p.registry)
	p.fps = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "oxy", Subsystem: "profiler", Name: "fps",
		Help: "Render frames per second over the last update interval.",
	})
	p.heapBytes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "oxy", Subsystem: "profiler", Name: "heap_bytes",
		Help: "Bytes of allocated heap objects.",
	})
	p.sysBytes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "oxy", Subsystem: "profiler", Name: "sys_bytes",
		Help: "Bytes of memory obtained from the OS.",
	})
	p.gcPauseUs = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "oxy", Subsystem: "profiler", Name: "gc_pause_max_microseconds",
		Help: "Longest GC pause since the previous update.",
	})
	p.frames = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "oxy", Subsystem: "profiler", Name: "frames_total",
		Help: "Render frames ticked.",
	})
	return p
}

// Registry returns the registry the profiler gauges are registered on. Other subsystems,
// such as trail metrics, may register on it to share one exposition endpoint.
//
// Returns:
//   - *prometheus.Registry: the profiler's registry
func (p *Profiler) Registry() *prometheus.Registry {
	return p.registry
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	p.frames.Inc()
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		fps := float64(p.frameCount) / elapsed.Seconds()

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		// Calculate allocation rate (MB/sec)
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// Calculate GC pause stats (last pause and max recent pause)
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			// PauseNs is a circular buffer of last 256 GC pauses
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			// Find max pause since last tick
			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

		p.fps.Set(fps)
		p.heapBytes.Set(float64(p.memStats.Alloc))
		p.sysBytes.Set(float64(p.memStats.Sys))
		p.gcPauseUs.Set(float64(maxPauseUs))

		p.frameCount = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
