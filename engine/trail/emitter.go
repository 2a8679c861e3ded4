package trail

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Emitter is the input side of the trail pipeline. Collect drains the samples gathered
// since the previous call; a count of 0 means the frame skips the append step.
type Emitter interface {
	// Collect drains the pending samples.
	//
	// Returns:
	//   - int: the number of samples in the batch
	//   - *Batch: the samples, or nil when the count is 0
	Collect() (int, *Batch)
}

// ResizableEmitter is an Emitter whose batches follow the store's dimensions. Owners call
// Resize when the trail set is reconfigured.
type ResizableEmitter interface {
	Emitter

	// Resize changes the batch dimensions produced by later Collect calls.
	//
	// Parameters:
	//   - trailCount: number of trails in the store
	//   - inputCountMax: maximum samples per trail per frame
	Resize(trailCount, inputCountMax int)
}

type emitterHistory struct {
	prev1, prev0 mgl32.Vec3
	known        int
	pending      bool
	pos          mgl32.Vec3
}

// EmitterGroup feeds one emitter position per trail. When a trail has two previous
// positions, the segment to the new position is filled with inputCountMax Catmull-Rom
// samples; otherwise the position is emitted as a single sample.
type EmitterGroup struct {
	mu *sync.Mutex

	trailCount    int
	inputCountMax int
	color         mgl32.Vec4
	history       []emitterHistory
}

var _ ResizableEmitter = &EmitterGroup{}

// NewEmitterGroup creates a group for trailCount emitters.
//
// Parameters:
//   - trailCount: number of trails, one emitter each
//   - inputCountMax: maximum samples per trail per frame
//   - options: functional options to configure the group
//
// Returns:
//   - *EmitterGroup: the group
func NewEmitterGroup(trailCount, inputCountMax int, options ...EmitterBuilderOption) *EmitterGroup {
	o := newEmitterOptions(options)
	return &EmitterGroup{
		mu:            &sync.Mutex{},
		trailCount:    trailCount,
		inputCountMax: inputCountMax,
		color:         o.color,
		history:       make([]emitterHistory, max(trailCount, 0)),
	}
}

// SetPosition records the latest position of emitter i. Later calls before the next
// Collect replace earlier ones.
//
// Parameters:
//   - i: the emitter (trail) index; out of range indices are ignored
//   - pos: world-space position
func (g *EmitterGroup) SetPosition(i int, pos mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if i < 0 || i >= len(g.history) {
		return
	}
	g.history[i].pos = pos
	g.history[i].pending = true
}

// TrailCount returns the number of emitters in the group.
func (g *EmitterGroup) TrailCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trailCount
}

// Resize keeps the history of emitters below the new trail count and drops the rest.
func (g *EmitterGroup) Resize(trailCount, inputCountMax int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	trailCount = max(trailCount, 0)
	history := make([]emitterHistory, trailCount)
	copy(history, g.history)
	g.history = history
	g.trailCount = trailCount
	g.inputCountMax = inputCountMax
}

// Reset forgets every emitter's history.
func (g *EmitterGroup) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.history)
}

func (g *EmitterGroup) Collect() (int, *Batch) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var batch *Batch
	for i := range g.history {
		h := &g.history[i]
		if !h.pending {
			continue
		}
		if batch == nil {
			batch = NewBatch(g.trailCount, g.inputCountMax, WithDefaultColor(g.color))
		}

		samples := []mgl32.Vec3{h.pos}
		if h.known >= 2 {
			samples = Interpolate(g.inputCountMax, h.prev1, h.prev0, h.pos)
		}
		for _, s := range samples {
			if err := batch.Add(i, s); err != nil {
				break
			}
		}

		h.prev1, h.prev0 = h.prev0, h.pos
		h.known = min(h.known+1, 2)
		h.pending = false
	}
	if batch == nil {
		return 0, nil
	}
	return batch.Count(), batch
}

// LinearEmitter feeds a single trail. Each Collect emits
// clamp(floor(elapsed * inputRate), 1, inputCountMax) samples on the line from the
// previous sample to the current position, dropping samples closer than the minimum
// node distance.
type LinearEmitter struct {
	mu *sync.Mutex

	inputCountMax   int
	inputRate       float32
	minNodeDistance float32
	color           mgl32.Vec4

	elapsed float32
	pos     mgl32.Vec3
	pending bool
	last    mgl32.Vec3
	hasLast bool
}

var _ ResizableEmitter = &LinearEmitter{}

// NewLinearEmitter creates an emitter for a one-trail store.
//
// Parameters:
//   - inputCountMax: maximum samples per frame
//   - options: functional options to configure the emitter
//
// Returns:
//   - *LinearEmitter: the emitter
func NewLinearEmitter(inputCountMax int, options ...EmitterBuilderOption) *LinearEmitter {
	o := newEmitterOptions(options)
	return &LinearEmitter{
		mu:              &sync.Mutex{},
		inputCountMax:   inputCountMax,
		inputRate:       o.inputRate,
		minNodeDistance: o.minNodeDistance,
		color:           o.color,
	}
}

// Move records the emitter position after dt seconds.
//
// Parameters:
//   - pos: world-space position
//   - dt: seconds since the previous Move
func (e *LinearEmitter) Move(pos mgl32.Vec3, dt float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pos = pos
	e.elapsed += max(dt, 0)
	e.pending = true
}

// Resize changes the per-frame sample limit. A LinearEmitter always feeds one trail, so
// trailCount is ignored.
func (e *LinearEmitter) Resize(_, inputCountMax int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputCountMax = inputCountMax
}

func (e *LinearEmitter) Collect() (int, *Batch) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.pending {
		return 0, nil
	}
	e.pending = false
	elapsed := e.elapsed
	e.elapsed = 0

	samples := []mgl32.Vec3{e.pos}
	if e.hasLast {
		n := int(math32.Floor(elapsed * e.inputRate))
		n = min(max(n, 1), e.inputCountMax)
		samples = InterpolateLinear(n, e.last, e.pos)
	}

	batch := NewBatch(1, e.inputCountMax, WithDefaultColor(e.color))
	for _, s := range samples {
		if e.hasLast && s.Sub(e.last).Len() < e.minNodeDistance {
			continue
		}
		if err := batch.Add(0, s); err != nil {
			break
		}
		e.last = s
		e.hasLast = true
	}
	if batch.Count() == 0 {
		return 0, nil
	}
	return batch.Count(), batch
}
