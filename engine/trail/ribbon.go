package trail

import (
	"fmt"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hashicorp/go-multierror"
)

// Appearance is the width and color ramp shared by every LOD of a trail set.
// Start values apply to the newest node and end values to the oldest retained node.
type Appearance struct {
	StartWidth float32
	EndWidth   float32
	StartColor mgl32.Vec4
	EndColor   mgl32.Vec4
}

// MaxWidth returns the widest ribbon width, used as the culling margin.
func (a Appearance) MaxWidth() float32 {
	return max(a.StartWidth, a.EndWidth)
}

// RibbonGenerator expands the retained nodes of one LOD into camera-facing ribbon
// vertices and owns the indirect draw that renders them.
type RibbonGenerator interface {
	// Lod returns the bucket index this generator serves.
	//
	// Returns:
	//   - int: the LOD index
	Lod() int

	// NodeStep returns the effective node stride after validation.
	//
	// Returns:
	//   - int: keep one node in every NodeStep
	NodeStep() int

	// NodesPerTrailWithLod returns the number of retained node slots per trail.
	//
	// Returns:
	//   - int: nodesPerTrail / NodeStep
	NodesPerTrailWithLod() int

	// Stage queues the frame's RibbonParams write.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - look: the width and color ramp
	//
	// Returns:
	//   - error: an error if the generator is released or the write failed
	Stage(ctx *FrameContext, look Appearance) error

	// Generate runs UpdateVertex over every trail in the list, sized by the list's dispatch args.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - list: the trails of this LOD
	//
	// Returns:
	//   - error: an error if the dispatch failed
	Generate(ctx *FrameContext, list *IndexList) error

	// Vertices returns the ribbon vertex buffer.
	//
	// Returns:
	//   - Buffer: the vertex storage buffer
	Vertices() Buffer

	// Driver returns the draw driver of this LOD.
	//
	// Returns:
	//   - *DrawDriver: the draw driver
	Driver() *DrawDriver

	// Draw records this LOD's indirect draw.
	//
	// Parameters:
	//   - backend: the device backend
	//
	// Returns:
	//   - error: an error if the draw could not be recorded
	Draw(backend Backend) error

	// Release frees the generator's buffers.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error
}

// RibbonGeneratorFactory creates the generator of one LOD.
type RibbonGeneratorFactory func(backend Backend, store Store, lod int, setting LodSetting, stereo bool) (RibbonGenerator, error)

type ribbonGenerator struct {
	mu *sync.Mutex

	backend  Backend
	lod      int
	step     int
	perTrail int

	params   Buffer
	vertices Buffer
	driver   *DrawDriver
}

var _ RibbonGenerator = &ribbonGenerator{}

// NodeStepFor validates a node stride against the number of nodes per trail. A stride
// outside 0 < step < nodesPerTrail is logged and replaced by 1, except a stride of 1 on
// single-node trails.
//
// Parameters:
//   - step: the requested stride
//   - nodesPerTrail: nodes per trail in the store
//
// Returns:
//   - int: the stride to use
func NodeStepFor(step, nodesPerTrail int) int {
	if step == 1 && nodesPerTrail == 1 {
		return 1
	}
	if step <= 0 || step >= nodesPerTrail {
		log.Printf("[Trail] LOD node step %d is out of range for %d nodes per trail, using 1", step, nodesPerTrail)
		return 1
	}
	return step
}

// NewRibbonGenerator allocates the vertex buffer, RibbonParams uniform and draw
// resources of one LOD.
//
// Parameters:
//   - backend: the device backend
//   - store: an initialized trail store
//   - lod: the bucket index
//   - setting: the LOD level
//   - stereo: whether every trail is drawn once per eye
//
// Returns:
//   - RibbonGenerator: the generator
//   - error: an error if the store is not initialized or allocation failed
func NewRibbonGenerator(backend Backend, store Store, lod int, setting LodSetting, stereo bool) (RibbonGenerator, error) {
	if !store.Initialized() {
		return nil, fmt.Errorf("ribbon %d: %w", lod, ErrNotInitialized)
	}
	nodesPerTrail := store.NodesPerTrail()
	step := NodeStepFor(setting.NodeStep, nodesPerTrail)
	g := &ribbonGenerator{
		mu:       &sync.Mutex{},
		backend:  backend,
		lod:      lod,
		step:     step,
		perTrail: max(nodesPerTrail/step, 1),
	}

	if err := g.allocate(store.TrailCount(), setting.Material, stereo); err != nil {
		_ = g.Release()
		return nil, err
	}
	return g, nil
}

func (g *ribbonGenerator) allocate(trailCount int, material string, stereo bool) error {
	var err error
	var rp GPURibbonParams
	if g.params, err = g.backend.CreateBuffer(fmt.Sprintf("trail_ribbon_params_%d", g.lod), uint64(rp.Size()), BufferUsageUniform|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("ribbon %d: params: %w", g.lod, err)
	}
	var v GPUVertex
	size := uint64(trailCount * g.perTrail * 2 * v.Size())
	if g.vertices, err = g.backend.CreateBuffer(fmt.Sprintf("trail_vertices_%d", g.lod), size, BufferUsageStorage); err != nil {
		return fmt.Errorf("ribbon %d: vertices: %w", g.lod, err)
	}
	if g.driver, err = NewDrawDriver(g.backend, fmt.Sprintf("trail_lod_%d", g.lod), material, g.perTrail, stereo); err != nil {
		return fmt.Errorf("ribbon %d: %w", g.lod, err)
	}
	return nil
}

func (g *ribbonGenerator) Lod() int {
	return g.lod
}

func (g *ribbonGenerator) NodeStep() int {
	return g.step
}

func (g *ribbonGenerator) NodesPerTrailWithLod() int {
	return g.perTrail
}

func (g *ribbonGenerator) Stage(ctx *FrameContext, look Appearance) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.params == nil {
		return fmt.Errorf("ribbon %d: %w", g.lod, ErrReleased)
	}
	rp := GPURibbonParams{
		CameraPos:            ctx.Frame.View.Position,
		StartWidth:           look.StartWidth,
		ToCameraDir:          ctx.Frame.View.ToCameraDir(),
		EndWidth:             look.EndWidth,
		StartColor:           look.StartColor,
		EndColor:             look.EndColor,
		LodNodeStep:          uint32(g.step),
		NodesPerTrailWithLod: uint32(g.perTrail),
	}
	if err := ctx.Backend.WriteBuffer(g.params, 0, rp.Marshal()); err != nil {
		return fmt.Errorf("ribbon %d: params: %w", g.lod, err)
	}
	return nil
}

func (g *ribbonGenerator) Generate(ctx *FrameContext, list *IndexList) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.params == nil {
		return fmt.Errorf("ribbon %d: %w", g.lod, ErrReleased)
	}
	trails, err := ctx.Store.Trails()
	if err != nil {
		return fmt.Errorf("ribbon %d: %w", g.lod, err)
	}
	nodes, err := ctx.Store.Nodes()
	if err != nil {
		return fmt.Errorf("ribbon %d: %w", g.lod, err)
	}
	bindings := []Binding{
		{Slot: VertexBindParams, Buffer: ctx.Params},
		{Slot: VertexBindTrails, Buffer: trails},
		{Slot: VertexBindNodes, Buffer: nodes},
		{Slot: VertexBindRibbon, Buffer: g.params},
		{Slot: VertexBindList, Buffer: list.Buffer()},
		{Slot: VertexBindVertices, Buffer: g.vertices},
	}
	if err := ctx.Backend.DispatchIndirect(KernelUpdateVertex, bindings, list.DispatchArgs(), 0); err != nil {
		return fmt.Errorf("ribbon %d: %w", g.lod, err)
	}
	return nil
}

func (g *ribbonGenerator) Vertices() Buffer {
	return g.vertices
}

func (g *ribbonGenerator) Driver() *DrawDriver {
	return g.driver
}

func (g *ribbonGenerator) Draw(backend Backend) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.driver == nil {
		return fmt.Errorf("ribbon %d: %w", g.lod, ErrReleased)
	}
	return g.driver.Draw(backend, g.vertices)
}

func (g *ribbonGenerator) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs *multierror.Error
	for _, buf := range []Buffer{g.params, g.vertices} {
		if buf == nil {
			continue
		}
		if err := g.backend.ReleaseBuffer(buf); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if g.driver != nil {
		if err := g.driver.Release(g.backend); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	g.params, g.vertices, g.driver = nil, nil, nil
	return errs.ErrorOrNil()
}
