package trail

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Culler compacts the set of trails that should be shaded this frame into an IndexList.
type Culler interface {
	// Allocate creates the culler's device buffers for a store of trailCount trails.
	//
	// Parameters:
	//   - backend: the device backend
	//   - trailCount: the number of trails in the store
	//
	// Returns:
	//   - error: an error if allocation failed
	Allocate(backend Backend, trailCount int) error

	// Stage queues the frame's host writes: the cull uniform and the visible counter reset.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - trailWidth: the widest ribbon width, used as the plane margin
	//
	// Returns:
	//   - error: an error if the culler is not allocated or a write failed
	Stage(ctx *FrameContext, trailWidth float32) error

	// Dispatch runs the cull kernel and sizes the visible list's dispatch args.
	//
	// Parameters:
	//   - ctx: the frame context
	//
	// Returns:
	//   - error: an error if a dispatch failed
	Dispatch(ctx *FrameContext) error

	// Cull stages and dispatches in one call.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - trailWidth: the widest ribbon width
	//
	// Returns:
	//   - error: an error if staging or dispatch failed
	Cull(ctx *FrameContext, trailWidth float32) error

	// Visible returns the compacted list of visible trails.
	//
	// Returns:
	//   - *IndexList: the visible list, or nil before Allocate
	Visible() *IndexList

	// Release frees the culler's buffers. The culler can be allocated again afterwards.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error
}

type frustumCuller struct {
	mu *sync.Mutex

	backend    Backend
	trailCount int
	params     Buffer
	visible    *IndexList
}

var _ Culler = &frustumCuller{}

// NewFrustumCuller creates a culler that keeps trails whose head lies inside the four
// side planes of the view frustum, widened by half the ribbon width.
//
// Returns:
//   - Culler: the culler
func NewFrustumCuller() Culler {
	return &frustumCuller{mu: &sync.Mutex{}}
}

func (c *frustumCuller) Allocate(backend Backend, trailCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.visible != nil {
		return fmt.Errorf("culler: already allocated")
	}
	var cp GPUCullParams
	params, err := backend.CreateBuffer("trail_cull_params", uint64(cp.Size()), BufferUsageUniform|BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("culler: params: %w", err)
	}
	visible, err := NewIndexList(backend, "trail_visible", trailCount)
	if err != nil {
		_ = backend.ReleaseBuffer(params)
		return fmt.Errorf("culler: %w", err)
	}

	c.backend = backend
	c.trailCount = trailCount
	c.params = params
	c.visible = visible
	return nil
}

func (c *frustumCuller) Stage(ctx *FrameContext, trailWidth float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.visible == nil {
		return fmt.Errorf("culler: %w", ErrNotInitialized)
	}
	cp := GPUCullParams{
		Planes:     ctx.Frame.View.SidePlanes(),
		TrailWidth: trailWidth,
	}
	if err := ctx.Backend.WriteBuffer(c.params, 0, cp.Marshal()); err != nil {
		return fmt.Errorf("culler: params: %w", err)
	}
	if err := c.visible.StageReset(ctx.Backend); err != nil {
		return fmt.Errorf("culler: %w", err)
	}
	return nil
}

func (c *frustumCuller) Dispatch(ctx *FrameContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.visible == nil {
		return fmt.Errorf("culler: %w", ErrNotInitialized)
	}
	trails, err := ctx.Store.Trails()
	if err != nil {
		return fmt.Errorf("culler: %w", err)
	}
	nodes, err := ctx.Store.Nodes()
	if err != nil {
		return fmt.Errorf("culler: %w", err)
	}
	bindings := []Binding{
		{Slot: CullBindParams, Buffer: ctx.Params},
		{Slot: CullBindTrails, Buffer: trails},
		{Slot: CullBindNodes, Buffer: nodes},
		{Slot: CullBindCull, Buffer: c.params},
		{Slot: CullBindVisible, Buffer: c.visible.Buffer()},
	}
	if err := ctx.Backend.Dispatch(KernelUpdateTrailIdxBuffer, bindings, workgroupsFor(uint32(c.trailCount)), 1, 1); err != nil {
		return fmt.Errorf("culler: %w", err)
	}
	return c.visible.DispatchCalcArgs(ctx.Backend)
}

func (c *frustumCuller) Cull(ctx *FrameContext, trailWidth float32) error {
	if err := c.Stage(ctx, trailWidth); err != nil {
		return err
	}
	return c.Dispatch(ctx)
}

func (c *frustumCuller) Visible() *IndexList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

func (c *frustumCuller) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs *multierror.Error
	if c.params != nil {
		if err := c.backend.ReleaseBuffer(c.params); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if c.visible != nil {
		if err := c.visible.Release(c.backend); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	c.params = nil
	c.visible = nil
	return errs.ErrorOrNil()
}
