package trail

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// AppendEngine uploads a frame's samples and runs AppendNode, one invocation per trail.
// Each trail writes only its own ring slots, so no two invocations touch the same node.
type AppendEngine interface {
	// Stage uploads a batch. It returns false without writing anything when the batch is empty.
	//
	// Parameters:
	//   - batch: the frame's samples
	//
	// Returns:
	//   - bool: true if samples were staged and Dispatch should run
	//   - error: an error if the batch does not match the store or the upload failed
	Stage(batch *Batch) (bool, error)

	// Dispatch runs AppendNode over the staged batch.
	//
	// Parameters:
	//   - params: the frame's TrailParams uniform
	//
	// Returns:
	//   - error: an error if the dispatch failed
	Dispatch(params Buffer) error

	// Append stages a batch and dispatches it immediately.
	//
	// Parameters:
	//   - batch: the frame's samples
	//   - params: the frame's TrailParams uniform
	//
	// Returns:
	//   - error: an error if staging or dispatch failed
	Append(batch *Batch, params Buffer) error

	// InputCountMax returns the per-trail sample capacity of the input buffers.
	//
	// Returns:
	//   - int: samples per trail per frame
	InputCountMax() int

	// Release frees the input buffers.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error
}

type appendEngine struct {
	backend       Backend
	store         Store
	inputCountMax int

	inputNodes  Buffer
	inputCounts Buffer
}

var _ AppendEngine = &appendEngine{}

// NewAppendEngine allocates input buffers sized for trailCount * inputCountMax samples.
//
// Parameters:
//   - backend: the device backend
//   - store: an initialized trail store
//   - inputCountMax: maximum samples per trail per frame
//
// Returns:
//   - AppendEngine: the engine
//   - error: an error if the store is not initialized or allocation failed
func NewAppendEngine(backend Backend, store Store, inputCountMax int) (AppendEngine, error) {
	if inputCountMax <= 0 {
		return nil, fmt.Errorf("append: input count max %d must be positive: %w", inputCountMax, ErrInvalidConfig)
	}
	if !store.Initialized() {
		return nil, fmt.Errorf("append: %w", ErrNotInitialized)
	}
	trailCount := store.TrailCount()

	var node GPUNode
	inputNodes, err := backend.CreateBuffer("trail_input_nodes", uint64(trailCount*inputCountMax*node.Size()), BufferUsageStorage|BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("append: input nodes: %w", err)
	}
	inputCounts, err := backend.CreateBuffer("trail_input_counts", uint64(trailCount*4), BufferUsageStorage|BufferUsageCopyDst)
	if err != nil {
		_ = backend.ReleaseBuffer(inputNodes)
		return nil, fmt.Errorf("append: input counts: %w", err)
	}

	return &appendEngine{
		backend:       backend,
		store:         store,
		inputCountMax: inputCountMax,
		inputNodes:    inputNodes,
		inputCounts:   inputCounts,
	}, nil
}

func (a *appendEngine) Stage(batch *Batch) (bool, error) {
	if batch == nil || batch.Count() == 0 {
		return false, nil
	}
	if batch.TrailCount() != a.store.TrailCount() || batch.InputCountMax() != a.inputCountMax {
		return false, fmt.Errorf("append: batch is %dx%d, engine expects %dx%d",
			batch.TrailCount(), batch.InputCountMax(), a.store.TrailCount(), a.inputCountMax)
	}
	if err := a.backend.WriteBuffer(a.inputNodes, 0, batch.nodeBytes()); err != nil {
		return false, fmt.Errorf("append: upload samples: %w", err)
	}
	if err := a.backend.WriteBuffer(a.inputCounts, 0, batch.countBytes()); err != nil {
		return false, fmt.Errorf("append: upload counts: %w", err)
	}
	return true, nil
}

func (a *appendEngine) Dispatch(params Buffer) error {
	trails, err := a.store.Trails()
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}
	nodes, err := a.store.Nodes()
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}
	bindings := []Binding{
		{Slot: AppendBindParams, Buffer: params},
		{Slot: AppendBindTrails, Buffer: trails},
		{Slot: AppendBindNodes, Buffer: nodes},
		{Slot: AppendBindInputNodes, Buffer: a.inputNodes},
		{Slot: AppendBindInputCounts, Buffer: a.inputCounts},
	}
	groups := workgroupsFor(uint32(a.store.TrailCount()))
	if err := a.backend.Dispatch(KernelAppendNode, bindings, groups, 1, 1); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}

func (a *appendEngine) Append(batch *Batch, params Buffer) error {
	ok, err := a.Stage(batch)
	if err != nil || !ok {
		return err
	}
	return a.Dispatch(params)
}

func (a *appendEngine) InputCountMax() int {
	return a.inputCountMax
}

func (a *appendEngine) Release() error {
	var errs *multierror.Error
	for _, buf := range []Buffer{a.inputNodes, a.inputCounts} {
		if buf == nil {
			continue
		}
		if err := a.backend.ReleaseBuffer(buf); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	a.inputNodes, a.inputCounts = nil, nil
	return errs.ErrorOrNil()
}
