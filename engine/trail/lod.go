package trail

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/chewxy/math32"
	"github.com/hashicorp/go-multierror"
)

// LodSetting describes one level of detail.
type LodSetting struct {
	// Distance is the exclusive upper bound of the bucket. The farthest bucket also
	// takes every trail beyond it.
	Distance float32 `toml:"distance" yaml:"distance"`

	// NodeStep keeps one node in every NodeStep when building the ribbon.
	NodeStep int `toml:"node_step" yaml:"node_step"`

	// Material is the render pipeline key of the bucket. Empty falls back to the default.
	Material string `toml:"material,omitempty" yaml:"material,omitempty"`
}

// LodClassifier partitions a source set of trails into per-LOD compacted lists by the
// distance from the camera to each trail head.
type LodClassifier interface {
	// Settings returns the levels sorted by ascending distance. Bucket i uses Settings()[i].
	//
	// Returns:
	//   - []LodSetting: a copy of the sorted settings
	Settings() []LodSetting

	// Allocate creates the classifier's device buffers and uploads the static distance table.
	//
	// Parameters:
	//   - backend: the device backend
	//   - trailCount: the number of trails in the store
	//
	// Returns:
	//   - error: an error if there are no settings, a distance is invalid, or allocation failed
	Allocate(backend Backend, trailCount int) error

	// Stage queues the frame's host writes: the LOD uniform and every bucket counter reset.
	//
	// Parameters:
	//   - ctx: the frame context
	//
	// Returns:
	//   - error: an error if the classifier is not allocated or a write failed
	Stage(ctx *FrameContext) error

	// Dispatch assigns each source trail a bucket, then compacts every bucket list.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - source: the culled or identity list to classify
	//
	// Returns:
	//   - error: an error if a dispatch failed
	Dispatch(ctx *FrameContext, source *IndexList) error

	// Classify stages and dispatches in one call.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - source: the culled or identity list to classify
	//
	// Returns:
	//   - error: an error if staging or dispatch failed
	Classify(ctx *FrameContext, source *IndexList) error

	// BucketCount returns the number of buckets.
	//
	// Returns:
	//   - int: the number of LOD levels
	BucketCount() int

	// Bucket returns the compacted list of bucket i.
	//
	// Parameters:
	//   - i: the bucket index
	//
	// Returns:
	//   - *IndexList: the bucket list, or nil if i is out of range or the classifier is not allocated
	Bucket(i int) *IndexList

	// Release frees the classifier's buffers. The classifier can be allocated again afterwards.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error
}

type lodClassifier struct {
	mu *sync.Mutex

	settings []LodSetting

	backend      Backend
	trailCount   int
	params       Buffer
	distances    Buffer
	trailLod     Buffer
	bucketParams []Buffer
	buckets      []*IndexList
}

var _ LodClassifier = &lodClassifier{}

// NewLodClassifier creates a classifier for the given levels. Levels are sorted by
// ascending distance, so bucket 0 is always the nearest and densest.
//
// Parameters:
//   - settings: the LOD levels
//
// Returns:
//   - LodClassifier: the classifier
func NewLodClassifier(settings ...LodSetting) LodClassifier {
	sorted := slices.Clone(settings)
	slices.SortStableFunc(sorted, func(a, b LodSetting) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return &lodClassifier{
		mu:       &sync.Mutex{},
		settings: sorted,
	}
}

func (l *lodClassifier) Settings() []LodSetting {
	return slices.Clone(l.settings)
}

func (l *lodClassifier) BucketCount() int {
	return len(l.settings)
}

func (l *lodClassifier) Allocate(backend Backend, trailCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.trailLod != nil {
		return fmt.Errorf("lod: already allocated")
	}
	if len(l.settings) == 0 {
		return fmt.Errorf("lod: no levels: %w", ErrInvalidConfig)
	}
	distances := make([]float32, len(l.settings))
	for i, s := range l.settings {
		if math32.IsNaN(s.Distance) || s.Distance < 0 {
			return fmt.Errorf("lod: level %d distance %v: %w", i, s.Distance, ErrInvalidConfig)
		}
		distances[i] = s.Distance
	}

	l.backend = backend
	l.trailCount = trailCount
	if err := l.allocateLocked(distances); err != nil {
		_ = l.releaseLocked()
		return err
	}
	return nil
}

func (l *lodClassifier) allocateLocked(distances []float32) error {
	var err error
	var lp GPULodParams
	if l.params, err = l.backend.CreateBuffer("trail_lod_params", uint64(lp.Size()), BufferUsageUniform|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("lod: params: %w", err)
	}
	if l.distances, err = l.backend.CreateBuffer("trail_lod_distances", uint64(len(distances)*4), BufferUsageStorage|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("lod: distances: %w", err)
	}
	if err = l.backend.WriteBuffer(l.distances, 0, float32Bytes(distances)); err != nil {
		return fmt.Errorf("lod: distances: %w", err)
	}
	if l.trailLod, err = l.backend.CreateBuffer("trail_lod", uint64(l.trailCount*4), BufferUsageStorage); err != nil {
		return fmt.Errorf("lod: trail lod: %w", err)
	}

	for i := range l.settings {
		var bp GPUBucketParams
		buf, err := l.backend.CreateBuffer(fmt.Sprintf("trail_bucket_params_%d", i), uint64(bp.Size()), BufferUsageUniform|BufferUsageCopyDst)
		if err != nil {
			return fmt.Errorf("lod: bucket %d params: %w", i, err)
		}
		l.bucketParams = append(l.bucketParams, buf)
		bp.Lod = uint32(i)
		if err := l.backend.WriteBuffer(buf, 0, bp.Marshal()); err != nil {
			return fmt.Errorf("lod: bucket %d params: %w", i, err)
		}

		list, err := NewIndexList(l.backend, fmt.Sprintf("trail_lod_bucket_%d", i), l.trailCount)
		if err != nil {
			return fmt.Errorf("lod: bucket %d: %w", i, err)
		}
		l.buckets = append(l.buckets, list)
	}
	return nil
}

func (l *lodClassifier) Stage(ctx *FrameContext) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.trailLod == nil {
		return fmt.Errorf("lod: %w", ErrNotInitialized)
	}
	lp := GPULodParams{
		CameraPos: ctx.Frame.View.Position,
		LodCount:  uint32(len(l.settings)),
	}
	if err := ctx.Backend.WriteBuffer(l.params, 0, lp.Marshal()); err != nil {
		return fmt.Errorf("lod: params: %w", err)
	}
	for i, bucket := range l.buckets {
		if err := bucket.StageReset(ctx.Backend); err != nil {
			return fmt.Errorf("lod: bucket %d: %w", i, err)
		}
	}
	return nil
}

func (l *lodClassifier) Dispatch(ctx *FrameContext, source *IndexList) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.trailLod == nil {
		return fmt.Errorf("lod: %w", ErrNotInitialized)
	}
	if source == nil {
		return fmt.Errorf("lod: nil source list")
	}
	trails, err := ctx.Store.Trails()
	if err != nil {
		return fmt.Errorf("lod: %w", err)
	}
	nodes, err := ctx.Store.Nodes()
	if err != nil {
		return fmt.Errorf("lod: %w", err)
	}

	classify := []Binding{
		{Slot: LodBindParams, Buffer: ctx.Params},
		{Slot: LodBindTrails, Buffer: trails},
		{Slot: LodBindNodes, Buffer: nodes},
		{Slot: LodBindLod, Buffer: l.params},
		{Slot: LodBindDistances, Buffer: l.distances},
		{Slot: LodBindSource, Buffer: source.Buffer()},
		{Slot: LodBindTrailLod, Buffer: l.trailLod},
	}
	if err := ctx.Backend.DispatchIndirect(KernelUpdateTrailLodBuffer, classify, source.DispatchArgs(), 0); err != nil {
		return fmt.Errorf("lod: classify: %w", err)
	}

	for i, bucket := range l.buckets {
		partition := []Binding{
			{Slot: BucketBindParams, Buffer: l.bucketParams[i]},
			{Slot: BucketBindSource, Buffer: source.Buffer()},
			{Slot: BucketBindTrailLod, Buffer: l.trailLod},
			{Slot: BucketBindList, Buffer: bucket.Buffer()},
		}
		if err := ctx.Backend.DispatchIndirect(KernelUpdateTrailIndexBuffer, partition, source.DispatchArgs(), 0); err != nil {
			return fmt.Errorf("lod: bucket %d: %w", i, err)
		}
		if err := bucket.DispatchCalcArgs(ctx.Backend); err != nil {
			return fmt.Errorf("lod: bucket %d: %w", i, err)
		}
	}
	return nil
}

func (l *lodClassifier) Classify(ctx *FrameContext, source *IndexList) error {
	if err := l.Stage(ctx); err != nil {
		return err
	}
	return l.Dispatch(ctx, source)
}

func (l *lodClassifier) Bucket(i int) *IndexList {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i < 0 || i >= len(l.buckets) {
		return nil
	}
	return l.buckets[i]
}

func (l *lodClassifier) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releaseLocked()
}

func (l *lodClassifier) releaseLocked() error {
	var errs *multierror.Error
	for _, buf := range append([]Buffer{l.params, l.distances, l.trailLod}, l.bucketParams...) {
		if buf == nil {
			continue
		}
		if err := l.backend.ReleaseBuffer(buf); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, bucket := range l.buckets {
		if err := bucket.Release(l.backend); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	l.params, l.distances, l.trailLod = nil, nil, nil
	l.bucketParams = nil
	l.buckets = nil
	return errs.ErrorOrNil()
}
