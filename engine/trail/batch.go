package trail

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Batch collects one frame of input samples for every trail. Sample i of trail t is
// stored at slot i*trailCount + t, the layout AppendNode reads. A Batch is not safe for
// concurrent use.
type Batch struct {
	trailCount    int
	inputCountMax int
	defaultColor  mgl32.Vec4

	nodes  []GPUNode
	counts []uint32
	total  int
}

// NewBatch creates an empty batch.
//
// Parameters:
//   - trailCount: number of trails in the store
//   - inputCountMax: maximum samples per trail per frame
//   - options: functional options to configure the batch
//
// Returns:
//   - *Batch: the empty batch
func NewBatch(trailCount, inputCountMax int, options ...BatchBuilderOption) *Batch {
	b := &Batch{
		trailCount:    max(trailCount, 0),
		inputCountMax: max(inputCountMax, 0),
		defaultColor:  mgl32.Vec4{1, 1, 1, 1},
	}
	for _, option := range options {
		option(b)
	}
	b.nodes = make([]GPUNode, b.trailCount*b.inputCountMax)
	b.counts = make([]uint32, b.trailCount)
	return b
}

// Add appends a sample to a trail using the batch's default color.
//
// Parameters:
//   - trail: trail index
//   - position: world-space sample position
//
// Returns:
//   - error: ErrInputOverflow if the trail is full, or an error if trail is out of range
func (b *Batch) Add(trail int, position mgl32.Vec3) error {
	return b.AddColored(trail, position, b.defaultColor)
}

// AddColored appends a colored sample to a trail.
//
// Parameters:
//   - trail: trail index
//   - position: world-space sample position
//   - color: RGBA sample color
//
// Returns:
//   - error: ErrInputOverflow if the trail is full, or an error if trail is out of range
func (b *Batch) AddColored(trail int, position mgl32.Vec3, color mgl32.Vec4) error {
	if trail < 0 || trail >= b.trailCount {
		return fmt.Errorf("batch: trail %d out of range [0, %d)", trail, b.trailCount)
	}
	n := int(b.counts[trail])
	if n >= b.inputCountMax {
		return fmt.Errorf("batch: trail %d already holds %d samples: %w", trail, n, ErrInputOverflow)
	}
	b.nodes[n*b.trailCount+trail] = GPUNode{Position: position, Color: color}
	b.counts[trail]++
	b.total++
	return nil
}

// Count returns the number of samples across all trails.
func (b *Batch) Count() int {
	return b.total
}

// TrailSamples returns the number of samples queued for a trail.
func (b *Batch) TrailSamples(trail int) int {
	if trail < 0 || trail >= b.trailCount {
		return 0
	}
	return int(b.counts[trail])
}

// TrailCount returns the number of trails the batch was sized for.
func (b *Batch) TrailCount() int {
	return b.trailCount
}

// InputCountMax returns the per-trail sample capacity.
func (b *Batch) InputCountMax() int {
	return b.inputCountMax
}

// Reset clears every queued sample while keeping the allocation.
func (b *Batch) Reset() {
	clear(b.nodes)
	clear(b.counts)
	b.total = 0
}

// nodeBytes serializes the sample grid in AppendNode input layout.
func (b *Batch) nodeBytes() []byte {
	buf := make([]byte, 0, len(b.nodes)*32)
	for i := range b.nodes {
		buf = append(buf, b.nodes[i].Marshal()...)
	}
	return buf
}

// countBytes serializes the per-trail sample counts.
func (b *Batch) countBytes() []byte {
	return uint32Bytes(b.counts)
}

func uint32Bytes(values []uint32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
