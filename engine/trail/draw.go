package trail

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// BuildIndexPattern returns the quad-strip indices of one trail instance: the pair of
// triangles {0,1,2, 2,1,3} shifted by 2 for every segment between consecutive nodes.
//
// Parameters:
//   - nodesPerTrail: retained nodes per trail at this LOD
//
// Returns:
//   - []uint32: 6 * (nodesPerTrail - 1) indices, empty when nodesPerTrail < 2
func BuildIndexPattern(nodesPerTrail int) []uint32 {
	if nodesPerTrail < 2 {
		return []uint32{}
	}
	indices := make([]uint32, 0, (nodesPerTrail-1)*6)
	for i := range uint32(nodesPerTrail - 1) {
		base := i * 2
		indices = append(indices, base, base+1, base+2, base+2, base+1, base+3)
	}
	return indices
}

// DrawDriver owns the indexed indirect draw of one LOD: its index pattern, argument
// block and DrawParams uniform.
type DrawDriver struct {
	label      string
	material   string
	indexCount uint32

	indices Buffer
	args    Buffer
	params  Buffer
}

// NewDrawDriver allocates the draw resources of one LOD and uploads its static index pattern.
//
// Parameters:
//   - backend: the device backend
//   - label: debug label prefix
//   - material: render pipeline key used by the draw
//   - nodesPerTrail: retained nodes per trail at this LOD
//   - stereo: whether every trail is drawn once per eye
//
// Returns:
//   - *DrawDriver: the driver
//   - error: an error if allocation or upload failed
func NewDrawDriver(backend Backend, label, material string, nodesPerTrail int, stereo bool) (*DrawDriver, error) {
	pattern := BuildIndexPattern(nodesPerTrail)
	d := &DrawDriver{
		label:      label,
		material:   material,
		indexCount: uint32(len(pattern)),
	}

	if err := d.allocate(backend, pattern, nodesPerTrail, stereo); err != nil {
		_ = d.Release(backend)
		return nil, err
	}
	return d, nil
}

func (d *DrawDriver) allocate(backend Backend, pattern []uint32, nodesPerTrail int, stereo bool) error {
	var err error
	if d.indices, err = backend.CreateBuffer(d.label+"_indices", uint64(max(len(pattern)*4, 4)), BufferUsageIndex|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("draw %q: indices: %w", d.label, err)
	}
	if len(pattern) > 0 {
		if err = backend.WriteBuffer(d.indices, 0, uint32Bytes(pattern)); err != nil {
			return fmt.Errorf("draw %q: indices: %w", d.label, err)
		}
	}

	var ia GPUIndirectArgs
	if d.args, err = backend.CreateBuffer(d.label+"_args", uint64(ia.Size()), BufferUsageIndirect|BufferUsageStorage|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("draw %q: args: %w", d.label, err)
	}
	ia.IndexCount = d.indexCount
	if err = backend.WriteBuffer(d.args, 0, ia.Marshal()); err != nil {
		return fmt.Errorf("draw %q: args: %w", d.label, err)
	}

	dp := GPUDrawParams{VertexNumPerTrail: uint32(nodesPerTrail * 2), InstanceDivisor: 1}
	if stereo {
		dp.InstanceDivisor = 2
	}
	if d.params, err = backend.CreateBuffer(d.label+"_draw_params", uint64(dp.Size()), BufferUsageUniform|BufferUsageCopyDst); err != nil {
		return fmt.Errorf("draw %q: params: %w", d.label, err)
	}
	if err = backend.WriteBuffer(d.params, 0, dp.Marshal()); err != nil {
		return fmt.Errorf("draw %q: params: %w", d.label, err)
	}
	return nil
}

// Material returns the render pipeline key of the draw.
func (d *DrawDriver) Material() string { return d.material }

// IndexCount returns the number of indices per instance.
func (d *DrawDriver) IndexCount() uint32 { return d.indexCount }

// Args returns the DrawIndexedIndirect argument buffer.
func (d *DrawDriver) Args() Buffer { return d.args }

// Indices returns the index pattern buffer.
func (d *DrawDriver) Indices() Buffer { return d.indices }

// Params returns the DrawParams uniform buffer.
func (d *DrawDriver) Params() Buffer { return d.params }

// StageInstanceCount queues a host write of the full argument block with a fixed
// instance count. Only used when neither culling nor LOD produce a device-side count.
//
// Parameters:
//   - backend: the device backend
//   - instanceCount: instances to draw
//
// Returns:
//   - error: an error if the write failed
func (d *DrawDriver) StageInstanceCount(backend Backend, instanceCount uint32) error {
	ia := GPUIndirectArgs{IndexCount: d.indexCount, InstanceCount: instanceCount}
	if err := backend.WriteBuffer(d.args, 0, ia.Marshal()); err != nil {
		return fmt.Errorf("draw %q: instance count: %w", d.label, err)
	}
	return nil
}

// CopyInstanceCount copies a compacted list's count into the instance count of the args.
//
// Parameters:
//   - backend: the device backend
//   - list: the list whose count is drawn
//
// Returns:
//   - error: an error if the copy failed
func (d *DrawDriver) CopyInstanceCount(backend Backend, list *IndexList) error {
	if err := list.CopyCountTo(backend, d.args, IndirectInstanceCountOffset); err != nil {
		return fmt.Errorf("draw %q: %w", d.label, err)
	}
	return nil
}

// Multiply doubles the instance count in place for single-pass stereo.
//
// Parameters:
//   - backend: the device backend
//
// Returns:
//   - error: an error if the dispatch failed
func (d *DrawDriver) Multiply(backend Backend) error {
	bindings := []Binding{{Slot: MultiplyBindArgs, Buffer: d.args}}
	if err := backend.Dispatch(KernelArgsBufferMultiply, bindings, 1, 1, 1); err != nil {
		return fmt.Errorf("draw %q: multiply: %w", d.label, err)
	}
	return nil
}

// Draw records the indexed indirect draw over the given vertex buffer.
//
// Parameters:
//   - backend: the device backend
//   - vertices: the ribbon vertex storage buffer
//
// Returns:
//   - error: an error if the draw could not be recorded
func (d *DrawDriver) Draw(backend Backend, vertices Buffer) error {
	call := DrawCall{
		Material:   d.material,
		Indices:    d.indices,
		IndexCount: d.indexCount,
		Args:       d.args,
		Vertices:   vertices,
		Params:     d.params,
	}
	if err := backend.DrawIndirect(call); err != nil {
		return fmt.Errorf("draw %q: %w", d.label, err)
	}
	return nil
}

// Release frees the draw buffers.
//
// Parameters:
//   - backend: the device backend
//
// Returns:
//   - error: aggregated release errors
func (d *DrawDriver) Release(backend Backend) error {
	var errs *multierror.Error
	for _, buf := range []Buffer{d.indices, d.args, d.params} {
		if buf == nil {
			continue
		}
		if err := backend.ReleaseBuffer(buf); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	d.indices, d.args, d.params = nil, nil, nil
	return errs.ErrorOrNil()
}
