package trail

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// IndexList is a compacted list of trail indices built by atomic append on the device,
// paired with the DispatchArgs buffer that sizes kernels run over it. The count word at
// byte offset 0 is the only way the list length reaches the draw stage.
type IndexList struct {
	label    string
	capacity uint32
	list     Buffer
	args     Buffer
}

// NewIndexList allocates a list able to hold capacity indices.
//
// Parameters:
//   - backend: the device backend
//   - label: debug label prefix
//   - capacity: maximum number of indices
//
// Returns:
//   - *IndexList: the allocated list
//   - error: an error if allocation failed
func NewIndexList(backend Backend, label string, capacity int) (*IndexList, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("index list %q: capacity %d must be positive", label, capacity)
	}
	list, err := backend.CreateBuffer(label, uint64(IndexListHeaderSize+capacity*4), BufferUsageStorage|BufferUsageCopySrc|BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("index list %q: %w", label, err)
	}
	var da GPUDispatchArgs
	args, err := backend.CreateBuffer(label+"_dispatch_args", uint64(da.Size()), BufferUsageStorage|BufferUsageIndirect|BufferUsageCopyDst)
	if err != nil {
		_ = backend.ReleaseBuffer(list)
		return nil, fmt.Errorf("index list %q: dispatch args: %w", label, err)
	}
	return &IndexList{label: label, capacity: uint32(capacity), list: list, args: args}, nil
}

// Label returns the list's debug label.
func (l *IndexList) Label() string { return l.label }

// Capacity returns the maximum number of indices.
func (l *IndexList) Capacity() uint32 { return l.capacity }

// Buffer returns the TrailIndexList buffer.
func (l *IndexList) Buffer() Buffer { return l.list }

// DispatchArgs returns the buffer CalcArgsBufferForCS writes for this list.
func (l *IndexList) DispatchArgs() Buffer { return l.args }

// StageReset queues a host write zeroing the count word.
//
// Parameters:
//   - backend: the device backend
//
// Returns:
//   - error: an error if the write failed
func (l *IndexList) StageReset(backend Backend) error {
	if err := backend.WriteBuffer(l.list, 0, make([]byte, IndexListHeaderSize)); err != nil {
		return fmt.Errorf("index list %q: reset: %w", l.label, err)
	}
	return nil
}

// StageIdentity fills the list with 0..n-1 and sizes its dispatch args to cover n invocations.
// Used as the static source set when culling is disabled.
//
// Parameters:
//   - backend: the device backend
//   - n: number of indices, clamped to the capacity
//
// Returns:
//   - error: an error if a write failed
func (l *IndexList) StageIdentity(backend Backend, n int) error {
	count := min(uint32(max(n, 0)), l.capacity)
	words := make([]uint32, count+1)
	words[0] = count
	for i := uint32(0); i < count; i++ {
		words[i+1] = i
	}
	if err := backend.WriteBuffer(l.list, 0, uint32Bytes(words)); err != nil {
		return fmt.Errorf("index list %q: identity: %w", l.label, err)
	}
	da := GPUDispatchArgs{X: workgroupsFor(count), Y: 1, Z: 1}
	if err := backend.WriteBuffer(l.args, 0, da.Marshal()); err != nil {
		return fmt.Errorf("index list %q: identity args: %w", l.label, err)
	}
	return nil
}

// DispatchCalcArgs runs CalcArgsBufferForCS so kernels over this list cover exactly its count.
//
// Parameters:
//   - backend: the device backend
//
// Returns:
//   - error: an error if the dispatch failed
func (l *IndexList) DispatchCalcArgs(backend Backend) error {
	bindings := []Binding{
		{Slot: CalcArgsBindList, Buffer: l.list},
		{Slot: CalcArgsBindArgs, Buffer: l.args},
	}
	if err := backend.Dispatch(KernelCalcArgsBufferForCS, bindings, 1, 1, 1); err != nil {
		return fmt.Errorf("index list %q: calc args: %w", l.label, err)
	}
	return nil
}

// CopyCountTo copies the count word into dst at dstOffset.
//
// Parameters:
//   - backend: the device backend
//   - dst: destination buffer
//   - dstOffset: byte offset into dst
//
// Returns:
//   - error: an error if the copy failed
func (l *IndexList) CopyCountTo(backend Backend, dst Buffer, dstOffset uint64) error {
	if err := backend.CopyBuffer(l.list, 0, dst, dstOffset, IndexListHeaderSize); err != nil {
		return fmt.Errorf("index list %q: copy count: %w", l.label, err)
	}
	return nil
}

// Release frees the list and its dispatch args.
//
// Parameters:
//   - backend: the device backend
//
// Returns:
//   - error: aggregated release errors
func (l *IndexList) Release(backend Backend) error {
	var errs *multierror.Error
	for _, buf := range []Buffer{l.list, l.args} {
		if buf == nil {
			continue
		}
		if err := backend.ReleaseBuffer(buf); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	l.list, l.args = nil, nil
	return errs.ErrorOrNil()
}

// DecodeIndexList parses TrailIndexList bytes into its count and indices.
//
// Parameters:
//   - data: raw list bytes, header included
//
// Returns:
//   - []uint32: the first count indices
func DecodeIndexList(data []byte) []uint32 {
	if len(data) < IndexListHeaderSize {
		return nil
	}
	count := binary.LittleEndian.Uint32(data)
	avail := uint32((len(data) - IndexListHeaderSize) / 4)
	count = min(count, avail)
	out := make([]uint32, count)
	for i := range count {
		out[i] = binary.LittleEndian.Uint32(data[IndexListHeaderSize+i*4:])
	}
	return out
}
