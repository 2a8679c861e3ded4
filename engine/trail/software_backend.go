package trail

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// softwareBuffer is host memory addressed as 32-bit words, matching the granularity
// every trail kernel reads and writes at.
type softwareBuffer struct {
	label    string
	size     uint64
	usage    BufferUsage
	words    []uint32
	released bool
}

var _ Buffer = &softwareBuffer{}

func (b *softwareBuffer) Label() string      { return b.label }
func (b *softwareBuffer) Size() uint64       { return b.size }
func (b *softwareBuffer) Usage() BufferUsage { return b.usage }

// u32 returns word i, or 0 when i is out of range.
func (b *softwareBuffer) u32(i uint32) uint32 {
	if b == nil || int(i) >= len(b.words) {
		return 0
	}
	return b.words[i]
}

// setU32 writes word i. Out of range writes are dropped.
func (b *softwareBuffer) setU32(i uint32, v uint32) {
	if b == nil || int(i) >= len(b.words) {
		return
	}
	b.words[i] = v
}

func (b *softwareBuffer) f32(i uint32) float32 {
	return math.Float32frombits(b.u32(i))
}

func (b *softwareBuffer) setF32(i uint32, v float32) {
	b.setU32(i, math.Float32bits(v))
}

// atomicAdd adds delta to word i and returns the previous value.
func (b *softwareBuffer) atomicAdd(i uint32, delta uint32) uint32 {
	if b == nil || int(i) >= len(b.words) {
		return 0
	}
	return atomic.AddUint32(&b.words[i], delta) - delta
}

// DrawRecord is a draw captured by the software backend, with the indirect
// arguments resolved at the time the draw was recorded.
type DrawRecord struct {
	Material      string
	IndexCount    uint32
	InstanceCount uint32
	Vertices      string
}

// SoftwareBackend is a Backend that executes the trail kernels on the CPU.
// It adds readback and draw inspection for tests and headless runs.
type SoftwareBackend interface {
	Backend

	// ReadBuffer copies bytes out of a buffer.
	//
	// Parameters:
	//   - buf: the buffer to read
	//   - offset: byte offset into buf
	//   - size: number of bytes to read
	//
	// Returns:
	//   - []byte: a copy of the requested range
	//   - error: an error if the range is invalid or the buffer is released
	ReadBuffer(buf Buffer, offset, size uint64) ([]byte, error)

	// Draws returns the draws recorded since the last ResetDraws.
	//
	// Returns:
	//   - []DrawRecord: recorded draws in issue order
	Draws() []DrawRecord

	// ResetDraws clears the recorded draws.
	ResetDraws()

	// DispatchCount returns how many kernel dispatches have been executed.
	//
	// Returns:
	//   - int: total dispatches
	DispatchCount() int

	// LiveBuffers returns the number of buffers that have not been released.
	//
	// Returns:
	//   - int: live buffer count
	LiveBuffers() int

	// Close stops the worker pool.
	Close()
}

type softwareBackend struct {
	mu *sync.Mutex

	workers int
	pool    worker.DynamicWorkerPool
	configs map[Kernel]KernelConfig
	kernels map[Kernel]softwareKernel

	draws      []DrawRecord
	dispatches int
	live       int
}

var _ SoftwareBackend = &softwareBackend{}

// NewSoftwareBackend creates a CPU backend. Each dispatch is split per workgroup and run
// on a dynamic worker pool; the call returns once every workgroup has finished.
//
// Parameters:
//   - options: functional options to configure the backend
//
// Returns:
//   - SoftwareBackend: the new backend
func NewSoftwareBackend(options ...SoftwareBackendBuilderOption) SoftwareBackend {
	s := &softwareBackend{
		mu:      &sync.Mutex{},
		workers: runtime.NumCPU(),
		configs: KernelConfigs(),
		kernels: softwareKernels(),
	}
	for _, option := range options {
		option(s)
	}
	s.pool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)
	return s
}

func (s *softwareBackend) Type() BackendType {
	return BackendTypeSoftware
}

func (s *softwareBackend) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("software backend: buffer %q has zero size", label)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live++
	return &softwareBuffer{
		label: label,
		size:  size,
		usage: usage,
		words: make([]uint32, (size+3)/4),
	}, nil
}

func (s *softwareBackend) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, err := s.resolve(buf, offset, uint64(len(data)))
	if err != nil {
		return fmt.Errorf("software backend: write: %w", err)
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("software backend: write to %q must be 4-byte aligned", b.label)
	}
	base := offset / 4
	for i := 0; i+4 <= len(data); i += 4 {
		b.words[base+uint64(i/4)] = binary.LittleEndian.Uint32(data[i:])
	}
	return nil
}

func (s *softwareBackend) CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error {
	sb, err := s.resolve(src, srcOffset, size)
	if err != nil {
		return fmt.Errorf("software backend: copy source: %w", err)
	}
	db, err := s.resolve(dst, dstOffset, size)
	if err != nil {
		return fmt.Errorf("software backend: copy destination: %w", err)
	}
	if srcOffset%4 != 0 || dstOffset%4 != 0 || size%4 != 0 {
		return fmt.Errorf("software backend: copy %q -> %q must be 4-byte aligned", sb.label, db.label)
	}
	copy(db.words[dstOffset/4:(dstOffset+size)/4], sb.words[srcOffset/4:(srcOffset+size)/4])
	return nil
}

func (s *softwareBackend) Dispatch(kernel Kernel, bindings []Binding, x, y, z uint32) error {
	return s.run(kernel, bindings, x*y*z)
}

func (s *softwareBackend) DispatchIndirect(kernel Kernel, bindings []Binding, args Buffer, offset uint64) error {
	b, err := s.resolve(args, offset, 12)
	if err != nil {
		return fmt.Errorf("software backend: %s indirect args: %w", kernel, err)
	}
	w := uint32(offset / 4)
	return s.run(kernel, bindings, b.u32(w)*b.u32(w+1)*b.u32(w+2))
}

func (s *softwareBackend) DrawIndirect(call DrawCall) error {
	args, err := s.resolve(call.Args, 0, 20)
	if err != nil {
		return fmt.Errorf("software backend: draw %q: %w", call.Material, err)
	}
	rec := DrawRecord{
		Material:      call.Material,
		IndexCount:    args.u32(0),
		InstanceCount: args.u32(1),
	}
	if call.Vertices != nil {
		rec.Vertices = call.Vertices.Label()
	}
	s.mu.Lock()
	s.draws = append(s.draws, rec)
	s.mu.Unlock()
	return nil
}

func (s *softwareBackend) ReleaseBuffer(buf Buffer) error {
	b, ok := buf.(*softwareBuffer)
	if !ok || b == nil {
		return fmt.Errorf("software backend: release: foreign buffer %T", buf)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.released {
		return fmt.Errorf("software backend: release %q: %w", b.label, ErrReleased)
	}
	b.released = true
	b.words = nil
	s.live--
	return nil
}

func (s *softwareBackend) ReadBuffer(buf Buffer, offset, size uint64) ([]byte, error) {
	b, err := s.resolve(buf, offset, size)
	if err != nil {
		return nil, fmt.Errorf("software backend: read: %w", err)
	}
	out := make([]byte, size)
	for i := uint64(0); i < size; i++ {
		word := b.words[(offset+i)/4]
		out[i] = byte(word >> (8 * ((offset + i) % 4)))
	}
	return out, nil
}

func (s *softwareBackend) Draws() []DrawRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DrawRecord, len(s.draws))
	copy(out, s.draws)
	return out
}

func (s *softwareBackend) ResetDraws() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws = s.draws[:0]
}

func (s *softwareBackend) DispatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatches
}

func (s *softwareBackend) LiveBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *softwareBackend) Close() {
	s.pool.Stop()
}

// resolve checks that buf is a live software buffer and that [offset, offset+size) is in range.
func (s *softwareBackend) resolve(buf Buffer, offset, size uint64) (*softwareBuffer, error) {
	b, ok := buf.(*softwareBuffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("foreign buffer %T", buf)
	}
	if b.released {
		return nil, fmt.Errorf("buffer %q: %w", b.label, ErrReleased)
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("buffer %q: range [%d, %d) exceeds size %d", b.label, offset, offset+size, b.size)
	}
	return b, nil
}

// run binds the buffers and executes every workgroup of the kernel on the pool.
// A WaitGroup barrier gives the dispatch its completion point since pool.Wait()
// only returns once workers go idle.
func (s *softwareBackend) run(kernel Kernel, bindings []Binding, groups uint32) error {
	cfg, ok := s.configs[kernel]
	if !ok {
		return fmt.Errorf("software backend: unknown kernel %q", kernel)
	}
	build, ok := s.kernels[kernel]
	if !ok {
		return fmt.Errorf("software backend: kernel %q has no software implementation", kernel)
	}

	res := make(boundResources, len(cfg.Bindings))
	for _, b := range bindings {
		sb, err := s.resolve(b.Buffer, 0, 0)
		if err != nil {
			return fmt.Errorf("software backend: %s binding %d: %w", kernel, b.Slot, err)
		}
		res[b.Slot] = sb
	}
	for _, slot := range cfg.Bindings {
		if res[slot] == nil {
			return fmt.Errorf("software backend: %s binding %d is not bound", kernel, slot)
		}
	}

	s.mu.Lock()
	s.dispatches++
	s.mu.Unlock()

	if groups == 0 {
		return nil
	}

	invoke := build(res)
	var wg sync.WaitGroup
	for g := uint32(0); g < groups; g++ {
		wg.Add(1)
		start := g * cfg.WorkgroupSize
		end := start + cfg.WorkgroupSize
		s.pool.SubmitTask(worker.Task{
			ID: int(g),
			Do: func() (any, error) {
				defer wg.Done()
				for inv := start; inv < end; inv++ {
					invoke(inv)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return nil
}
