package trail

import (
	"fmt"
	"log"
	"sync"

	"github.com/chewxy/math32"
	"github.com/hashicorp/go-multierror"
)

// Store owns the per-trail state array and the ring-buffered node history on the device.
// Node history is never read back to the host.
type Store interface {
	// Initialize allocates zeroed trail and node arrays. A previously initialized store is
	// released first.
	//
	// Parameters:
	//   - trailCount: number of trails, must be positive
	//   - life: seconds a node stays visible, must be positive
	//   - inputRate: samples per second per trail, must be positive
	//
	// Returns:
	//   - error: an error if a parameter is invalid or allocation failed
	Initialize(trailCount int, life, inputRate float32) error

	// Release frees the device buffers. Calling Release more than once is a no-op.
	//
	// Returns:
	//   - error: aggregated buffer release errors
	Release() error

	// Initialized reports whether the store currently holds buffers.
	//
	// Returns:
	//   - bool: true between Initialize and Release
	Initialized() bool

	// NodeCount returns trailCount * nodesPerTrail.
	//
	// Returns:
	//   - int: the total number of ring slots
	NodeCount() int

	// NodesPerTrail returns ceil(life * inputRate).
	//
	// Returns:
	//   - int: ring slots per trail
	NodesPerTrail() int

	// TrailCount returns the number of trails.
	//
	// Returns:
	//   - int: the trail count
	TrailCount() int

	// Life returns the node lifetime in seconds.
	//
	// Returns:
	//   - float32: node lifetime
	Life() float32

	// InputRate returns the configured samples per second.
	//
	// Returns:
	//   - float32: input rate
	InputRate() float32

	// Trails returns the TrailState array buffer.
	//
	// Returns:
	//   - Buffer: the trail buffer
	//   - error: ErrNotInitialized or ErrReleased when no buffers are held
	Trails() (Buffer, error)

	// Nodes returns the Node ring buffer.
	//
	// Returns:
	//   - Buffer: the node buffer
	//   - error: ErrNotInitialized or ErrReleased when no buffers are held
	Nodes() (Buffer, error)
}

type store struct {
	mu      *sync.Mutex
	backend Backend

	frameRate     float32
	trailCount    int
	nodesPerTrail int
	life          float32
	inputRate     float32

	trails   Buffer
	nodes    Buffer
	released bool
}

var _ Store = &store{}

// NewStore creates an uninitialized trail state store on a backend.
//
// Parameters:
//   - backend: the device backend that owns the buffers
//   - options: functional options to configure the store
//
// Returns:
//   - Store: the new store
func NewStore(backend Backend, options ...StoreBuilderOption) Store {
	s := &store{
		mu:        &sync.Mutex{},
		backend:   backend,
		frameRate: 60,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *store) Initialize(trailCount int, life, inputRate float32) error {
	var errs *multierror.Error
	if trailCount <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("trail count %d must be positive", trailCount))
	}
	if !(life > 0) || !isFinite(life) {
		errs = multierror.Append(errs, fmt.Errorf("life %v must be positive", life))
	}
	if !(inputRate > 0) || !isFinite(inputRate) {
		errs = multierror.Append(errs, fmt.Errorf("input rate %v must be positive", inputRate))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("store: initialize: %w: %w", ErrInvalidConfig, err)
	}

	if inputRate < s.frameRate {
		log.Printf("[Trail] input rate %.1f/s is below the frame rate %.1f/s, trails will be sampled below frame cadence", inputRate, s.frameRate)
	}

	if err := s.Release(); err != nil {
		return fmt.Errorf("store: initialize: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nodesPerTrail := int(math32.Ceil(life * inputRate))
	var node GPUNode
	var state GPUTrailState

	trails, err := s.backend.CreateBuffer("trail_states", uint64(trailCount*state.Size()), BufferUsageStorage|BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("store: create trail buffer: %w", err)
	}
	nodes, err := s.backend.CreateBuffer("trail_nodes", uint64(trailCount*nodesPerTrail*node.Size()), BufferUsageStorage|BufferUsageCopyDst)
	if err != nil {
		_ = s.backend.ReleaseBuffer(trails)
		return fmt.Errorf("store: create node buffer: %w", err)
	}

	s.trailCount = trailCount
	s.nodesPerTrail = nodesPerTrail
	s.life = life
	s.inputRate = inputRate
	s.trails = trails
	s.nodes = nodes
	s.released = false
	log.Printf("[Trail] store initialized: %d trails x %d nodes", trailCount, nodesPerTrail)
	return nil
}

func (s *store) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trails == nil && s.nodes == nil {
		return nil
	}
	var errs *multierror.Error
	for _, buf := range []Buffer{s.trails, s.nodes} {
		if buf == nil {
			continue
		}
		if err := s.backend.ReleaseBuffer(buf); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	s.trails, s.nodes = nil, nil
	s.released = true
	return errs.ErrorOrNil()
}

func (s *store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trails != nil
}

func (s *store) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailCount * s.nodesPerTrail
}

func (s *store) NodesPerTrail() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodesPerTrail
}

func (s *store) TrailCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailCount
}

func (s *store) Life() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.life
}

func (s *store) InputRate() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputRate
}

func (s *store) Trails() (Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	return s.trails, nil
}

func (s *store) Nodes() (Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	return s.nodes, nil
}

// checkLocked reports why buffers are unavailable. Caller must hold the mutex.
func (s *store) checkLocked() error {
	if s.trails != nil {
		return nil
	}
	if s.released {
		return ErrReleased
	}
	return ErrNotInitialized
}
