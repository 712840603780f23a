package relay

import (
	"sync"
	"sync/atomic"

	"github.com/soocke/framerelay/domain/convert"
)

// Frame is the payload carried by a slot. Seq is assigned by the relay when
// the frame is stamped and strictly increases across the relay lifetime.
type Frame struct {
	Seq       uint64
	Timestamp int64
	convert.Planes
}

// Slot is one half of the double buffer. The busy flag is the only state
// guarded by the mutex; the payload belongs to whoever holds busy.
type Slot struct {
	name string
	mu   sync.Mutex
	busy bool
	Frame
}

// TryMarkBusy claims the slot. It returns false without blocking when another
// goroutine already holds it.
func (s *Slot) TryMarkBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

// MarkFree releases the slot. Releasing a slot that is not held is a
// programming error and panics with *ProtocolViolation.
func (s *Slot) MarkFree() {
	s.mu.Lock()
	if !s.busy {
		s.mu.Unlock()
		panic(&ProtocolViolation{Op: "MarkFree", Slot: s.name})
	}
	s.busy = false
	s.mu.Unlock()
}

// Busy reports the current flag. The answer may be stale by the time the
// caller acts on it.
func (s *Slot) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Name identifies the slot in logs and violations.
func (s *Slot) Name() string { return s.name }

// Pair owns the two slots for the lifetime of a relay. The camera-side
// pointer is read by the producer and swapped by the worker; the processing
// side is only touched by the worker.
type Pair struct {
	slots      [2]Slot
	camera     atomic.Pointer[Slot]
	processing atomic.Pointer[Slot]
}

// NewPair allocates both slots. Slot A starts on the camera side.
func NewPair() *Pair {
	p := &Pair{}
	p.slots[0].name = "a"
	p.slots[1].name = "b"
	p.camera.Store(&p.slots[0])
	p.processing.Store(&p.slots[1])
	return p
}

// Camera returns the slot the producer writes into.
func (p *Pair) Camera() *Slot { return p.camera.Load() }

// Processing returns the slot the worker reads from.
func (p *Pair) Processing() *Slot { return p.processing.Load() }

// SwapRoles exchanges the camera and processing slots. Only the worker calls
// this, and only while it holds both slots busy.
func (p *Pair) SwapRoles() {
	cam := p.camera.Load()
	proc := p.processing.Load()
	p.camera.Store(proc)
	p.processing.Store(cam)
}
