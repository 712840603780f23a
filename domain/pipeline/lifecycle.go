package pipeline

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// State enumerates pipeline lifecycle states.
type State int32

const (
	StateIdle State = iota
	StateOpening
	StateRunning
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateListener observes transitions. Listeners run on the lifecycle
// goroutine, one at a time, and must not call back into Transition.
type StateListener func(prev, next State)

var allowed = map[State][]State{
	StateIdle:     {StateOpening},
	StateOpening:  {StateRunning, StateFailed, StateIdle},
	StateRunning:  {StateStopping, StateFailed},
	StateStopping: {StateIdle, StateFailed},
	StateFailed:   {StateOpening, StateIdle},
}

// CanTransition reports whether prev -> next is a legal edge.
func CanTransition(prev, next State) bool {
	for _, s := range allowed[prev] {
		if s == next {
			return true
		}
	}
	return false
}

type (
	evtAddListener struct{ l StateListener }
	evtTransition  struct {
		next  State
		reply chan bool
	}
)

// Lifecycle is a channel-driven state machine. All transitions and
// listener callbacks are serialized through one goroutine.
type Lifecycle struct {
	state     atomic.Int32
	logger    *slog.Logger
	events    chan interface{}
	listeners []StateListener
	done      chan struct{}

	// sendMu orders sends on events against Close.
	sendMu sync.RWMutex
	closed bool
}

// NewLifecycle starts the event loop in StateIdle.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	l := &Lifecycle{logger: logger, events: make(chan interface{}, 16), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.Error("lifecycle panic", "error", r, "stack", string(debug.Stack()))
				}
			}
		}()
		l.loop()
	}()
	return l
}

func (l *Lifecycle) loop() {
	for ev := range l.events {
		switch e := ev.(type) {
		case evtAddListener:
			l.listeners = append(l.listeners, e.l)
		case evtTransition:
			e.reply <- l.transition(e.next)
		}
	}
}

func (l *Lifecycle) transition(next State) bool {
	prev := State(l.state.Load())
	if prev == next {
		return true
	}
	if !CanTransition(prev, next) {
		if l.logger != nil {
			l.logger.Warn("illegal pipeline transition", "from", prev.String(), "to", next.String())
		}
		return false
	}
	l.state.Store(int32(next))
	if l.logger != nil {
		l.logger.Debug("pipeline state transition", "from", prev.String(), "to", next.String())
	}
	for _, fn := range l.listeners {
		l.notify(fn, prev, next)
	}
	return true
}

func (l *Lifecycle) notify(fn StateListener, prev, next State) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Error("state listener panic", "error", r)
		}
	}()
	fn(prev, next)
}

// Current returns the current state.
func (l *Lifecycle) Current() State { return State(l.state.Load()) }

// AddListener registers fn for future transitions.
func (l *Lifecycle) AddListener(fn StateListener) {
	if fn == nil {
		return
	}
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()
	if l.closed {
		return
	}
	l.events <- evtAddListener{l: fn}
}

// Transition requests a move to next and waits until it has been applied
// and all listeners have run. It returns false for illegal edges or after
// Close.
func (l *Lifecycle) Transition(next State) bool {
	reply := make(chan bool, 1)
	l.sendMu.RLock()
	if l.closed {
		l.sendMu.RUnlock()
		return false
	}
	l.events <- evtTransition{next: next, reply: reply}
	l.sendMu.RUnlock()
	return <-reply
}

// Close stops the event loop after queued events are applied. It is safe to
// call more than once and concurrently with Transition.
func (l *Lifecycle) Close() {
	l.sendMu.Lock()
	if l.closed {
		l.sendMu.Unlock()
		return
	}
	l.closed = true
	close(l.events)
	l.sendMu.Unlock()
	<-l.done
}
