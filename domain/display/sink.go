package display

import "sync"

// Sink is told when a new result has been published. Invalidate must not
// block; the sink redraws on its own goroutine.
type Sink interface {
	Invalidate()
}

// Notifier turns invalidations into a coalescing signal: any number of
// Invalidate calls between two receives produce one wakeup.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier returns a ready Notifier.
func NewNotifier() *Notifier { return &Notifier{ch: make(chan struct{}, 1)} }

func (n *Notifier) Invalidate() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C delivers one value per coalesced batch of invalidations.
func (n *Notifier) C() <-chan struct{} { return n.ch }

// Fanout forwards invalidations to a dynamic set of sinks.
type Fanout struct {
	mu    sync.RWMutex
	sinks map[Sink]struct{}
}

// NewFanout builds a fanout over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{sinks: map[Sink]struct{}{}}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add registers s. Sinks are keyed by identity, so s must be comparable.
func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	f.sinks[s] = struct{}{}
	f.mu.Unlock()
}

// Remove unregisters s.
func (f *Fanout) Remove(s Sink) {
	f.mu.Lock()
	delete(f.sinks, s)
	f.mu.Unlock()
}

// Len reports the number of registered sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

func (f *Fanout) Invalidate() {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for s := range f.sinks {
		s.Invalidate()
	}
}
