package presenter

import (
	"sync"
	"time"

	"github.com/soocke/framerelay/domain/pipeline"
)

// StateView sets the state label in the view.
type StateView interface{ SetStateLabel(string) }

// StatePresenter receives lifecycle transitions from the pipeline goroutine
// and reflects the latest one on the next Tick.
type StatePresenter struct {
	view StateView

	mu      sync.Mutex
	pending []pipeline.State

	latest pipeline.State
	shown  bool
}

func NewStatePresenter(view StateView) *StatePresenter {
	return &StatePresenter{view: view}
}

// OnState is a pipeline.StateListener.
func (p *StatePresenter) OnState(prev, next pipeline.State) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, next)
	p.mu.Unlock()
}

// Tick flushes queued states and updates the view with the most recent one.
func (p *StatePresenter) Tick(now time.Time) {
	if p == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	last, ok := p.latest, !p.shown
	if n := len(p.pending); n > 0 {
		last, ok = p.pending[n-1], true
		p.pending = p.pending[:0]
	}
	p.mu.Unlock()
	if !ok || (p.shown && last == p.latest) {
		return
	}
	p.latest, p.shown = last, true
	p.view.SetStateLabel("State: " + last.String())
}
