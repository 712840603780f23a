// Package pipeline wires a frame source, the relay, a processing operation
// and the display buffer into one start/stop unit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/soocke/framerelay/config"
	"github.com/soocke/framerelay/domain/convert"
	"github.com/soocke/framerelay/domain/display"
	"github.com/soocke/framerelay/domain/process"
	"github.com/soocke/framerelay/domain/relay"
	"github.com/soocke/framerelay/domain/source"
)

var (
	// ErrAlreadyRunning is returned by Start when a run is in progress.
	ErrAlreadyRunning = errors.New("pipeline: already running")
	// ErrNoResolution is returned when the source negotiated an empty size.
	ErrNoResolution = errors.New("pipeline: source reported no resolution")
)

// Deps are the collaborators of a pipeline.
type Deps struct {
	Config *config.Config
	// NewSource is called on every Start; the previous source is closed by
	// Stop.
	NewSource func() (source.Source, error)
	Operation process.Operation
	Display   *display.Buffer
	// Sink is invalidated after every published result. Optional.
	Sink   display.Sink
	Logger *slog.Logger
}

// Pipeline owns one run at a time.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
	life   *Lifecycle

	// mu serializes Start and Stop.
	mu     sync.Mutex
	src    source.Source
	worker *relay.Worker
	cancel context.CancelFunc

	metaMu  sync.RWMutex
	relay   *relay.Relay
	res     source.Resolution
	runID   string
	lastRun relay.Stats
}

// New validates deps and returns an idle pipeline.
func New(d Deps) (*Pipeline, error) {
	if d.NewSource == nil {
		return nil, errors.New("pipeline: nil source factory")
	}
	if d.Operation == nil {
		return nil, errors.New("pipeline: nil operation")
	}
	if d.Config == nil {
		d.Config = config.DefaultConfig()
	}
	if d.Display == nil {
		d.Display = display.NewBuffer()
	}
	return &Pipeline{cfg: d.Config, deps: d, logger: d.Logger, life: NewLifecycle(d.Logger)}, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return p.life.Current() }

// AddListener registers a lifecycle listener.
func (p *Pipeline) AddListener(l StateListener) { p.life.AddListener(l) }

// Display returns the result buffer.
func (p *Pipeline) Display() *display.Buffer { return p.deps.Display }

// Resolution is the size negotiated by the current or last run.
func (p *Pipeline) Resolution() source.Resolution {
	p.metaMu.RLock()
	defer p.metaMu.RUnlock()
	return p.res
}

// RunID identifies the current or last run in logs.
func (p *Pipeline) RunID() string {
	p.metaMu.RLock()
	defer p.metaMu.RUnlock()
	return p.runID
}

// Stats returns relay counters for the current run, or the final counters
// of the last run when stopped.
func (p *Pipeline) Stats() relay.Stats {
	p.metaMu.RLock()
	r := p.relay
	last := p.lastRun
	p.metaMu.RUnlock()
	if r == nil {
		return last
	}
	return r.Stats()
}

func (p *Pipeline) colorMode() convert.ColorMode {
	if p.cfg.Color {
		return convert.GrayAndColor
	}
	return convert.GrayOnly
}

// Start opens a fresh source, waits for a valid negotiation, then starts
// the worker and finally the source. ctx bounds the open step only.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st := p.life.Current(); st != StateIdle && st != StateFailed {
		return ErrAlreadyRunning
	}
	if !p.life.Transition(StateOpening) {
		return ErrAlreadyRunning
	}
	runID := uuid.NewString()
	p.metaMu.Lock()
	p.runID = runID
	p.metaMu.Unlock()
	logger := p.logger
	if logger != nil {
		logger = logger.With("run_id", runID)
	}

	src, err := p.deps.NewSource()
	if err != nil {
		p.life.Transition(StateFailed)
		return fmt.Errorf("pipeline: create source: %w", err)
	}
	res, err := source.OpenWithTimeout(ctx, src, p.cfg.OpenTimeout())
	if err != nil {
		_ = src.Close()
		p.life.Transition(StateFailed)
		return fmt.Errorf("pipeline: %w", err)
	}
	if res.IsZero() {
		_ = src.Close()
		p.life.Transition(StateFailed)
		return ErrNoResolution
	}

	// Sequences restart with the new relay.
	p.deps.Display.Reset()
	if rs, ok := p.deps.Operation.(interface{ Reset() }); ok {
		rs.Reset()
	}
	r := relay.New(relay.Options{
		Mode:         p.colorMode(),
		Decay:        p.cfg.Decay,
		WarmUp:       p.cfg.WarmUp,
		ProfileEvery: p.cfg.ProfileEvery,
	}, logger)
	op := p.deps.Operation
	if p.cfg.Overlay {
		op = &process.Overlay{Inner: op, Stats: r.Stats}
	}
	buf := p.deps.Display
	sink := p.deps.Sink
	w := relay.NewWorker(r,
		relay.ProcessorFunc(func(f *relay.Frame) error {
			var b image.Rectangle
			if f.Gray != nil {
				b = f.Gray.Rect
			}
			return op.Process(f, buf.Back(b.Dx(), b.Dy()))
		}),
		func(f *relay.Frame) {
			if buf.Publish(f.Seq) && sink != nil {
				sink.Invalidate()
			}
		},
		p.cfg.IdleWait(), logger)

	wctx, cancel := context.WithCancel(context.Background())
	w.Start(wctx)
	if err := src.Start(func(img image.Image, ts int64) { r.Submit(img, ts) }); err != nil {
		w.Stop()
		cancel()
		_ = src.Close()
		p.life.Transition(StateFailed)
		return fmt.Errorf("pipeline: start source: %w", err)
	}
	p.src, p.worker, p.cancel = src, w, cancel
	p.metaMu.Lock()
	p.relay, p.res = r, res
	p.metaMu.Unlock()
	p.life.Transition(StateRunning)
	if logger != nil {
		logger.Info("pipeline started", "resolution", res.String(), "operation", p.deps.Operation.Name(), "color", p.colorMode().String())
	}
	return nil
}

// Stop halts the source, then the worker, then closes the source. It is a
// no-op unless the pipeline is running.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.life.Current() != StateRunning {
		return nil
	}
	p.life.Transition(StateStopping)
	p.src.Stop()
	p.worker.Stop()
	p.cancel()
	err := p.src.Close()
	p.metaMu.Lock()
	last := p.relay.Stats()
	p.lastRun, p.relay = last, nil
	runID := p.runID
	p.metaMu.Unlock()
	if p.logger != nil {
		p.logger.Info("pipeline stopped", "run_id", runID,
			"submitted", last.Submitted, "dropped", last.Dropped,
			"processed", last.Processed, "failed", last.Failed)
	}
	p.src, p.worker, p.cancel = nil, nil, nil
	if err != nil {
		p.life.Transition(StateFailed)
		return fmt.Errorf("pipeline: close source: %w", err)
	}
	p.life.Transition(StateIdle)
	return nil
}

// Close stops any run and shuts down the lifecycle loop.
func (p *Pipeline) Close() error {
	err := p.Stop()
	p.life.Close()
	return err
}
