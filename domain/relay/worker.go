package relay

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Processor runs one operation over the frame in the processing slot.
type Processor interface {
	Process(f *Frame) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(f *Frame) error

func (fn ProcessorFunc) Process(f *Frame) error { return fn(f) }

// Worker is the single consumer of a relay. It holds the processing-side slot
// busy for as long as it is attached, so the producer can never write into
// the frame being processed.
type Worker struct {
	relay     *Relay
	proc      Processor
	onResult  func(f *Frame)
	logger    *slog.Logger
	idleWait  time.Duration
	idleTimer *time.Timer

	attached      bool
	lastProcessed uint64

	requestStop atomic.Bool
	running     atomic.Bool
	started     atomic.Bool
	startOnce   sync.Once
	done        chan struct{}
}

// NewWorker binds a processor to a relay. onResult, when non-nil, is called
// after every successful operation; it is the visualization refresh hook.
// idleWait > 0 lets the worker block up to that long for a new frame instead
// of only yielding.
func NewWorker(r *Relay, p Processor, onResult func(f *Frame), idleWait time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		relay:    r,
		proc:     p,
		onResult: onResult,
		logger:   logger,
		idleWait: idleWait,
		done:     make(chan struct{}),
	}
}

// LastProcessed is the sequence of the newest frame handled by Step. Only
// safe to call from the worker goroutine or after Stop.
func (w *Worker) LastProcessed() uint64 { return w.lastProcessed }

// Running reports whether Run is executing.
func (w *Worker) Running() bool { return w.running.Load() }

func (w *Worker) attach() {
	if w.attached {
		return
	}
	proc := w.relay.pair.Processing()
	if !proc.TryMarkBusy() {
		// A second worker on the same relay.
		panic(&ProtocolViolation{Op: "attach", Slot: proc.Name()})
	}
	w.attached = true
}

// Detach releases the processing slot claimed by Step so another worker can
// take over the relay. Run detaches on return; callers that drive Step
// themselves must call Detach when done, from the same goroutine.
func (w *Worker) Detach() {
	if !w.attached {
		return
	}
	w.relay.pair.Processing().MarkFree()
	w.attached = false
}

// Step performs one iteration of the consumer loop and reports whether a
// frame was handled. A false result is the "should sleep" condition.
// The first Step attaches the worker: it holds the processing slot busy
// until Detach.
func (w *Worker) Step() bool {
	w.attach()
	pair := w.relay.pair
	cam := pair.Camera()
	if cam.TryMarkBusy() {
		if cam.Seq > pair.Processing().Seq {
			pair.SwapRoles()
			// The previous processing slot is now camera-side.
			pair.Camera().MarkFree()
		} else {
			cam.MarkFree()
		}
	}

	proc := pair.Processing()
	if proc.Seq <= w.lastProcessed {
		return false
	}
	f := &proc.Frame
	start := time.Now()
	err := w.process(f)
	w.relay.recordProcess(time.Since(start), f.Seq, err)
	w.lastProcessed = f.Seq
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("relay.process failed", "seq", f.Seq, "error", err)
		}
		return true
	}
	if w.onResult != nil {
		w.onResult(f)
	}
	return true
}

func (w *Worker) process(f *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if pv, ok := r.(*ProtocolViolation); ok {
				panic(pv)
			}
			err = fmt.Errorf("relay: operation panic: %v", r)
		}
	}()
	if w.proc == nil {
		return nil
	}
	return w.proc.Process(f)
}

// Run drives Step until RequestStop is called or ctx is done. The processing
// slot is released on return.
func (w *Worker) Run(ctx context.Context) {
	w.running.Store(true)
	defer w.running.Store(false)
	w.attach()
	defer w.Detach()
	for !w.requestStop.Load() {
		if ctx.Err() != nil {
			return
		}
		if w.Step() {
			continue
		}
		w.idle(ctx)
	}
}

func (w *Worker) idle(ctx context.Context) {
	if w.idleWait <= 0 {
		runtime.Gosched()
		return
	}
	if w.idleTimer == nil {
		w.idleTimer = time.NewTimer(w.idleWait)
	} else {
		w.idleTimer.Reset(w.idleWait)
	}
	select {
	case <-w.relay.wake:
	case <-w.idleTimer.C:
	case <-ctx.Done():
	}
	w.idleTimer.Stop()
}

// Start runs the worker on its own goroutine. Subsequent calls are no-ops.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go func() {
			defer close(w.done)
			defer w.recoverLog()
			w.Run(ctx)
		}()
	})
}

// RequestStop asks the loop to exit after the current iteration.
func (w *Worker) RequestStop() { w.requestStop.Store(true) }

// Stop requests exit and waits for the goroutine started by Start.
func (w *Worker) Stop() {
	w.RequestStop()
	if w.started.Load() {
		<-w.done
	}
}

// Done is closed when the goroutine started by Start has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) recoverLog() {
	if r := recover(); r != nil {
		if w.logger != nil {
			w.logger.Error("relay.worker panic", "panic", r, "stack", string(debug.Stack()))
		}
		if pv, ok := r.(*ProtocolViolation); ok {
			panic(pv)
		}
	}
}
