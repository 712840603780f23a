package presenter

import (
	"context"
	"log/slog"
	"sync"
)

// RunModel provides enabled state access.
type RunModel interface {
	Enabled() bool
	SetEnabled(bool)
}

// Runner is the start/stop surface of the pipeline.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error
}

// RunView updates UI elements affected by starting and stopping.
type RunView interface {
	PreviewReset()
	ConfigEditable(bool)
	SetError(msg string)
}

type runTaskKind int

const (
	runTaskStart runTaskKind = iota + 1
	runTaskStop
)

type runResult struct {
	kind runTaskKind
	err  error
}

// RunPresenter owns the start/stop toggle. Start can block while the source
// negotiates, so requests are executed in order on a worker goroutine and
// their outcome is applied to the view on the next Tick.
type RunPresenter struct {
	model  RunModel
	runner Runner
	view   RunView
	logger *slog.Logger

	workerOnce sync.Once
	workCh     chan runTaskKind
	resultCh   chan runResult
	applied    int
}

func NewRunPresenter(model RunModel, runner Runner, view RunView, logger *slog.Logger) *RunPresenter {
	return &RunPresenter{
		model:    model,
		runner:   runner,
		view:     view,
		logger:   logger,
		workCh:   make(chan runTaskKind, 4),
		resultCh: make(chan runResult, 4),
	}
}

func (c *RunPresenter) ready() bool {
	return c != nil && c.model != nil && c.runner != nil && c.view != nil
}

func (c *RunPresenter) ensureWorker() {
	c.workerOnce.Do(func() {
		go func() {
			for kind := range c.workCh {
				var err error
				switch kind {
				case runTaskStart:
					err = c.runner.Start(context.Background())
				case runTaskStop:
					err = c.runner.Stop()
				}
				c.resultCh <- runResult{kind: kind, err: err}
			}
		}()
	})
}

// Enable requests a run and locks the config panel. Idempotent.
func (c *RunPresenter) Enable() {
	if !c.ready() || c.model.Enabled() {
		return
	}
	c.ensureWorker()
	c.model.SetEnabled(true)
	c.view.SetError("")
	c.view.ConfigEditable(false)
	c.workCh <- runTaskStart
}

// Disable requests a stop, resets the preview and unlocks the config
// panel. Idempotent.
func (c *RunPresenter) Disable() {
	if !c.ready() || !c.model.Enabled() {
		return
	}
	c.ensureWorker()
	c.model.SetEnabled(false)
	c.workCh <- runTaskStop
	c.view.PreviewReset()
	c.view.ConfigEditable(true)
}

// Toggle flips enabled state delegating to Enable/Disable.
func (c *RunPresenter) Toggle() {
	if !c.ready() {
		return
	}
	if c.model.Enabled() {
		c.Disable()
		return
	}
	c.Enable()
}

// Tick applies finished requests. A failed start returns the toggle to the
// disabled state and shows the error.
func (c *RunPresenter) Tick() {
	if !c.ready() {
		return
	}
	for {
		select {
		case res := <-c.resultCh:
			c.apply(res)
		default:
			return
		}
	}
}

func (c *RunPresenter) apply(res runResult) {
	c.applied++
	if res.err == nil {
		return
	}
	if c.logger != nil {
		c.logger.Error("pipeline request failed", "start", res.kind == runTaskStart, "error", res.err)
	}
	c.view.SetError(res.err.Error())
	if res.kind == runTaskStart && c.model.Enabled() {
		c.model.SetEnabled(false)
		c.view.ConfigEditable(true)
	}
}
