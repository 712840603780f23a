// Package app is the composition root: it builds the pipeline and its sinks
// from a config and runs them headless.
package app

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/framerelay/config"
	"github.com/soocke/framerelay/domain/display"
	"github.com/soocke/framerelay/domain/pipeline"
	"github.com/soocke/framerelay/domain/process"
	"github.com/soocke/framerelay/domain/source"
	"github.com/soocke/framerelay/server"
)

// Container assembles the pipeline, the display buffer and the sinks that
// observe it.
type Container struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger

	Operation process.Operation
	Display   *display.Buffer
	// Preview is invalidated for the Tk window; Sinks fans out to it and to
	// the HTTP server when one is configured.
	Preview  *display.Notifier
	Sinks    *display.Fanout
	Pipeline *pipeline.Pipeline
	Server   *server.Server
}

// BuildContainer constructs all components. Nothing is started.
func BuildContainer(cfg *config.Config, cfgPath string, logger *slog.Logger) (*Container, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: config: %w", err)
	}
	c := &Container{Config: cfg, ConfigPath: cfgPath, Logger: logger}

	op, err := process.New(cfg.Operation, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if md, ok := op.(*process.MotionDetector); ok && logger != nil {
		md.OnEvent = func(ev process.MotionEvent) {
			logger.Info("motion detected", "seq", ev.Seq, "mean_diff", ev.MeanDiff, "changed_ratio", ev.ChangedRatio)
		}
	}
	c.Operation = op
	c.Display = display.NewBuffer()
	c.Preview = display.NewNotifier()
	c.Sinks = display.NewFanout(c.Preview)

	c.Pipeline, err = pipeline.New(pipeline.Deps{
		Config:    cfg,
		NewSource: func() (source.Source, error) { return source.New(cfg, logger) },
		Operation: op,
		Display:   c.Display,
		Sink:      c.Sinks,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if cfg.HTTPAddr != "" {
		c.Server = server.New(c.Display, c.Pipeline, logger, server.Options{})
		c.Sinks.Add(c.Server)
	}
	return c, nil
}

// Region reports the tracked box when the operation is a tracker.
func (c *Container) Region() (image.Rectangle, bool) {
	t, ok := c.Operation.(*process.Tracker)
	if !ok {
		return image.Rectangle{}, false
	}
	r := t.Last()
	return r.Box, r.Found
}
