package app

import (
	"context"
	"errors"
	"time"

	"github.com/soocke/framerelay/debug"
)

const shutdownTimeout = 5 * time.Second

// StartDiagnostics starts the debug loggers when enabled in the config.
// They stop with ctx.
func (c *Container) StartDiagnostics(ctx context.Context) {
	if !c.Config.Debug || c.Logger == nil {
		return
	}
	debug.StartMemLogger(ctx, 5*time.Second, c.Logger)
	debug.StartGoroutineLogger(ctx, 5*time.Second, c.Logger)
}

// ServeHTTP starts the HTTP preview in the background when configured. The
// returned channel yields the server's exit error.
func (c *Container) ServeHTTP() <-chan error {
	errCh := make(chan error, 1)
	if c.Server == nil {
		return errCh
	}
	go func() { errCh <- c.Server.ListenAndServe(c.Config.HTTPAddr) }()
	return errCh
}

// Shutdown stops the pipeline and the HTTP server.
func (c *Container) Shutdown() error {
	err := c.Pipeline.Close()
	if c.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, c.Server.Shutdown(ctx))
	}
	return err
}

// Run starts the pipeline without a window and blocks until ctx is done or
// the HTTP server fails.
func (c *Container) Run(ctx context.Context) error {
	c.StartDiagnostics(ctx)
	httpErr := c.ServeHTTP()
	if err := c.Pipeline.Start(ctx); err != nil {
		return errors.Join(err, c.Shutdown())
	}
	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		runErr = err
	}
	if c.Logger != nil {
		c.Logger.Info("shutting down")
	}
	return errors.Join(runErr, c.Shutdown())
}
