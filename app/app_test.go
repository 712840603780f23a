package app

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soocke/framerelay/config"
	"github.com/soocke/framerelay/domain/pipeline"
	"github.com/soocke/framerelay/domain/process"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Width, cfg.Height = 64, 48
	cfg.FPS = 120
	cfg.Operation = "gray"
	cfg.OpenTimeoutMs = 1000
	return cfg
}

func TestBuildContainer_UnknownOperation(t *testing.T) {
	cfg := testConfig()
	cfg.Operation = "sharpen"
	if _, err := BuildContainer(cfg, "", discardLogger); !errors.Is(err, process.ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestBuildContainer_ServerOnlyWhenConfigured(t *testing.T) {
	c, err := BuildContainer(testConfig(), "", discardLogger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.Server != nil || c.Sinks.Len() != 1 {
		t.Fatalf("unexpected server without http_addr (sinks=%d)", c.Sinks.Len())
	}
	cfg := testConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	c, err = BuildContainer(cfg, "", discardLogger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.Server == nil || c.Sinks.Len() != 2 {
		t.Fatalf("server not wired (sinks=%d)", c.Sinks.Len())
	}
}

func TestRun_ProcessesUntilCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	c, err := BuildContainer(cfg, "", discardLogger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for c.Display.Seq() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Display.Seq() == 0 {
		cancel()
		t.Fatalf("no result published")
	}
	select {
	case <-c.Preview.C():
	default:
		t.Fatalf("preview notifier never invalidated")
	}

	rec := httptest.NewRecorder()
	c.Server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/frame.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("frame.jpg = %d", rec.Code)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
	if c.Pipeline.State() != pipeline.StateIdle {
		t.Fatalf("expected idle after shutdown, got %v", c.Pipeline.State())
	}
	if st := c.Pipeline.Stats(); st.Processed == 0 {
		t.Fatalf("no frames processed: %+v", st)
	}
}

func TestRegion_OnlyForTracker(t *testing.T) {
	c, err := BuildContainer(testConfig(), "", discardLogger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := c.Region(); ok {
		t.Fatalf("gray operation should not report a region")
	}
	cfg := testConfig()
	cfg.Operation = "track"
	c, err = BuildContainer(cfg, "", discardLogger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if r, ok := c.Region(); ok || r != (image.Rectangle{}) {
		t.Fatalf("tracker without frames should report nothing, got %v %v", r, ok)
	}
}
