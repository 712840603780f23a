package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/framerelay/app"
	"github.com/soocke/framerelay/config"
	"github.com/soocke/framerelay/domain/process"
	"github.com/soocke/framerelay/ui/window"
)

func main() {
	cfgPath := flag.String("config", "framerelay.json", "path to the JSON config file")
	src := flag.String("source", "", "frame source: synthetic or screen")
	op := flag.String("op", "", "processing operation")
	fps := flag.Int("fps", 0, "source frame rate")
	httpAddr := flag.String("http", "", "serve the HTTP preview on this address")
	preview := flag.Bool("preview", false, "open the Tk preview window")
	dbg := flag.Bool("debug", false, "debug logging and memory diagnostics")
	list := flag.Bool("list-ops", false, "print available operations and exit")
	flag.Parse()

	if *list {
		for _, n := range process.Names() {
			fmt.Println(n)
		}
		return
	}

	// Base config from defaults, then the file, then flags.
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config %s: %v\n", *cfgPath, err)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *src
		case "op":
			cfg.Operation = *op
		case "fps":
			cfg.FPS = *fps
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "preview":
			cfg.Preview = *preview
		case "debug":
			cfg.Debug = *dbg
		}
	})

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)

	c, err := app.BuildContainer(cfg, *cfgPath, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if cfg.Preview {
		ctx, cancel := context.WithCancel(context.Background())
		c.StartDiagnostics(ctx)
		httpErr := c.ServeHTTP()
		go func() {
			if err := <-httpErr; err != nil {
				logger.Error("http preview failed", "error", err)
			}
		}()
		window.New("Frame Relay", 900, 720, c).Run()
		cancel()
		if err := c.Shutdown(); err != nil {
			logger.Error("shutdown", "error", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := c.Run(ctx); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}
