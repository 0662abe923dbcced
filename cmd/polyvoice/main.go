// Polyvoice is a multi-voice speech daemon: it rewrites speech sequences
// sent by clients and speaks every language run with its own voice.
//
// Usage:
//
//	polyvoice [flags]
//	polyvoice --config /path/to/polyvoice.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/polyvoice/internal/config"
	"github.com/nadzzz/polyvoice/internal/detect"
	"github.com/nadzzz/polyvoice/internal/engine"
	"github.com/nadzzz/polyvoice/internal/engine/noop"
	"github.com/nadzzz/polyvoice/internal/engine/wyoming"
	"github.com/nadzzz/polyvoice/internal/health"
	"github.com/nadzzz/polyvoice/internal/synth"
	"github.com/nadzzz/polyvoice/internal/transport"
	grpctransport "github.com/nadzzz/polyvoice/internal/transport/grpc"
	httptransport "github.com/nadzzz/polyvoice/internal/transport/http"
	"github.com/nadzzz/polyvoice/internal/voice"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/polyvoice.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("polyvoice %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("polyvoice starting", "version", version)

	if err := run(cfg); err != nil {
		slog.Error("polyvoice failed", "error", err)
		os.Exit(1)
	}
	slog.Info("polyvoice stopped")
}

func run(cfg *config.Config) error {
	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	voices, err := voice.NewManager(cfg.Voices)
	if err != nil {
		return fmt.Errorf("loading voices: %w", err)
	}

	// Initialize the engine backend.
	var (
		eng    engine.Engine
		checks []health.Check
	)
	switch cfg.Engine.Backend {
	case "wyoming":
		out, closeOut, err := openOutput(cfg.Engine.Wyoming.Output)
		if err != nil {
			return err
		}
		defer closeOut()
		w := wyoming.New(cfg.Engine.Wyoming, voices, out)
		eng = w
		checks = append(checks, health.Check{Name: "wyoming", Fn: w.Ping})
		slog.Info("using wyoming engine",
			"endpoint", cfg.Engine.Wyoming.Endpoint,
			"language_endpoints", len(cfg.Engine.Wyoming.Endpoints))
	default:
		eng = noop.New()
		slog.Info("using noop engine")
	}

	detector := detect.NewScriptDetector(voices.Languages())
	s, err := synth.New(eng, voices, detector, synth.NewSettings(cfg.Speech))
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}
	defer s.Terminate()

	sink := synth.NewSink(s)
	s.Install(sink)
	svc := synth.NewService(s, sink)

	// Initialize enabled transports.
	var transports []transport.Transport
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port))
	}
	if len(transports) == 0 {
		return fmt.Errorf("no transports enabled, enable at least one in config")
	}

	g, gctx := errgroup.WithContext(ctx)

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort, checks...)
	g.Go(func() error { return healthServer.ListenAndServe(gctx) })

	// Start all transports.
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, svc); err != nil {
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("polyvoice ready",
		"transports", len(transports),
		"voices", len(voices.Voices()),
		"default_voice", voices.DefaultVoiceName(),
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal or a failed listener.
	<-gctx.Done()
	slog.Info("shutting down, draining...")
	healthServer.SetReady(false)

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}
	return g.Wait()
}

// openOutput resolves the PCM output: empty discards audio, "-" is stdout,
// anything else is a file.
func openOutput(path string) (io.Writer, func(), error) {
	switch path {
	case "":
		return io.Discard, func() {}, nil
	case "-":
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audio output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
