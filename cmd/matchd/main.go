// matchd serves the template-matching engine over HTTP and runs the health
// monitor against live screenshots.
package main

import (
	"context"
	"flag"
	"image"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/matchcore/internal/config"
	"github.com/GriffinCanCode/matchcore/internal/correlate"
	"github.com/GriffinCanCode/matchcore/internal/engine"
	"github.com/GriffinCanCode/matchcore/internal/grpcclient"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
	"github.com/GriffinCanCode/matchcore/internal/monitor"
	"github.com/GriffinCanCode/matchcore/internal/resilience"
	"github.com/GriffinCanCode/matchcore/internal/screen"
	"github.com/GriffinCanCode/matchcore/internal/server"
	"github.com/GriffinCanCode/matchcore/internal/templates"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// The startup benchmark runs on a full-HD synthetic frame so its cost is
// comparable to a real capture.
const (
	benchFrameW, benchFrameH = 1920, 1080
	benchMaxIterations       = 5
)

func main() {
	probe := flag.Bool("healthcheck", false, "probe a running matchd's gRPC health service and exit 0 if serving")
	flag.Parse()

	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if *probe {
		os.Exit(healthcheck(cfg.GRPCAddr))
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store := templates.NewStore(cfg.TemplateDir, cfg.TemplateScale)
	if err := store.Preload(cfg.HealthTemplate, cfg.EmptyTemplate, cfg.RespawnTemplate); err != nil {
		// Requests may still carry their own templates.
		slog.Warn("default templates unavailable", "error", err)
	}

	eng := engine.New(
		engine.WithCorrelator(correlate.Default()),
		engine.WithLogger(engine.NewSlogLogger(logger)),
		engine.WithMaxParallel(cfg.MaxParallel),
		engine.WithThresholds(engine.Thresholds{
			Bar:     cfg.BarThreshold,
			Empty:   cfg.EmptyThreshold,
			Respawn: cfg.RespawnThreshold,
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthSrv := health.NewServer()
	mon, monDone := startMonitor(ctx, cfg, eng, store, healthSrv)

	// Create HTTP/WebSocket server
	var srvMon server.Monitor
	if mon != nil {
		srvMon = mon
	}
	srv := server.New(cfg, eng, store, srvMon)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("matchd starting", "http", cfg.HTTPAddr, "grpc", cfg.GRPCAddr, "method", cfg.MatchMethod)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		slog.Error("grpc listen failed", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	go startupBenchmark(ctx, cfg, eng, store)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	healthSrv.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	// Run returns after the batcher has flushed its last frames.
	select {
	case <-monDone:
	case <-shutdownCtx.Done():
		slog.Warn("monitor did not stop in time")
	}
	slog.Info("shutdown complete")
}

// startMonitor launches the capture loop and ties the gRPC health status to
// the capture breaker. It returns a nil monitor when monitoring is off or
// unavailable; done closes once the loop has fully stopped.
func startMonitor(ctx context.Context, cfg *config.Config, eng *engine.Engine, store *templates.Store, hs *health.Server) (*monitor.Monitor, <-chan struct{}) {
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	done := make(chan struct{})
	if !cfg.MonitorEnabled {
		close(done)
		return nil, done
	}

	capturer, err := screen.New()
	if err != nil {
		slog.Warn("screen capture unavailable, monitor disabled", "error", err)
		close(done)
		return nil, done
	}
	mon, err := monitor.New(cfg, eng, store, capturer)
	if err != nil {
		slog.Error("monitor setup failed", "error", err)
		_ = capturer.Close()
		close(done)
		return nil, done
	}

	mon.Breaker().OnStateChange(func(_, to resilience.State) {
		st := healthpb.HealthCheckResponse_SERVING
		if to == resilience.Open {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
	})

	go func() {
		defer close(done)
		if err := mon.Run(ctx); err != nil {
			slog.Error("monitor error", "error", err)
		}
	}()
	return mon, done
}

// startupBenchmark times the health template against a synthetic frame so
// the log shows what one detection costs on this machine, and warns when that
// cost cannot keep up with CAPTURE_RATE.
func startupBenchmark(ctx context.Context, cfg *config.Config, eng *engine.Engine, store *templates.Store) {
	tmpl, err := store.Get(cfg.HealthTemplate)
	if err != nil {
		slog.Debug("startup benchmark skipped", "error", err)
		return
	}
	if tmpl.Width > benchFrameW || tmpl.Height > benchFrameH {
		slog.Debug("startup benchmark skipped: template larger than synthetic frame")
		return
	}

	frame := imaging.New(benchFrameW, benchFrameH, tmpl.Channels)
	r := rand.New(rand.NewSource(1))
	for i := range frame.Pix {
		frame.Pix[i] = byte(r.Intn(256))
	}
	frame.Paste(tmpl, image.Pt(benchFrameW/3, benchFrameH/4))

	res, err := eng.Benchmark(ctx, frame.AsBuffer(), tmpl.AsBuffer(), min(cfg.BenchmarkIterations, benchMaxIterations))
	if err != nil {
		slog.Warn("startup benchmark failed", "error", err)
		return
	}
	cost := time.Duration(res.AvgTimeMS * float64(time.Millisecond))
	if err := cfg.CheckCadence(cost); cfg.MonitorEnabled && err != nil {
		slog.Warn("capture rate exceeds detection throughput", "error", err)
	}
}

// healthcheck asks the daemon at addr for its status and returns the process
// exit code.
func healthcheck(addr string) int {
	if host, port, err := net.SplitHostPort(addr); err == nil && host == "" {
		addr = net.JoinHostPort("localhost", port)
	}
	c, err := grpcclient.New(addr)
	if err != nil {
		slog.Error("healthcheck dial failed", "addr", addr, "error", err)
		return 1
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ok, err := c.Serving(ctx)
	if err != nil {
		slog.Error("healthcheck failed", "addr", addr, "error", err)
		return 1
	}
	if !ok {
		slog.Warn("matchd not serving", "addr", addr)
		return 1
	}
	return 0
}
