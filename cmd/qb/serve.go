package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/config"
	"github.com/alfredjeanlab/quillbooking/internal/events"
	"github.com/alfredjeanlab/quillbooking/internal/metrics"
	"github.com/alfredjeanlab/quillbooking/internal/server"
	"github.com/alfredjeanlab/quillbooking/internal/store/postgres"
	quillsync "github.com/alfredjeanlab/quillbooking/internal/sync"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the QuillBooking HTTP and gRPC servers",
	GroupID: "system",
	// The server needs no client of its own.
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// teardown runs shutdown steps in reverse order of registration.
type teardown struct {
	logger *slog.Logger
	steps  []func() error
	names  []string
}

func (t *teardown) add(name string, fn func() error) {
	t.names = append(t.names, name)
	t.steps = append(t.steps, fn)
}

func (t *teardown) run() {
	for i := len(t.steps) - 1; i >= 0; i-- {
		if err := t.steps[i](); err != nil {
			t.logger.Error("shutdown step failed", "step", t.names[i], "err", err)
			continue
		}
		t.logger.Info("stopped", "component", t.names[i])
	}
}

// serve runs the servers until ctx is cancelled or a listener fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	down := &teardown{logger: logger}
	defer down.run()

	store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	down.add("store", store.Close)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	down.add("publisher", publisher.Close)

	m := metrics.New()
	quillServer := server.NewServer(store, publisher, m)
	quillServer.ConfirmURL = cfg.ConfirmURL

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           quillServer.NewHTTPHandler(cfg.AuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	failed := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			failed <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	down.add("gRPC server", func() error {
		grpcServer.GracefulStop()
		return nil
	})
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	down.add("HTTP server", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if scheduler := startSync(ctx, cfg, store, m, logger); scheduler != nil {
		down.add("sync scheduler", func() error {
			scheduler.Stop()
			return nil
		})
	}
	// Registered last so load balancers see NOT_SERVING before anything stops.
	down.add("health", func() error {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		return nil
	})

	if cfg.AuthToken == "" {
		logger.Warn("admin routes are unauthenticated (QUILL_AUTH_TOKEN not set)")
	}
	logger.Info("quillbooking server started", "grpc_addr", cfg.GRPCAddr, "http_addr", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))
		return nil
	case err := <-failed:
		logger.Error("server failed, shutting down", "err", err)
		return err
	}
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Info("events disabled (QUILL_NATS_URL not set)")
		return &events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.Info("events enabled", "nats_url", cfg.NATSURL)
	return pub, nil
}

// startSync starts the backup scheduler when an interval and at least one
// destination are configured. It returns nil otherwise.
func startSync(ctx context.Context, cfg *config.Config, store *postgres.PostgresStore, m *metrics.Metrics, logger *slog.Logger) *quillsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []quillsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := quillsync.NewS3Destination(ctx, quillsync.S3Options{
			Bucket:         cfg.SyncS3Bucket,
			Key:            cfg.SyncS3Key,
			Region:         cfg.SyncS3Region,
			Endpoint:       cfg.SyncS3Endpoint,
			SnapshotPrefix: cfg.SyncS3Snapshot,
		})
		if err != nil {
			logger.Error("S3 sync destination disabled", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "target", s3Dest.String(), "snapshots", cfg.SyncS3Snapshot)
		}
	}
	if cfg.SyncFile != "" {
		dests = append(dests, quillsync.NewFileDestination(cfg.SyncFile))
		logger.Info("sync file destination enabled", "path", cfg.SyncFile)
	}
	if len(dests) == 0 {
		return nil
	}

	scheduler := quillsync.NewScheduler(store, dests, cfg.SyncInterval, logger)
	scheduler.OnRun = func(o quillsync.Outcome) { m.SyncRuns.WithLabelValues(string(o)).Inc() }
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}
