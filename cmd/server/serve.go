package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/stock-ledger/internal/adapter/handler"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/metrics"
)

const healthInterval = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
		slog.Info("connections closed")
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ledger := service.NewLedgerService(store, store, m)
	catalog := service.NewCatalogService(store, store, m)

	// Seed the stock gauge so /metrics is complete after a restart.
	if records, err := ledger.CurrentStock(ctx); err == nil {
		for _, r := range records {
			m.SetStock(r.Material, r.Quantity)
		}
	} else {
		slog.Warn("failed to load stock for metrics", "error", err)
	}

	serveErr := make(chan error, 2)

	// gRPC server
	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(handler.UnaryLoggingInterceptor))
		handler.RegisterLedgerServer(grpcServer, handler.NewGRPCHandler(ledger))
		hs := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, hs)
		go handler.WatchStoreHealth(ctx, hs, store, healthInterval)

		go func() {
			slog.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				serveErr <- err
			}
		}()
	}

	// HTTP server
	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		handler.NewHTTPHandler(ledger, catalog, store).Register(mux)
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler.WithMiddleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serveErr:
		slog.Error("server failed", "error", err)
		shutdown(httpServer, grpcServer, cfg.ShutdownTimeout)
		return err
	}

	shutdown(httpServer, grpcServer, cfg.ShutdownTimeout)
	return nil
}

func shutdown(httpServer *http.Server, grpcServer *grpc.Server, timeout time.Duration) {
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
		slog.Info("HTTP server stopped")
	}

	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(timeout):
			grpcServer.Stop()
		}
		slog.Info("gRPC server stopped")
	}
}
