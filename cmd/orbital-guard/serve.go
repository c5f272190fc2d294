package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/internal/config"
	"github.com/signalsfoundry/orbital-guard/internal/httpapi"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/internal/nbi"
	"github.com/signalsfoundry/orbital-guard/internal/observability"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation session with the HTTP API and gRPC hazard service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPC.Addr), logging.Err(err))
				return err
			}
			httpLis, err := net.Listen("tcp", cfg.HTTP.Addr)
			if err != nil {
				_ = grpcLis.Close()
				log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.HTTP.Addr), logging.Err(err))
				return err
			}
			return run(ctx, cfg, log, grpcLis, httpLis)
		},
	}
	cmd.Flags().String("http-addr", ":8080", "HTTP API listen address")
	cmd.Flags().String("grpc-addr", ":9090", "gRPC hazard service listen address")
	cmd.Flags().String("metrics-addr", "", "Standalone Prometheus listener (empty: /metrics on the HTTP API only)")
	cmd.Flags().String("storage", "memory", "Conjunction store: none, memory, sqlite, postgres")
	bindFlags(c.v, cmd.Flags().Lookup, map[string]string{
		"http.addr":    "http-addr",
		"grpc.addr":    "grpc-addr",
		"metrics.addr": "metrics-addr",
		"storage.type": "storage",
	})
	return cmd
}

// run serves until ctx is cancelled, then shuts everything down gracefully.
func run(ctx context.Context, cfg config.Config, log logging.Logger, grpcLis, httpLis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	apiCollector, err := observability.NewAPICollector(reg)
	if err != nil {
		return fmt.Errorf("initialise API metrics: %w", err)
	}
	hazardCollector, err := observability.NewHazardCollector(reg)
	if err != nil {
		return fmt.Errorf("initialise hazard metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.Metrics.Addr, observability.HandlerFor(reg), log)

	rt, err := buildRuntime(ctx, cfg, log, hazardCollector)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background(), log)

	hazardSvc := nbi.NewHazardService(rt.catalog, core.NewEvaluator(cfg.Hazard.Thresholds()), rt.clock, log)
	grpcServer := nbi.NewServer(hazardSvc, apiCollector, log)

	api := httpapi.New(rt.session,
		httpapi.WithPredictor(hazardSvc),
		httpapi.WithCollector(apiCollector),
		httpapi.WithMetricsHandler(observability.HandlerFor(reg)),
		httpapi.WithCORSOrigins(corsOrigins(cfg.HTTP.CORSOrigins)),
		httpapi.WithLogger(log),
	)
	httpSrv := api.HTTPServer(httpLis.Addr().String())

	if err := rt.session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	errCh := make(chan error, 2)
	log.Info(ctx, "starting gRPC hazard service", logging.String("addr", grpcLis.Addr().String()))
	go func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	log.Info(ctx, "starting HTTP API", logging.String("addr", httpLis.Addr().String()))
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.Error(ctx, "server exited", logging.Err(runErr))
	}

	log.Info(context.Background(), "shutting down")
	rt.session.Stop()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "HTTP shutdown failed", logging.Err(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

// corsOrigins treats a lone "*" as allow-all.
func corsOrigins(origins []string) []string {
	if len(origins) == 1 && origins[0] == "*" {
		return nil
	}
	return origins
}

func serveMetrics(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
