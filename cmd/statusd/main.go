package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ace-status/internal/app"
	"ace-status/internal/config"
	"ace-status/internal/metrics"
	"ace-status/internal/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	offline := flag.Bool("offline", false, "serve feeds from the embedded seed fixtures")
	flag.Parse()

	// Load configuration from .env, optional YAML file and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *offline {
		cfg.Offline = true
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcol := metrics.NewCollector(cfg.CacheTTL)

	a, err := app.New(ctx, cfg, mcol)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer a.Close()

	// /metrics is mounted on the API router unless a separate address is set.
	apiMetrics := mcol.Handler()
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.ListenAddr {
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
		apiMetrics = nil
	}

	h := server.NewHandler(a.Service, a.Cache, a.Options)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(h, apiMetrics, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("status API listening on %s (cache ttl %s)", cfg.ListenAddr, a.Cache.TTL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()

	// Block until context cancelled
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}
