// Command passlessd runs the passwordless auth agent as a local daemon.
//
// It exposes the message surface over HTTP on a loopback address:
//
//	POST /v1/message — request envelopes (InitiateOTP, VerifyOTP, ...)
//	GET  /v1/events  — server-sent auth state broadcasts
//	GET  /healthz    — liveness
//	GET  /metrics    — Prometheus text exposition (when metrics are enabled)
//
// Run:
//
//	passlessd -config passless.yaml
//
// With no -config flag the built-in defaults apply, which still require
// provider.base_url and provider.client_id via PASSLESS_BASE_URL and
// PASSLESS_CLIENT_ID.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/passless/passless"
	"github.com/passless/passless/internal/logging"
	"github.com/passless/passless/metrics/export/prometheus"
	"github.com/passless/passless/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config; empty uses defaults plus PASSLESS_* env")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.Log.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, cleanupRedis, err := openRedis(cfg.Storage.RedisAddr)
	if err != nil {
		return err
	}
	defer cleanupRedis()

	events := passless.NewFanoutSink()
	machine, err := passless.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithBroadcastSink(events).
		Build()
	if err != nil {
		return fmt.Errorf("build machine: %w", err)
	}
	defer machine.Close()

	scheduler := router.NewScheduler(machine)
	defer scheduler.Close()

	rt := router.NewRouter(machine, scheduler)
	if err := rt.Startup(ctx); err != nil {
		return fmt.Errorf("startup reconcile: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", router.Handler(rt, events))
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", prometheus.NewPrometheusExporter(machine).Handler())
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("daemon", "listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info("daemon", "shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func loadConfig(path string) (passless.Config, error) {
	if path != "" {
		return passless.LoadConfig(path)
	}
	cfg := passless.Config{}
	cfg.Provider.BaseURL = os.Getenv("PASSLESS_BASE_URL")
	cfg.Provider.ClientID = os.Getenv("PASSLESS_CLIENT_ID")
	cfg.Provider.Audience = os.Getenv("PASSLESS_AUDIENCE")
	return cfg, nil
}

// openRedis connects to the configured instance, or starts an embedded one
// for single-process installs where no Redis is running.
func openRedis(addr string) (*redis.Client, func(), error) {
	if addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		logging.Info("daemon", "using redis at %s", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded redis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logging.Info("daemon", "using embedded redis at %s", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}
