package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"qnetclient/bootstrap"
	"qnetclient/config"
	"qnetclient/crypto"
	"qnetclient/lightnode"
	"qnetclient/observability/logging"
	"qnetclient/observability/otel"
	"qnetclient/storage"
)

const passphraseEnv = "QNET_WALLET_PASSPHRASE"

func main() {
	var (
		configPath = flag.String("config", "./config.toml", "Path to the daemon configuration file")
		registerID = flag.String("register", "", "Register this node id on startup if no registration exists")
		env        = flag.String("env", "production", "Deployment environment label for logs and telemetry")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	var sink io.Writer = os.Stdout
	if cfg.LogFile != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	logger := logging.SetupWithWriter("qnet-lightd", *env, sink)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Endpoint != "" {
		shutdownTelemetry, err := otel.Init(ctx, otel.Config{
			ServiceName: "qnet-lightd",
			Environment: *env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     cfg.Telemetry.Headers,
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			logger.Error("telemetry init failed", "error", err.Error())
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err.Error())
			}
		}()
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("open state database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	signer := crypto.NewWalletSigner()
	if err := signer.UnlockFromKeystore(cfg.KeystorePath, os.Getenv(passphraseEnv)); err != nil {
		// The daemon still starts; challenges are dropped until an unlock.
		logger.Warn("wallet locked, challenges cannot be answered", "error", err.Error())
	}

	selector := bootstrap.NewSelector(cfg.BootstrapEndpoints...)
	if len(cfg.DNSSeeds) > 0 {
		if resolver, err := bootstrap.NewSeedResolver(""); err == nil {
			discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			discovered := resolver.Discover(discoverCtx, cfg.DNSSeeds)
			cancel()
			selector.Merge(discovered...)
			logger.Info("dns seed discovery finished",
				"seeds", len(cfg.DNSSeeds),
				"discovered", len(discovered),
				"endpoints", len(selector.Endpoints()))
		} else {
			logger.Warn("dns seed discovery unavailable", "error", err.Error())
		}
	}

	service := lightnode.NewService(lightnode.ServiceConfig{
		Client:   lightnode.NewClient(selector),
		Signer:   signer,
		Store:    lightnode.NewStore(db),
		Probes:   []lightnode.ChannelProbe{lightnode.NewUnifiedPushProbe(cfg.UnifiedPushEndpoint)},
		DeviceID: cfg.DeviceID,
		Logger:   logger,
	})

	if err := service.Resume(ctx); err != nil {
		logger.Error("resume registration", "error", err.Error())
		os.Exit(1)
	}
	if service.Registration() == nil && *registerID != "" {
		address, err := signer.Address()
		if err != nil {
			logger.Error("registration requires an unlocked wallet", "error", err.Error())
			os.Exit(1)
		}
		if err := service.Register(ctx, *registerID, address.String()); err != nil {
			logger.Error("register node", "node_id", *registerID, "error", err.Error())
			os.Exit(1)
		}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "%s\n", service.State())
	})
	router.Mount("/", lightnode.NewPushReceiver(service.Challenges(), logger).Routes())

	pushServer := &http.Server{
		Addr:              cfg.PushListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("push receiver listening", "addr", cfg.PushListenAddress)
		if err := pushServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("push receiver failed", "error", err.Error())
		}
	}()

	metricsServer := &http.Server{
		Addr:              cfg.MetricsListenAddress,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", cfg.MetricsListenAddress)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err.Error())
		}
	}()

	if cfg.WebsocketFeed {
		if reg := service.Registration(); reg != nil {
			feed := lightnode.NewChallengeFeed(selector, reg.NodeID, service.Challenges(), logger)
			go feed.Run(ctx)
		} else {
			logger.Warn("websocket feed enabled but no node is registered")
		}
	}

	go func() {
		ticker := time.NewTicker(time.Duration(cfg.PeriodicCheckSecs) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				if err := service.PeriodicCheck(checkCtx); err != nil {
					logger.Warn("periodic check failed", "error", err.Error())
				}
				cancel()
			}
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped", "error", err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pushServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("push receiver shutdown", "error", err.Error())
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err.Error())
	}
	logger.Info("shutdown complete")
}
