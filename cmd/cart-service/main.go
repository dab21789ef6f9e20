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

	"github.com/fjod/gomarketplace/internal/cart"
	"github.com/fjod/gomarketplace/internal/config"
	"github.com/fjod/gomarketplace/internal/events"
	"github.com/fjod/gomarketplace/internal/health"
	carthttp "github.com/fjod/gomarketplace/internal/http"
	"github.com/fjod/gomarketplace/internal/kv"
	"github.com/fjod/gomarketplace/internal/telemetry"
	"github.com/fjod/gomarketplace/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "cart-service"

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service: serviceName,
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	if err := run(cfg, log); err != nil {
		log.Error("cart service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	store, err := kv.Open(ctx, cfg.KV, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.KV.Backend, err)
	}
	defer store.Close()
	log.Info("storage ready", "backend", cfg.KV.Backend)

	cartStore := cart.New(store,
		cart.WithKey(cfg.CartKey),
		cart.WithLogger(log),
		cart.WithWriteTimeout(cfg.WriteTimeout),
	)
	// A failed read still leaves a working, empty cart.
	if err := cartStore.Hydrate(ctx); err != nil {
		log.Warn("starting with an empty cart", "error", err)
	}

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(events.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...), cfg.CartKey, log)
		cartStore.Subscribe(publisher.Observe)
		log.Info("publishing cart events", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      carthttp.NewRouter(cartStore, cfg.RequestTimeout, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	watcher := health.NewWatcher(healthServer, serviceName, store, 15*time.Second, log)
	watcher.Start()

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on grpc port %s: %w", cfg.GRPCPort, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("grpc health server listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down cart service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		watcher.Stop()
		grpcServer.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	errServe := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := cartStore.Close(closeCtx); err != nil {
		log.Error("failed to flush cart on shutdown", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error("failed to close event publisher", "error", err)
		}
	}

	log.Info("cart service stopped")
	return errServe
}
