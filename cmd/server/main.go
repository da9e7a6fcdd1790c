package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/jersey-pos/internal/adapter/handler"
	"github.com/rl1809/jersey-pos/internal/adapter/storage"
	"github.com/rl1809/jersey-pos/internal/config"
	"github.com/rl1809/jersey-pos/internal/core/broadcast"
	"github.com/rl1809/jersey-pos/internal/core/coupon"
	"github.com/rl1809/jersey-pos/internal/core/ledger"
	"github.com/rl1809/jersey-pos/internal/core/service"
	"github.com/rl1809/jersey-pos/internal/core/sku"
	"github.com/rl1809/jersey-pos/internal/logger"
	"github.com/rl1809/jersey-pos/internal/observability"
	"github.com/rl1809/jersey-pos/internal/port"
	"github.com/rl1809/jersey-pos/internal/queue"
	"github.com/rl1809/jersey-pos/internal/worker"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "jersey-pos: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg.Log.ToLoggerOptions()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingOptions{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.App.Name,
		ServiceVersion: version,
		Environment:    cfg.App.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	// Database
	db, err := storage.Open(cfg.Database.ToStorageOptions())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer storage.Close(db)
	logger.Infow("database_connected", "driver", cfg.Database.Driver)
	store := storage.NewGormStore(db)

	// Redis is optional; without it the idempotency guard lives in memory
	var rdb *redis.Client
	var guard port.IdempotencyGuard = storage.NewMemoryIdempotency(cfg.Idempotency.TTL)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		guard = storage.NewRedisIdempotency(rdb, cfg.Idempotency.TTL)
		logger.Infow("redis_connected", "addr", cfg.Redis.Addr())
	}

	queueClient := queue.NewClient(&cfg.Queue)
	defer queueClient.Close()

	// Core
	hub := broadcast.NewHub(cfg.Broadcast.SubscriberBuffer)
	defer hub.Close()
	stock := ledger.New(ledger.WithCommitTimeout(cfg.Ledger.CommitTimeout))
	encoder := sku.NewEncoder(sku.NewRegistry())

	sales := service.NewSaleService(store, stock, hub,
		service.WithIdempotency(guard),
		service.WithNotifier(queueClient),
	)
	inventory := service.NewInventoryService(store, stock, hub, encoder, service.WithNotifier(queueClient))
	coupons := coupon.NewPool(store, hub)

	if err := inventory.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap inventory: %w", err)
	}
	if err := coupons.Load(ctx); err != nil {
		return fmt.Errorf("load coupons: %w", err)
	}
	logger.Infow("state_loaded", "skus", stock.Len(), "coupons_available", coupons.Len())

	var wg sync.WaitGroup

	relay, err := newRelay(cfg, rdb)
	if err != nil {
		return err
	}
	if relay != nil {
		defer relay.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			broadcast.Pump(ctx, hub, relay)
		}()
		logger.Infow("relay_started", "relay", relay.Name())
	}

	var workerSvc *worker.Service
	if queueClient.Enabled() {
		workerSvc, err = worker.NewService(&cfg.Queue, worker.NewConsumer(store))
		if err != nil {
			return fmt.Errorf("create worker: %w", err)
		}
		if err := workerSvc.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		logger.Infow("worker_started", "concurrency", cfg.Queue.Concurrency)
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor()))
	handler.RegisterTerminalServer(grpcServer, handler.NewGRPCHandler(sales, inventory, hub))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr())
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Infow("grpc_listening", "addr", cfg.Server.GRPCAddr())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Errorw("grpc_server_error", "error", err)
		}
	}()

	// HTTP server
	router, err := handler.NewRouter(handler.NewHTTPHandler(sales, inventory, coupons, hub), handler.RouterOptions{
		Mode:       cfg.Server.Mode,
		CouponRate: cfg.RateLimit.Coupons,
		Logger:     logger.Z(),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Infow("http_listening", "addr", cfg.Server.HTTPAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http_server_error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infow("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// closing the hub ends open SSE and Subscribe streams so Shutdown can finish
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http_shutdown", "error", err)
	}
	stopGRPC(grpcServer, 5*time.Second)
	if workerSvc != nil {
		if err := workerSvc.Stop(shutdownCtx); err != nil {
			logger.Warnw("worker_shutdown", "error", err)
		}
	}
	cancel()
	wg.Wait()

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warnw("tracing_shutdown", "error", err)
	}
	logger.Infow("stopped")
	return nil
}

func newRelay(cfg *config.Config, rdb *redis.Client) (port.Relay, error) {
	switch cfg.Broadcast.Relay {
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis relay requires redis.enabled")
		}
		return storage.NewRedisRelay(rdb, cfg.Broadcast.ChannelPrefix), nil
	case "kafka":
		return storage.NewKafkaRelay(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	default:
		return nil, nil
	}
}

// stopGRPC drains in-flight calls, forcing the stop once timeout passes.
func stopGRPC(s *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.Stop()
	}
}
