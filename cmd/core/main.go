package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/http"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/eventbus"
	kafka_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/kafka"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	grpcpool "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. 初始化 logger
	lg, closer, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	lg.Info("server exited")
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("core", registry)

	// 3. 帳本儲存層
	ledger, closeLedger, err := openLedger(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeLedger()

	// 4. commit 後的事件出口
	var sink eventbus.Sink = eventbus.LogSink{Logger: lg}
	if cfg.Kafka.Enabled {
		publisher := kafka_adapter.NewPublisher(kafka_adapter.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		defer publisher.Close()
		sink = publisher
		lg.Info("kafka publisher enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	dispatcher := eventbus.NewDispatcher(sink,
		eventbus.WithQueueSize(cfg.Kafka.QueueSize),
		eventbus.WithBatch(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		eventbus.WithObserver(m),
		eventbus.WithLogger(lg),
	)
	// 派送迴圈在 server 都停止後才結束，確保最後的事件也送出
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatcher.Start(dispatchCtx)
	defer func() {
		stopDispatch()
		<-dispatcher.Done()
	}()

	// 5. 初始化 UseCase
	core := usecase.NewCoreUseCase(ledger,
		usecase.WithPublisher(dispatcher),
		usecase.WithObserver(m),
		usecase.WithLogger(lg),
		usecase.WithRetryPolicy(usecase.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
		}),
	)
	tokens := identity.NewTokenIssuer(identity.TokenConfig{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	sessions := identity.NewService(core, tokens, cfg.Auth.BcryptCost)

	// 6. Driving Adapters
	grpcServer := grpc_adapter.NewServer(grpc_adapter.NewGrpcServer(core, sessions), sessions, lg, m,
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             grpcpool.KeepaliveTime / 2,
			PermitWithoutStream: true,
		}),
	)
	reflection.Register(grpcServer)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           http_adapter.NewRouter(http_adapter.NewHandler(core, sessions, lg), m, m.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.Server.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("starting gRPC server", "addr", cfg.Server.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		lg.Info("starting HTTP server", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		httpErr := httpServer.Shutdown(shutdownCtx)
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return httpErr
	})
	return g.Wait()
}

// openLedger 依設定建立帳本後端，回傳的 close 負責釋放底層資源
func openLedger(ctx context.Context, cfg *config.Config, lg *slog.Logger) (usecase.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		if err := os.MkdirAll(filepath.Dir(cfg.Ledger.WALPath), 0o750); err != nil {
			return nil, nil, fmt.Errorf("create wal dir: %w", err)
		}
		walFile, err := wal.Open(cfg.Ledger.WALPath)
		if err != nil {
			return nil, nil, err
		}
		ledger, err := memory_adapter.NewMutexLedger(memory_adapter.WithWAL(walFile))
		if err != nil {
			walFile.Close()
			return nil, nil, fmt.Errorf("recover memory ledger: %w", err)
		}
		lg.Info("memory ledger ready", "wal", cfg.Ledger.WALPath)
		return ledger, func() { walFile.Close() }, nil

	case config.BackendMySQL:
		client, err := database.NewClient(ctx, cfg.Database, lg)
		if err != nil {
			return nil, nil, err
		}
		ledger := mysql_adapter.NewSQLLedger(client)
		if cfg.Ledger.AutoMigrate {
			if err := ledger.Migrate(ctx); err != nil {
				client.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		lg.Info("sql ledger ready", "driver", cfg.Database.Driver)
		return ledger, func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("invalid ledger backend: %s", cfg.Ledger.Backend)
	}
}
