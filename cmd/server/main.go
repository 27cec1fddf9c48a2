package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	handlers "github.com/wekeepgrowing/settlement-service/internal/adapter/handler/http"
	"github.com/wekeepgrowing/settlement-service/internal/config"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/blockchain"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/cache"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/crypto"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/database"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/gateway/oppwa"
	grpcServer "github.com/wekeepgrowing/settlement-service/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/settlement-service/internal/infrastructure/http"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/messaging"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/tracing"
	"github.com/wekeepgrowing/settlement-service/internal/usecase"
	"github.com/wekeepgrowing/settlement-service/internal/worker"
	pkglogger "github.com/wekeepgrowing/settlement-service/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Until the configured logger exists
	boot := pkglogger.DefaultZapLogger()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		boot.Fatal("Failed to load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal("Invalid config", zap.Error(err))
	}

	// Initialize logger
	logger, err := pkglogger.NewZapLogger(cfg.Log)
	if err != nil {
		boot.Warn("Failed to initialize configured logger, using defaults", zap.Error(err))
		logger = boot
	}
	defer logger.Sync()

	tp, err := tracing.InitTracer(cfg.Tracing, cfg.Service.Version, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx, tp); err != nil {
			logger.Error("Failed to flush traces", zap.Error(err))
		}
	}()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repos := database.NewRepositories(db, logger)

	// Redis backs the payment lease and, optionally, event fan-out
	var redisClient redis.UniversalClient
	locker := cache.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		redisClient = client
		locker = cache.NewRedisLocker(client)
	} else {
		logger.Warn("Redis not configured, payment leases are local to this replica")
	}

	publisher, err := messaging.NewEventPublisher(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal("Failed to initialize event publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// Payment gateway
	gatewayClient := oppwa.NewClient(cfg.Gateway, logger)

	// Payout chain access
	adminKey, err := crypto.AdminPrivateKey(cfg.Payout)
	if err != nil {
		logger.Fatal("Failed to load admin wallet key", zap.Error(err))
	}
	var signer *blockchain.Signer
	if adminKey != "" {
		if signer, err = blockchain.NewSigner(adminKey); err != nil {
			logger.Fatal("Invalid admin wallet key", zap.Error(err))
		}
	} else {
		logger.Warn("Admin wallet key not configured, payouts will fail")
	}
	chains := blockchain.NewManager(cfg.Payout, blockchain.NewRegistry(cfg.Payout), signer, blockchain.NewDialer(cfg.Payout.RPCTimeout), logger)
	defer chains.Close()

	ids, err := usecase.NewSnowflakeGenerator(cfg.Service.NodeID)
	if err != nil {
		logger.Fatal("Failed to initialize id generator", zap.Error(err))
	}

	// Use cases
	payouts := usecase.NewPayoutEngine(chains, repos.Payment, repos.CryptoTransfer, m, logger)
	orchestrator := usecase.NewCaptureOrchestrator(repos.Payment, gatewayClient, payouts, publisher, m, logger)
	paymentService := usecase.NewPaymentService(repos.Payment, repos.CryptoTransfer, gatewayClient, payouts, ids, publisher, locker, m, logger)
	backOffice := usecase.NewBackOfficeService(repos.Payment, gatewayClient, publisher, m, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Reconciliation.Enabled {
		reconciler := worker.NewReconciliationWorker(cfg.Reconciliation, repos.Payment, gatewayClient, m, logger)
		go reconciler.Run(ctx)
	}

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, logger)
	httpSrv := httpServer.NewServer(cfg, logger, httpServer.Handlers{
		Payment: handlers.NewPaymentHandler(paymentService, backOffice, logger),
		Webhook: handlers.NewWebhookHandler(cfg.Webhook, orchestrator, repos.Webhook, locker, m, logger),
	}, m, reg)

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down servers...")
	cancel()
	grpcSrv.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	logger.Info("Servers shut down successfully")
}
