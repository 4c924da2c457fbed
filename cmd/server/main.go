package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reorder-service/config"
	"reorder-service/internal/api"
	"reorder-service/internal/broker"
	"reorder-service/internal/models"
	"reorder-service/internal/redisclient"
	"reorder-service/internal/service"
	"reorder-service/internal/store"
	"reorder-service/internal/util"
	"reorder-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting reorder service", zap.String("env", cfg.Server.Env))

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer("reorder-service", cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Store ready", zap.String("driver", cfg.Store.Driver))

	var (
		locker      service.Locker = service.NewMemoryLocker()
		dedup       broker.Deduplicator
		redisClient *redisclient.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = redisClient
		dedup = redisClient
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	bus := broker.NewBus()
	var publisher broker.Publisher = bus
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = broker.NewKafkaPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))
	}

	settings := settingsFrom(cfg.Business)
	svc := api.Services{
		Ledger:       service.NewInventoryLedger(db, publisher),
		Catalog:      service.NewCatalogService(db, publisher),
		BOMs:         service.NewBOMService(db),
		Reorders:     service.NewReorderService(db, publisher, settings),
		Purchases:    service.NewPurchaseService(db, publisher, settings),
		Suppliers:    service.NewSupplierService(db, publisher, settings),
		Orchestrator: service.NewProductionOrchestrator(db, publisher, locker, settings),
		Notifier:     service.NewVendorNotifier(db, publisher),
	}

	broker.Subscribe(bus, func(ctx context.Context, e *models.MaterialAvailableEvent) error {
		return svc.Orchestrator.HandleMaterialAvailable(ctx, e)
	})
	broker.Subscribe(bus, func(ctx context.Context, e *models.InventoryChangedEvent) error {
		return svc.Reorders.HandleInventoryChanged(ctx, e)
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var eventWorker *worker.EventWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		eventWorker = worker.NewEventWorker(consumer, broker.NewEventHandler(bus, dedup, cfg.Business.EventDedupTTL))
		go func() {
			if err := eventWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Event worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Business.SweepInterval > 0 {
		sweeper := worker.NewSweeper(svc.Reorders, svc.Orchestrator, cfg.Business.SweepInterval)
		go func() {
			if err := sweeper.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Sweeper error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(svc, func(ctx context.Context) error {
		if redisClient != nil {
			return redisClient.Ping(ctx)
		}
		return nil
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if eventWorker != nil {
		if err := eventWorker.Stop(); err != nil {
			logger.Error("Failed to stop event worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Driver != "postgres" {
		return store.NewMemory(), nil
	}

	backend, err := store.NewPostgresBackend(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := backend.Migrate(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return store.New(backend), nil
}

func settingsFrom(b config.BusinessConfig) service.Settings {
	return service.Settings{
		DefaultWarehouseID:      b.DefaultWarehouseID,
		DefaultSupplierID:       b.DefaultSupplierID,
		SupplierLeadTime:        time.Duration(b.SupplierLeadTimeDays) * 24 * time.Hour,
		ProductionLeadTime:      time.Duration(b.ProductionLeadTimeDays) * 24 * time.Hour,
		ReorderFallbackQuantity: b.ReorderFallbackQuantity,
		AutoReorder:             b.AutoReorder,
		PlanLockTTL:             b.PlanLockTTL,
	}
}
