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

	"workshop-service/config"
	"workshop-service/internal/api"
	"workshop-service/internal/broker"
	"workshop-service/internal/money"
	"workshop-service/internal/redisclient"
	"workshop-service/internal/service"
	"workshop-service/internal/store"
	"workshop-service/internal/store/memstore"
	"workshop-service/internal/util"
	"workshop-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting workshop service", zap.String("currency", cfg.Business.Currency))

	tp, err := util.InitTracer("workshop-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	taxRate, err := money.Parse(cfg.Business.DefaultTaxRate)
	if err != nil {
		log.Fatalf("Invalid DEFAULT_TAX_RATE: %v", err)
	}

	var repo store.Repository
	switch cfg.Database.Driver {
	case "memory":
		repo = memstore.New()
		logger.Warn("Using in-memory store; data is lost on restart")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(context.Background()); err != nil {
				log.Fatalf("Failed to migrate database: %v", err)
			}
		}
		repo = db
	}
	logger.Info("Store ready", zap.String("driver", cfg.Database.Driver))

	deps := service.Deps{
		Repo:      repo,
		Sequences: service.NewSequenceGenerator(repo, cfg.Business.SequenceMaxAttempts, cfg.Business.SequenceBackoff),
	}

	var (
		redisClient *redisclient.Client
		stock       api.StockReader
		locker      worker.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable; running without cache and idempotency keys", zap.Error(err))
		} else {
			defer redisClient.Close()
			deps.StockCache = redisClient
			deps.Idempotency = redisClient
			stock = redisClient
			locker = redisClient
			logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	var producer *broker.Producer
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		deps.Events = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))
	}

	inventoryService := service.NewInventoryService(deps)
	quotationService := service.NewQuotationService(deps, inventoryService, taxRate)
	billingService := service.NewBillingService(deps, cfg.Business.IdempotencyTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var eventWorker *worker.EventWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		eventWorker = worker.NewEventWorker(consumer, repo, billingService, locker, worker.Options{
			AutoBill: cfg.Business.AutoBillOnRepairComplete,
		})
		go func() {
			if err := eventWorker.Start(workerCtx); err != nil {
				logger.Error("Event worker stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(api.Services{
		Quotations: quotationService,
		Inventory:  inventoryService,
		Billing:    billingService,
	}, repo, stock, cfg.Business.CurrencySymbol)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
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
			logger.Warn("Error stopping event worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
