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

	"order-ledger/config"
	"order-ledger/internal/api"
	"order-ledger/internal/broker"
	"order-ledger/internal/redisclient"
	"order-ledger/internal/service"
	"order-ledger/internal/store"
	"order-ledger/internal/util"
	"order-ledger/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order ledger")

	tp, err := util.InitTracer("order-ledger", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	var st store.Store
	switch cfg.Storage.Backend {
	case "memory":
		st = store.NewMemory()
		log.Println("Using in-memory store")
	default:
		pg, err := store.NewPostgres(cfg.Storage.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		st = pg
		log.Println("Database connected")
	}
	defer st.Close()

	var redisClient *redisclient.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	var publisher service.EventPublisher
	var cacheSyncWorker *worker.CacheSyncWorker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	catalog := service.NewCatalog(st, redisClient)
	directory := service.NewDirectory(st)
	checker := service.NewChecker(st)

	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")

		if cfg.Redis.Enabled {
			consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
			cacheSyncWorker = worker.NewCacheSyncWorker(consumer, catalog)
			go func() {
				if err := cacheSyncWorker.Start(workerCtx); err != nil {
					log.Printf("Cache sync worker error: %v", err)
				}
			}()
		}
	}

	ledger := service.NewLedger(st, catalog, directory, checker, publisher, cfg.Business.PlaceOrderTimeout)

	if cfg.Redis.Enabled {
		if err := catalog.SyncToRedis(context.Background()); err != nil {
			log.Printf("Failed to sync stock to Redis: %v", err)
		}
	}

	auditWorker := worker.NewAuditWorker(checker, cfg.Business.AuditInterval)
	go func() {
		if err := auditWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Audit worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(ledger, checker)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if cacheSyncWorker != nil {
		cacheSyncWorker.Stop()
	}

	log.Println("Server exited")
}
