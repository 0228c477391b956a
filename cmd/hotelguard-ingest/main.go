package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotelguard-ingest/internal/config"
	"hotelguard-ingest/internal/database"
	httpapi "hotelguard-ingest/internal/http"
	"hotelguard-ingest/internal/logger"
	"hotelguard-ingest/internal/mqtt"
	"hotelguard-ingest/internal/repository"
	"hotelguard-ingest/internal/service"
	"hotelguard-ingest/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "hotelguard-ingest")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var kv store.KV
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, using in-process cache", zap.Error(err))
		kv = store.NewMemoryKV()
	} else {
		kv = store.NewRedisKV(redisClient)
	}

	connectorsRepo := repository.NewCachedConnectorsRepo(
		repository.NewPostgresConnectorsRepo(db), kv, log)
	rawEventsRepo := repository.NewPostgresRawEventsRepo(db)
	canonicalEventsRepo := repository.NewPostgresCanonicalEventsRepo(db)
	cvRepo := repository.NewPostgresCVRepo(db)

	analyzer := service.NewHTTPAnalyzer(&cfg.Analyzer, log)
	var recompute service.RecomputeInvoker = service.NopRecompute{}
	if cfg.CV.RecomputeURL != "" {
		recompute = service.NewHTTPRecomputeClient(cfg.CV.RecomputeURL, log)
	}
	cvService := service.NewCVService(cvRepo, analyzer, recompute, cfg.CV, log)

	router := httpapi.NewRouter(log)
	router.RegisterWebhookRoutes(httpapi.NewWebhookHandler(
		connectorsRepo, rawEventsRepo, canonicalEventsRepo, recompute, cfg.Webhook, log))
	router.RegisterCVRoutes(
		httpapi.NewCVIngestHandler(cvService, cfg.CV, log),
		httpapi.NewRoomRiskHandler(cvRepo, kv, cfg.CV, log))
	router.RegisterOpsRoutes(httpapi.NewEventsExportHandler(canonicalEventsRepo, log))

	var mqttClient *mqtt.Client
	var frameBroker *mqtt.FrameBroker
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Fatal("MQTT connection failed", zap.Error(err))
		}
		frameBroker = mqtt.NewFrameBroker(cvService, cfg.MQTT.Topic, log)
		if err := frameBroker.Start(mqttClient); err != nil {
			log.Fatal("MQTT subscribe failed", zap.Error(err))
		}
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)

	if frameBroker != nil && mqttClient != nil {
		_ = frameBroker.Stop(mqttClient)
		mqttClient.Disconnect()
	}
	_ = redisClient.Close()
	_ = db.Close()
}
