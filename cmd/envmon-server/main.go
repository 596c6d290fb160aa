package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lora-envmon/internal/config"
	"lora-envmon/internal/consumer"
	"lora-envmon/internal/database"
	httpapi "lora-envmon/internal/http"
	"lora-envmon/internal/logger"
	"lora-envmon/internal/metrics"
	"lora-envmon/internal/mockgen"
	mqttcommon "lora-envmon/internal/mqtt"
	"lora-envmon/internal/normalizer"
	"lora-envmon/internal/publisher"
	"lora-envmon/internal/reconciler"
	rediscommon "lora-envmon/internal/redis"
	"lora-envmon/internal/service"
	"lora-envmon/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "envmon-server")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 存储：DB 启用但不可用时退出，除非设置 DB_MEMORY_FALLBACK
	store, db, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Failed to open storage", zap.Error(err))
	}
	if db != nil {
		defer database.Close(db)
	}

	m := metrics.New()
	hub := websocket.NewHub(m, lg)
	go hub.Run(ctx)
	notifiers := []service.Notifier{hub}

	// Redis（可选）：事件流 + 网关快照镜像
	var mirror *publisher.GatewayMirror
	if cfg.RedisEnabled {
		redisClient := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			lg.Warn("Redis enabled but ping failed, publishing disabled", zap.Error(err))
			_ = rediscommon.Close(redisClient)
		} else {
			defer rediscommon.Close(redisClient)
			mirror = publisher.NewGatewayMirror(redisClient, cfg.Publish.StreamPrefix, cfg.Publish.GatewayCacheTTL)
			notifiers = append(notifiers, publisher.NewStreamPublisher(redisClient, mirror, cfg.Publish.StreamPrefix, lg))
			lg.Info("Redis publishing enabled", zap.String("stream_prefix", cfg.Publish.StreamPrefix))
		}
	}

	norm := normalizer.New(reconciler.New(time.Now().UTC(), cfg.Ingest.TimestampReconcile))
	svc := service.NewIngestService(store, norm, m, lg, notifiers...)

	if mirror != nil {
		svc.SetGatewayMirror(mirror)
		if n, err := svc.WarmGatewayStats(ctx); err != nil {
			lg.Warn("Failed to warm gateway stats cache", zap.Error(err))
		} else if n > 0 {
			lg.Info("Gateway stats cache warmed from Redis", zap.Int("gateways", n))
		}
	}

	router := httpapi.NewRouter(lg)
	router.RegisterIngestRoutes(httpapi.NewIngestHandler(svc, cfg.HTTP.MaxBodyBytes, lg))
	router.RegisterOpsRoutes(m.Handler(), hub)

	srv := service.NewServer(cfg.HTTP.Addr, router, lg)

	errCh := make(chan error, 3)
	go func() {
		errCh <- srv.Start()
	}()

	// MQTT（可选）
	var mqttConsumer *consumer.MQTTConsumer
	if cfg.MQTTEnabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, lg)
		if err != nil {
			lg.Warn("MQTT enabled but connection failed, MQTT ingestion disabled", zap.Error(err))
		} else {
			defer mqttClient.Disconnect()
			mqttConsumer = consumer.NewMQTTConsumer(mqttClient, svc, consumer.Topics{
				Telemetry: cfg.Topics.Telemetry,
				Stats:     cfg.Topics.Stats,
			}, cfg.MQTT.QoS, lg)
			go func() {
				if err := mqttConsumer.Start(ctx); err != nil {
					errCh <- err
				}
			}()
		}
	}

	// 模拟模式：定期写入随机数据
	if cfg.Mock.Enabled {
		feeder := service.NewMockFeeder(svc, mockgen.New(time.Now().UnixNano(), nil), cfg.Mock.Interval, lg)
		go func() {
			if err := feeder.Start(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	lg.Info("envmon-server started",
		zap.String("addr", cfg.HTTP.Addr),
		zap.Bool("db", db != nil),
		zap.Bool("redis", mirror != nil),
		zap.Bool("mqtt", mqttConsumer != nil),
		zap.Bool("mock", cfg.Mock.Enabled),
		zap.Bool("timestamp_reconcile", cfg.Ingest.TimestampReconcile),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		lg.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			lg.Error("Component failed, shutting down", zap.Error(err))
		}
	}
	cancel()

	if mqttConsumer != nil {
		_ = mqttConsumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		lg.Error("Error during shutdown", zap.Error(err))
	}
	lg.Info("envmon-server stopped")
}
