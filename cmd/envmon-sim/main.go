package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lora-envmon/internal/client"
	"lora-envmon/internal/logger"
	"lora-envmon/internal/mockgen"
)

// batchSize 与网关固件一致：攒够 5 条再上报
const batchSize = 5

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "envmon server base URL")
	gatewayID := flag.Int("gateway", 1, "simulated gateway id (NODE_ID)")
	interval := flag.Duration("interval", 5*time.Second, "sampling interval")
	statsEvery := flag.Int("stats-every", 6, "send gateway stats every N samples")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	autoAck := flag.Bool("auto-ack", false, "acknowledge alerts after each batch")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	lg, err := logger.NewLogger(*logLevel, "console", "envmon-sim")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := client.NewEnvmonClient(*serverURL, 10*time.Second, lg)
	if err := c.Health(ctx); err != nil {
		lg.Fatal("Server not reachable", zap.String("server", *serverURL), zap.Error(err))
	}

	gen := mockgen.New(*seed, nil)
	started := time.Now()
	var pending []map[string]interface{}

	lg.Info("Gateway simulator started",
		zap.String("server", *serverURL),
		zap.Int("gateway_id", *gatewayID),
		zap.Duration("interval", *interval),
		zap.Int("nodes", len(gen.Nodes())),
	)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for sample := 1; ; sample++ {
		pending = append(pending, gen.Payloads(*gatewayID, time.Since(started))...)
		for len(pending) >= batchSize {
			sendBatch(ctx, c, lg, pending[:batchSize], *autoAck)
			pending = pending[batchSize:]
		}

		if *statsEvery > 0 && sample%*statsEvery == 0 {
			if err := c.SubmitGatewayStats(ctx, gen.GatewayStatsPayload(*gatewayID, time.Since(started))); err != nil {
				lg.Warn("Failed to send gateway stats", zap.Error(err))
			} else {
				lg.Info("Gateway stats sent")
			}
		}

		select {
		case <-ctx.Done():
			lg.Info("Gateway simulator stopped", zap.Int("unsent", len(pending)))
			return
		case <-ticker.C:
		}
	}
}

func sendBatch(ctx context.Context, c *client.EnvmonClient, lg *zap.Logger, batch []map[string]interface{}, autoAck bool) {
	resp, err := c.SubmitReadings(ctx, batch)
	if err != nil {
		lg.Warn("Failed to send batch", zap.Int("size", len(batch)), zap.Error(err))
		return
	}
	lg.Info("Batch sent", zap.String("message", resp.Message), zap.Int("failed", len(resp.Failed)))

	if !autoAck {
		return
	}
	alerts, err := c.UnacknowledgedAlerts(ctx)
	if err != nil {
		lg.Warn("Failed to fetch alerts", zap.Error(err))
		return
	}
	for _, a := range alerts {
		if err := c.Acknowledge(ctx, a.ID); err != nil {
			lg.Warn("Failed to acknowledge alert", zap.Int64("alert_id", a.ID), zap.Error(err))
			continue
		}
		lg.Info("Alert acknowledged", zap.Int64("alert_id", a.ID), zap.String("message", a.Message))
	}
}
