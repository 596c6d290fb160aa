package publisher

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"lora-envmon/internal/models"
	rediscommon "lora-envmon/internal/redis"
)

// Stream 名称后缀（前缀来自配置，如 "envmon:"）
const (
	StreamReadings     = "readings"
	StreamAlerts       = "alerts"
	StreamGatewayStats = "gateway_stats"
)

// StreamPublisher 将入库事件写入 Redis Streams，并维护网关快照镜像
type StreamPublisher struct {
	client *redis.Client
	mirror *GatewayMirror
	prefix string
	logger *zap.Logger
}

func NewStreamPublisher(client *redis.Client, mirror *GatewayMirror, prefix string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		mirror: mirror,
		prefix: prefix,
		logger: logger,
	}
}

func (p *StreamPublisher) Name() string { return "redis" }

func (p *StreamPublisher) NotifyReading(ctx context.Context, reading models.Reading) error {
	return p.publish(ctx, StreamReadings, "reading", reading.View())
}

func (p *StreamPublisher) NotifyAlerts(ctx context.Context, alerts []models.Alert) error {
	for _, a := range alerts {
		if err := p.publish(ctx, StreamAlerts, "alert", a); err != nil {
			return err
		}
	}
	return nil
}

func (p *StreamPublisher) NotifyGatewayStats(ctx context.Context, stats models.GatewayStatsSnapshot) error {
	if err := p.publish(ctx, StreamGatewayStats, "gateway_stats", stats.View()); err != nil {
		return err
	}
	if err := p.mirror.Put(ctx, stats); err != nil {
		return fmt.Errorf("failed to mirror gateway %d snapshot: %w", stats.GatewayID, err)
	}
	return nil
}

func (p *StreamPublisher) publish(ctx context.Context, suffix, msgType string, data interface{}) error {
	stream := p.prefix + suffix
	id, err := rediscommon.PublishJSONToStream(ctx, p.client, stream, msgType, data)
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	p.logger.Debug("Published to stream", zap.String("stream", stream), zap.String("id", id))
	return nil
}
