package consumer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	mqttcommon "lora-envmon/internal/mqtt"
	"lora-envmon/internal/service"
)

// Subscriber MQTT 订阅能力（*mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Topics 订阅的主题
type Topics struct {
	Telemetry string // 读数（单条或批量），如 envmon/+/telemetry
	Stats     string // 网关统计，如 envmon/+/stats
}

// MQTTConsumer 将网关通过 MQTT 上报的消息送入入库流程
// 与 HTTP 上报走同一个 IngestService
type MQTTConsumer struct {
	sub    Subscriber
	svc    *service.IngestService
	topics Topics
	qos    byte
	logger *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(sub Subscriber, svc *service.IngestService, topics Topics, qos byte, logger *zap.Logger) *MQTTConsumer {
	return &MQTTConsumer{
		sub:    sub,
		svc:    svc,
		topics: topics,
		qos:    qos,
		logger: logger,
	}
}

// Start 订阅主题并阻塞直到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.sub.Subscribe(c.topics.Telemetry, c.qos, c.handleTelemetry); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}
	if err := c.sub.Subscribe(c.topics.Stats, c.qos, c.handleStats); err != nil {
		return fmt.Errorf("failed to subscribe to stats topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("telemetry_topic", c.topics.Telemetry),
		zap.String("stats_topic", c.topics.Stats),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() error {
	if err := c.sub.Unsubscribe(c.topics.Telemetry, c.topics.Stats); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
		return err
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleTelemetry 主题格式: envmon/{gateway}/telemetry
func (c *MQTTConsumer) handleTelemetry(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT telemetry",
		zap.String("topic", topic),
		zap.String("gateway", gatewaySegment(topic)),
		zap.Int("payload_size", len(payload)),
	)

	result, err := c.svc.SubmitReadings(context.Background(), service.SourceMQTT, payload)
	if err != nil {
		return fmt.Errorf("failed to ingest telemetry from %s: %w", topic, err)
	}
	if len(result.Failed) > 0 {
		c.logger.Warn("MQTT batch partially rejected",
			zap.String("topic", topic),
			zap.Int("saved", result.Saved),
			zap.Int("failed", len(result.Failed)),
		)
	}
	return nil
}

// handleStats 主题格式: envmon/{gateway}/stats
func (c *MQTTConsumer) handleStats(topic string, payload []byte) error {
	stats, err := c.svc.SubmitGatewayStats(context.Background(), service.SourceMQTT, payload)
	if err != nil {
		return fmt.Errorf("failed to ingest gateway stats from %s: %w", topic, err)
	}
	c.logger.Debug("Gateway stats received over MQTT",
		zap.String("topic", topic),
		zap.Int("gateway_id", stats.GatewayID),
	)
	return nil
}

// gatewaySegment 主题中的网关段（第二段），不存在时为空
func gatewaySegment(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
