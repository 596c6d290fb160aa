package service

import (
	"context"

	"lora-envmon/internal/models"
)

// Notifier 入库成功后的下游通知（WebSocket 推送、Redis Streams 等）
// 通知失败只记录日志，不影响入库结果
type Notifier interface {
	Name() string
	NotifyReading(ctx context.Context, reading models.Reading) error
	NotifyAlerts(ctx context.Context, alerts []models.Alert) error
	NotifyGatewayStats(ctx context.Context, stats models.GatewayStatsSnapshot) error
}
