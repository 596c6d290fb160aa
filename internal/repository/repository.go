package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lora-envmon/internal/models"
)

// ErrStorage 存储层读写失败（连接、约束、事务等）
var ErrStorage = errors.New("storage failure")

// Store 读数、网关统计与报警的持久化接口
// PostgresStore 为正式实现；MemoryStore 用于数据库不可用时的本地开发
type Store interface {
	// EnsureSchema 创建表与索引（幂等）
	EnsureSchema(ctx context.Context) error

	// SaveReading 写入读数，成功后回填 reading.ID
	SaveReading(ctx context.Context, reading *models.Reading) error
	SaveGatewayStats(ctx context.Context, stats *models.GatewayStatsSnapshot) error
	SaveAlert(ctx context.Context, alert *models.Alert) error
	// SaveAlerts 在一个事务内写入同一读数产生的全部报警，并回填 ID
	SaveAlerts(ctx context.Context, alerts []models.Alert) error

	// FetchRecentReadings 最新在前
	FetchRecentReadings(ctx context.Context, limit int) ([]models.Reading, error)
	// FetchReadingsSince timestamp >= since，最早在前
	FetchReadingsSince(ctx context.Context, since time.Time) ([]models.Reading, error)
	// FetchAlerts 最新在前；unackOnly 时只返回未确认的报警
	FetchAlerts(ctx context.Context, limit int, unackOnly bool) ([]models.Alert, error)
	// FetchGatewayStatsHistory 指定网关的历史快照，最新在前
	FetchGatewayStatsHistory(ctx context.Context, gatewayID, limit int) ([]models.GatewayStatsSnapshot, error)
	// FetchLatestGatewayStats 任意网关最近的一条快照；没有数据时返回 nil, nil
	FetchLatestGatewayStats(ctx context.Context) (*models.GatewayStatsSnapshot, error)

	// AcknowledgeAlert 标记报警已确认；id 不存在时为空操作
	AcknowledgeAlert(ctx context.Context, id int64) error
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStorage, op, err)
}
