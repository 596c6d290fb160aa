package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"lora-envmon/internal/models"
	"lora-envmon/internal/publisher"
)

// GatewayMirror 网关最新快照的外部镜像（Redis）
type GatewayMirror interface {
	Get(ctx context.Context, gatewayID int) (*models.GatewayStatsSnapshot, error)
	All(ctx context.Context) ([]models.GatewayStatsSnapshot, error)
}

// SetGatewayMirror 在服务开始处理请求前调用
func (s *IngestService) SetGatewayMirror(m GatewayMirror) {
	s.mirror = m
}

// RecentReadings 最近的读数，最新在前
func (s *IngestService) RecentReadings(ctx context.Context, limit int) ([]models.Reading, error) {
	return s.store.FetchRecentReadings(ctx, limit)
}

// ReadingHistory 最近 window 时间内的读数，最早在前
func (s *IngestService) ReadingHistory(ctx context.Context, window time.Duration) ([]models.Reading, error) {
	return s.store.FetchReadingsSince(ctx, s.now().UTC().Add(-window))
}

// Alerts 报警列表，最新在前
func (s *IngestService) Alerts(ctx context.Context, limit int, unackOnly bool) ([]models.Alert, error) {
	return s.store.FetchAlerts(ctx, limit, unackOnly)
}

// GatewayStatsHistory 指定网关的历史快照，最新在前
func (s *IngestService) GatewayStatsHistory(ctx context.Context, gatewayID, limit int) ([]models.GatewayStatsSnapshot, error) {
	return s.store.FetchGatewayStatsHistory(ctx, gatewayID, limit)
}

// CurrentGatewayStats 全部网关的最新快照
// 缓存为空（如刚重启）时退回存储中最近的一条记录
func (s *IngestService) CurrentGatewayStats(ctx context.Context) ([]models.GatewayStatsSnapshot, error) {
	if all := s.cache.All(); len(all) > 0 {
		return all, nil
	}
	latest, err := s.store.FetchLatestGatewayStats(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return []models.GatewayStatsSnapshot{}, nil
	}
	return []models.GatewayStatsSnapshot{*latest}, nil
}

// GatewayStatsFor 指定网关的最新快照
// 依次查询缓存、存储、镜像，都没有则返回 nil
func (s *IngestService) GatewayStatsFor(ctx context.Context, gatewayID int) (*models.GatewayStatsSnapshot, error) {
	if st, ok := s.cache.Get(gatewayID); ok {
		return &st, nil
	}
	history, err := s.store.FetchGatewayStatsHistory(ctx, gatewayID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		return &history[0], nil
	}
	if s.mirror == nil {
		return nil, nil
	}
	// 存储中没有该网关（如内存存储刚重启），镜像只读不回写缓存
	st, err := s.mirror.Get(ctx, gatewayID)
	if err != nil {
		if !errors.Is(err, publisher.ErrMiss) {
			s.logger.Warn("Failed to read mirrored gateway stats", zap.Int("gateway_id", gatewayID), zap.Error(err))
		}
		return nil, nil
	}
	return st, nil
}

// WarmGatewayStats 启动时用镜像中的快照预热缓存，返回预热的网关数
// 已在缓存中的网关不覆盖；存储中有更新的快照时以存储为准
func (s *IngestService) WarmGatewayStats(ctx context.Context) (int, error) {
	if s.mirror == nil {
		return 0, nil
	}
	snapshots, err := s.mirror.All(ctx)
	if err != nil {
		return 0, err
	}
	warmed := 0
	for _, st := range snapshots {
		if _, ok := s.cache.Get(st.GatewayID); ok {
			continue
		}
		history, err := s.store.FetchGatewayStatsHistory(ctx, st.GatewayID, 1)
		if err != nil {
			return warmed, err
		}
		if len(history) > 0 && history[0].Timestamp.After(st.Timestamp) {
			st = history[0]
		}
		s.cache.Put(st)
		warmed++
	}
	return warmed, nil
}
