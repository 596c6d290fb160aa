package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lora-envmon/internal/cache"
	"lora-envmon/internal/evaluator"
	"lora-envmon/internal/metrics"
	"lora-envmon/internal/models"
	"lora-envmon/internal/normalizer"
	"lora-envmon/internal/repository"
)

// 数据来源（指标标签）
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
	SourceMock = "mock"
)

// SubmitResult 读数提交结果
type SubmitResult struct {
	Saved  int           `json:"saved"`
	Failed []ItemFailure `json:"failed"`
}

// ItemFailure 批量提交中单条失败的原因
type ItemFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// IngestService 入库流程：解析 -> 换算时间 -> 保存读数 -> 评估报警 -> 保存报警 -> 通知
// 网关统计缓存由本服务持有
type IngestService struct {
	store      repository.Store
	normalizer *normalizer.Normalizer
	cache      *cache.GatewayStatsCache
	metrics    *metrics.Metrics
	notifiers  []Notifier
	mirror     GatewayMirror
	logger     *zap.Logger
	now        func() time.Time
}

// NewIngestService 创建入库服务
// metrics 可为 nil；notifiers 在服务开始处理请求前注册
func NewIngestService(
	store repository.Store,
	norm *normalizer.Normalizer,
	m *metrics.Metrics,
	logger *zap.Logger,
	notifiers ...Notifier,
) *IngestService {
	return &IngestService{
		store:      store,
		normalizer: norm,
		cache:      cache.NewGatewayStatsCache(),
		metrics:    m,
		notifiers:  notifiers,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitReadings 处理单条或批量读数
// 单条：解析失败返回 ErrMalformedPayload，保存失败返回 ErrStorage
// 批量：逐条独立处理，失败记录在 Failed 中；任一条存储失败时连同结果返回 ErrStorage，
// 只有解析失败的条目不影响整体成功
func (s *IngestService) SubmitReadings(ctx context.Context, source string, body []byte) (*SubmitResult, error) {
	defer s.metrics.ObserveIngest(source, time.Now())

	items, batch, err := normalizer.Decode(body)
	if err != nil {
		s.metrics.ReadingProcessed(metrics.ResultMalformed)
		return nil, err
	}

	result := &SubmitResult{Failed: []ItemFailure{}}
	storageFailures := 0
	for i, item := range items {
		if _, err := s.ingestReading(ctx, item); err != nil {
			if !batch {
				return nil, err
			}
			if errors.Is(err, repository.ErrStorage) {
				storageFailures++
			}
			result.Failed = append(result.Failed, ItemFailure{Index: i, Error: err.Error()})
			continue
		}
		result.Saved++
	}

	if len(result.Failed) > 0 {
		s.logger.Warn("Batch partially failed",
			zap.String("source", source),
			zap.Int("total", len(items)),
			zap.Int("saved", result.Saved),
			zap.Int("failed", len(result.Failed)),
		)
	}
	if storageFailures > 0 {
		return result, fmt.Errorf("%d of %d readings failed to persist: %w", storageFailures, len(items), repository.ErrStorage)
	}
	return result, nil
}

func (s *IngestService) ingestReading(ctx context.Context, item interface{}) (models.Reading, error) {
	reading, err := s.normalizer.Reading(item)
	if err != nil {
		s.metrics.ReadingProcessed(metrics.ResultMalformed)
		return models.Reading{}, err
	}
	if _, err := s.persistReading(ctx, &reading, evaluator.Evaluate); err != nil {
		return models.Reading{}, err
	}
	return reading, nil
}

// persistReading 保存读数后再评估并保存报警；读数保存失败时不会产生任何报警
func (s *IngestService) persistReading(
	ctx context.Context,
	reading *models.Reading,
	evaluate func(models.Reading) []models.Alert,
) ([]models.Alert, error) {
	if err := s.store.SaveReading(ctx, reading); err != nil {
		s.metrics.ReadingProcessed(metrics.ResultStorage)
		s.logger.Error("Failed to save reading", zap.String("node_id", reading.NodeID), zap.Error(err))
		return nil, err
	}

	alerts := evaluate(*reading)
	if len(alerts) > 0 {
		if err := s.store.SaveAlerts(ctx, alerts); err != nil {
			s.metrics.ReadingProcessed(metrics.ResultStorage)
			s.logger.Error("Failed to save alerts",
				zap.String("node_id", reading.NodeID),
				zap.Int64("reading_id", reading.ID),
				zap.Int("alerts", len(alerts)),
				zap.Error(err),
			)
			return nil, err
		}
		for _, a := range alerts {
			s.metrics.AlertRaised(string(a.Type))
		}
	}

	s.metrics.ReadingProcessed(metrics.ResultSaved)
	s.logger.Debug("Reading stored",
		zap.String("node_id", reading.NodeID),
		zap.Int64("reading_id", reading.ID),
		zap.Time("timestamp", reading.Timestamp),
		zap.Int("alerts", len(alerts)),
	)
	s.notifyReading(ctx, *reading, alerts)
	return alerts, nil
}

// SubmitGatewayStats 处理一条网关统计：保存成功后更新缓存
func (s *IngestService) SubmitGatewayStats(ctx context.Context, source string, body []byte) (*models.GatewayStatsSnapshot, error) {
	defer s.metrics.ObserveIngest(source, time.Now())

	payload, err := normalizer.DecodeObject(body)
	if err != nil {
		s.metrics.GatewayStatsProcessed(metrics.ResultMalformed)
		return nil, err
	}
	stats, err := s.normalizer.GatewayStats(payload)
	if err != nil {
		s.metrics.GatewayStatsProcessed(metrics.ResultMalformed)
		return nil, err
	}
	if err := s.saveGatewayStats(ctx, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *IngestService) saveGatewayStats(ctx context.Context, stats *models.GatewayStatsSnapshot) error {
	if err := s.store.SaveGatewayStats(ctx, stats); err != nil {
		s.metrics.GatewayStatsProcessed(metrics.ResultStorage)
		s.logger.Error("Failed to save gateway stats", zap.Int("gateway_id", stats.GatewayID), zap.Error(err))
		return err
	}
	s.cache.Put(*stats)
	s.metrics.GatewayStatsProcessed(metrics.ResultSaved)

	for _, n := range s.notifiers {
		if err := n.NotifyGatewayStats(ctx, *stats); err != nil {
			s.notifyFailed(n, err)
		}
	}
	return nil
}

// AcknowledgeAlert 处理确认请求 {"id": ...}；id 缺失或不存在时为空操作
func (s *IngestService) AcknowledgeAlert(ctx context.Context, body []byte) error {
	payload, err := normalizer.DecodeObject(body)
	if err != nil {
		return err
	}
	id, ok, err := normalizer.AlertID(payload)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return s.Acknowledge(ctx, id)
}

// Acknowledge 按 id 确认报警（幂等）
func (s *IngestService) Acknowledge(ctx context.Context, id int64) error {
	if err := s.store.AcknowledgeAlert(ctx, id); err != nil {
		s.logger.Error("Failed to acknowledge alert", zap.Int64("alert_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("Alert acknowledged", zap.Int64("alert_id", id))
	return nil
}

func (s *IngestService) notifyReading(ctx context.Context, reading models.Reading, alerts []models.Alert) {
	for _, n := range s.notifiers {
		if err := n.NotifyReading(ctx, reading); err != nil {
			s.notifyFailed(n, err)
		}
		if len(alerts) == 0 {
			continue
		}
		if err := n.NotifyAlerts(ctx, alerts); err != nil {
			s.notifyFailed(n, err)
		}
	}
}

func (s *IngestService) notifyFailed(n Notifier, err error) {
	s.metrics.NotifyFailed(n.Name())
	s.logger.Warn("Notifier failed", zap.String("notifier", n.Name()), zap.Error(err))
}
