package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lora-envmon/internal/evaluator"
	"lora-envmon/internal/mockgen"
)

// MockGatewayID 模拟模式下网关统计使用的网关 id
const MockGatewayID = 0

// MockFeeder 模拟模式：定期生成随机读数直接入库（不经过 HTTP）
// 报警使用模拟规则 evaluator.EvaluateMock
type MockFeeder struct {
	svc      *IngestService
	gen      *mockgen.Generator
	interval time.Duration
	logger   *zap.Logger
	started  time.Time
}

func NewMockFeeder(svc *IngestService, gen *mockgen.Generator, interval time.Duration, logger *zap.Logger) *MockFeeder {
	return &MockFeeder{
		svc:      svc,
		gen:      gen,
		interval: interval,
		logger:   logger,
		started:  time.Now(),
	}
}

// Start 阻塞运行直到 ctx 取消；间隔非正时直接返回错误
func (f *MockFeeder) Start(ctx context.Context) error {
	if f.interval <= 0 {
		return fmt.Errorf("mock feeder: invalid interval %s", f.interval)
	}
	f.logger.Info("Mock feeder started",
		zap.Duration("interval", f.interval),
		zap.Int("nodes", len(f.gen.Nodes())),
	)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	// 立即执行一次
	f.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Mock feeder stopped")
			return nil
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *MockFeeder) tick(ctx context.Context) {
	saved, alerts, err := f.FeedOnce(ctx)
	if err != nil {
		f.logger.Error("Mock feed failed", zap.Error(err))
		return
	}
	f.logger.Info("Generated mock data", zap.Int("readings", saved), zap.Int("alerts", alerts))
}

// FeedOnce 为每个模拟节点生成并保存一条读数，并上报一条网关统计
// 返回保存的读数数量与产生的报警数量
func (f *MockFeeder) FeedOnce(ctx context.Context) (int, int, error) {
	saved, alertCount := 0, 0
	for _, r := range f.gen.Readings(f.svc.now()) {
		select {
		case <-ctx.Done():
			return saved, alertCount, ctx.Err()
		default:
		}

		reading := r
		alerts, err := f.svc.persistReading(ctx, &reading, evaluator.EvaluateMock)
		if err != nil {
			return saved, alertCount, fmt.Errorf("failed to save mock reading: %w", err)
		}
		saved++
		alertCount += len(alerts)
	}

	body, err := json.Marshal(f.gen.GatewayStatsPayload(MockGatewayID, time.Since(f.started)))
	if err != nil {
		return saved, alertCount, fmt.Errorf("failed to marshal mock gateway stats: %w", err)
	}
	if _, err := f.svc.SubmitGatewayStats(ctx, SourceMock, body); err != nil {
		return saved, alertCount, fmt.Errorf("failed to save mock gateway stats: %w", err)
	}
	return saved, alertCount, nil
}
