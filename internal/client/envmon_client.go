package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"lora-envmon/internal/models"
)

// StatusResponse 服务端的通用响应
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ItemFailure 批量上报中被拒绝的一条
type ItemFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// SubmitResponse 读数上报响应
type SubmitResponse struct {
	StatusResponse
	Saved  int           `json:"saved"`
	Failed []ItemFailure `json:"failed"`
}

// EnvmonClient 环境监测服务 HTTP 客户端（网关模拟器使用）
type EnvmonClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewEnvmonClient 创建客户端；仅在连接类错误时重试
func NewEnvmonClient(baseURL string, timeout time.Duration, logger *zap.Logger) *EnvmonClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &EnvmonClient{
		httpClient: client,
		logger:     logger,
	}
}

// SubmitReadings 上报读数（单条为对象，多条为数组），与网关固件使用同一路径
func (c *EnvmonClient) SubmitReadings(ctx context.Context, items []map[string]interface{}) (*SubmitResponse, error) {
	var body interface{} = items
	if len(items) == 1 {
		body = items[0]
	}

	var result SubmitResponse
	var apiErr StatusResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/data")
	if err != nil {
		return nil, fmt.Errorf("failed to submit readings: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("submit readings", resp.StatusCode(), apiErr.Message)
	}

	c.logger.Debug("Readings submitted",
		zap.Int("sent", len(items)),
		zap.Int("saved", result.Saved),
		zap.Int("failed", len(result.Failed)),
	)
	return &result, nil
}

// SubmitGatewayStats 上报网关统计
func (c *EnvmonClient) SubmitGatewayStats(ctx context.Context, stats map[string]interface{}) error {
	var apiErr StatusResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(stats).
		SetError(&apiErr).
		Post("/api/gateway-stats")
	if err != nil {
		return fmt.Errorf("failed to submit gateway stats: %w", err)
	}
	if resp.IsError() {
		return apiError("submit gateway stats", resp.StatusCode(), apiErr.Message)
	}
	return nil
}

// UnacknowledgedAlerts 未确认的报警（最新在前）
func (c *EnvmonClient) UnacknowledgedAlerts(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&alerts).
		Get("/api/alerts/unacknowledged")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alerts: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("fetch alerts", resp.StatusCode(), "")
	}
	return alerts, nil
}

// Acknowledge 确认报警
func (c *EnvmonClient) Acknowledge(ctx context.Context, id int64) error {
	var apiErr StatusResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]int64{"id": id}).
		SetError(&apiErr).
		Post("/api/alerts/acknowledge")
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}
	if resp.IsError() {
		return apiError("acknowledge alert", resp.StatusCode(), apiErr.Message)
	}
	return nil
}

// Health 健康检查
func (c *EnvmonClient) Health(ctx context.Context) error {
	var result StatusResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.IsError() || result.Status != "ok" {
		return apiError("health check", resp.StatusCode(), result.Status)
	}
	return nil
}

func apiError(op string, status int, message string) error {
	if message == "" {
		return fmt.Errorf("%s: server returned %d", op, status)
	}
	return fmt.Errorf("%s: server returned %d: %s", op, status, message)
}
