package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"lora-envmon/internal/models"
	"lora-envmon/internal/normalizer"
	"lora-envmon/internal/service"
)

const (
	defaultReadingLimit  = 100
	defaultAlertLimit    = 50
	defaultHistoryHours  = 24
	defaultGatewayID     = 1
	defaultStatsLimit    = 100
	defaultExportLimit   = 1000
	defaultMaxBodyBytes  = 1 << 20
	xlsxContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	readingsExportHeader = "attachment; filename=readings-export.xlsx"
)

// IngestHandler 上报与查询接口
type IngestHandler struct {
	svc     *service.IngestService
	maxBody int64
	logger  *zap.Logger
}

func NewIngestHandler(svc *service.IngestService, maxBody int64, logger *zap.Logger) *IngestHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &IngestHandler{svc: svc, maxBody: maxBody, logger: logger}
}

// SubmitReadings POST /data, /api/sensor-data
func (h *IngestHandler) SubmitReadings(w http.ResponseWriter, r *http.Request) {
	body, ok := h.body(w, r)
	if !ok {
		return
	}
	result, err := h.svc.SubmitReadings(r.Context(), service.SourceHTTP, body)
	if err != nil && result != nil {
		// 批量中有条目存储失败：返回 5xx 让网关重发，同时带上逐条结果
		h.logger.Error("Batch storage failure",
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(headerRequestID)),
			zap.Int("saved", result.Saved),
			zap.Int("failed", len(result.Failed)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "error",
			"message": err.Error(),
			"saved":   result.Saved,
			"failed":  result.Failed,
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("%d message(s) stored", result.Saved),
		"saved":   result.Saved,
		"failed":  result.Failed,
	})
}

// SubmitGatewayStats POST /api/gateway-stats
func (h *IngestHandler) SubmitGatewayStats(w http.ResponseWriter, r *http.Request) {
	body, ok := h.body(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.SubmitGatewayStats(r.Context(), service.SourceHTTP, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("Gateway stats received",
		zap.Int("gateway_id", stats.GatewayID),
		zap.Int64("uptime_seconds", stats.UptimeSeconds),
		zap.Int64("rx_valid", stats.RxValid),
		zap.Int64("rx_total", stats.RxTotal),
		zap.Float64("packet_loss_percent", stats.PacketLossPercent),
	)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "Stats received"})
}

// AcknowledgeAlert POST /api/alerts/acknowledge
func (h *IngestHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	body, ok := h.body(w, r)
	if !ok {
		return
	}
	if err := h.svc.AcknowledgeAlert(r.Context(), body); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// RecentReadings GET /data?limit=
func (h *IngestHandler) RecentReadings(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultReadingLimit)
	readings, err := h.svc.RecentReadings(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readingViews(readings))
}

// HistorySeries GET /api/history?hours=
func (h *IngestHandler) HistorySeries(w http.ResponseWriter, r *http.Request) {
	readings, err := h.svc.ReadingHistory(r.Context(), historyWindow(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewReadingSeries(readings))
}

// HistoryReadings GET /api/history/readings?hours=
func (h *IngestHandler) HistoryReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := h.svc.ReadingHistory(r.Context(), historyWindow(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readingViews(readings))
}

// Alerts GET /api/alerts?limit=, /api/alerts/unacknowledged?limit=
func (h *IngestHandler) Alerts(w http.ResponseWriter, r *http.Request, unackOnly bool) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultAlertLimit)
	alerts, err := h.svc.Alerts(r.Context(), limit, unackOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// CurrentGatewayStats GET /api/gateway-stats[?gateway_id=]
func (h *IngestHandler) CurrentGatewayStats(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("gateway_id"); raw != "" {
		id := parseInt(raw, -1)
		if id < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid gateway_id"))
			return
		}
		stats, err := h.svc.GatewayStatsFor(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if stats == nil {
			writeJSON(w, http.StatusOK, []models.GatewayStatsView{})
			return
		}
		writeJSON(w, http.StatusOK, []models.GatewayStatsView{stats.View()})
		return
	}

	all, err := h.svc.CurrentGatewayStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsViews(all))
}

// GatewayStatsHistory GET /api/gateway-stats/history?gateway_id=&limit=
func (h *IngestHandler) GatewayStatsHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gatewayID := parseInt(q.Get("gateway_id"), defaultGatewayID)
	limit := parseInt(q.Get("limit"), defaultStatsLimit)
	history, err := h.svc.GatewayStatsHistory(r.Context(), gatewayID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsViews(history))
}

// ExportReadings GET /api/export/readings.xlsx?limit=
func (h *IngestHandler) ExportReadings(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultExportLimit)
	readings, err := h.svc.RecentReadings(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := GenerateReadingsExport(readings)
	if err != nil {
		h.logger.Error("Failed to generate readings export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to generate export"))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", readingsExportHeader)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *IngestHandler) body(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := readBody(w, r, h.maxBody)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(err.Error()))
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	return body, true
}

// writeError 解析错误 -> 400，其它（存储失败）-> 500
func (h *IngestHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, normalizer.ErrMalformedPayload) {
		h.logger.Warn("Rejected malformed payload",
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(headerRequestID)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.logger.Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", r.Header.Get(headerRequestID)),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
}

func errorBody(message string) map[string]any {
	return map[string]any{"status": "error", "message": message}
}

func historyWindow(r *http.Request) time.Duration {
	hours := parseInt(r.URL.Query().Get("hours"), defaultHistoryHours)
	if hours <= 0 {
		hours = defaultHistoryHours
	}
	return time.Duration(hours) * time.Hour
}

func readingViews(readings []models.Reading) []models.ReadingView {
	out := make([]models.ReadingView, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.View())
	}
	return out
}

func statsViews(stats []models.GatewayStatsSnapshot) []models.GatewayStatsView {
	out := make([]models.GatewayStatsView, 0, len(stats))
	for _, s := range stats {
		out = append(out, s.View())
	}
	return out
}
