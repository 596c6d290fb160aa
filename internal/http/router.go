package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const headerRequestID = "X-Request-ID"

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics、/ws 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

// ServeHTTP 为每个请求补齐 X-Request-ID，并允许看板跨域读取
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	id := req.Header.Get(headerRequestID)
	if id == "" {
		id = uuid.NewString()
		req.Header.Set(headerRequestID, id)
	}
	w.Header().Set(headerRequestID, id)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	r.mux.ServeHTTP(w, req)
}

// RegisterIngestRoutes 注册上报、查询与确认路由
func (r *Router) RegisterIngestRoutes(h *IngestHandler) {
	// 上报 + 最近读数（网关固件使用 /data，看板使用 GET /data）
	r.Handle("/data", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.RecentReadings(w, req)
		case http.MethodPost:
			h.SubmitReadings(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/api/sensor-data", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.SubmitReadings(w, req)
	})

	// gateway stats
	r.Handle("/api/gateway-stats", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.CurrentGatewayStats(w, req)
		case http.MethodPost:
			h.SubmitGatewayStats(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/api/gateway-stats/history", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GatewayStatsHistory(w, req)
	})

	// alerts
	r.Handle("/api/alerts", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Alerts(w, req, false)
	})
	r.Handle("/api/alerts/unacknowledged", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Alerts(w, req, true)
	})
	r.Handle("/api/alerts/acknowledge", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.AcknowledgeAlert(w, req)
	})

	// history
	r.Handle("/api/history", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.HistorySeries(w, req)
	})
	r.Handle("/api/history/readings", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.HistoryReadings(w, req)
	})

	// export
	r.Handle("/api/export/readings.xlsx", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportReadings(w, req)
	})
}

// RegisterOpsRoutes 注册健康检查、指标与实时推送
// metricsHandler / wsHandler 为 nil 时不注册对应路由
func (r *Router) RegisterOpsRoutes(metricsHandler, wsHandler http.Handler) {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if metricsHandler != nil {
		r.HandleHandler("/metrics", metricsHandler)
	}
	if wsHandler != nil {
		r.HandleHandler("/ws", wsHandler)
	}
}
