package models

import "time"

// GatewayStatsSnapshot 网关一次上报周期的统计（对应 gateway_stats 表）
// 写入后不可变；缺失的计数字段按 0 处理
type GatewayStatsSnapshot struct {
	ID            int64     `json:"-" db:"id"`
	GatewayID     int       `json:"gateway_id" db:"gateway_id"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	UptimeSeconds int64     `json:"uptime_seconds" db:"uptime_seconds"`

	// LoRa 接收统计
	RxTotal           int64   `json:"rx_total" db:"rx_total"`
	RxValid           int64   `json:"rx_valid" db:"rx_valid"`
	RxInvalid         int64   `json:"rx_invalid" db:"rx_invalid"`
	RxChecksumError   int64   `json:"rx_checksum_error" db:"rx_checksum_error"`
	PacketLossPercent float64 `json:"packet_loss_percent" db:"packet_loss_percent"`

	// 上行（网关 -> 服务端）统计
	TxTotal            int64   `json:"tx_total" db:"tx_total"`
	TxSuccess          int64   `json:"tx_success" db:"tx_success"`
	TxFailed           int64   `json:"tx_failed" db:"tx_failed"`
	SuccessRatePercent float64 `json:"success_rate_percent" db:"server_success_rate"`

	// 上行延迟
	LatencyAvgMs  float64 `json:"avg_ms" db:"latency_avg_ms"`
	LatencyMinMs  int64   `json:"min_ms" db:"latency_min_ms"`
	LatencyMaxMs  int64   `json:"max_ms" db:"latency_max_ms"`
	LatencyLastMs int64   `json:"last_ms" db:"latency_last_ms"`

	EnergyMah float64 `json:"energy_mah" db:"energy_mah"`
	WifiRSSI  *int    `json:"wifi_rssi" db:"wifi_rssi"`
}

// LoRaStatsView lora_stats 子对象
type LoRaStatsView struct {
	RxTotal           int64   `json:"rx_total"`
	RxValid           int64   `json:"rx_valid"`
	RxInvalid         int64   `json:"rx_invalid"`
	RxChecksumError   int64   `json:"rx_checksum_error"`
	PacketLossPercent float64 `json:"packet_loss_percent"`
}

// ServerStatsView server_stats 子对象
type ServerStatsView struct {
	TxTotal            int64   `json:"tx_total"`
	TxSuccess          int64   `json:"tx_success"`
	TxFailed           int64   `json:"tx_failed"`
	SuccessRatePercent float64 `json:"success_rate_percent"`
}

// LatencyView latency 子对象
type LatencyView struct {
	AvgMs  float64 `json:"avg_ms"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	LastMs int64   `json:"last_ms"`
}

// GatewayStatsView 查询响应格式（与网关上报格式一致）
type GatewayStatsView struct {
	GatewayID     int             `json:"gateway_id"`
	Timestamp     time.Time       `json:"timestamp"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	LoRaStats     LoRaStatsView   `json:"lora_stats"`
	ServerStats   ServerStatsView `json:"server_stats"`
	Latency       LatencyView     `json:"latency"`
	EnergyMah     float64         `json:"energy_mah"`
	WifiRSSI      *int            `json:"wifi_rssi"`
}

// View 转换为查询响应格式
func (s GatewayStatsSnapshot) View() GatewayStatsView {
	return GatewayStatsView{
		GatewayID:     s.GatewayID,
		Timestamp:     s.Timestamp.UTC(),
		UptimeSeconds: s.UptimeSeconds,
		LoRaStats: LoRaStatsView{
			RxTotal:           s.RxTotal,
			RxValid:           s.RxValid,
			RxInvalid:         s.RxInvalid,
			RxChecksumError:   s.RxChecksumError,
			PacketLossPercent: s.PacketLossPercent,
		},
		ServerStats: ServerStatsView{
			TxTotal:            s.TxTotal,
			TxSuccess:          s.TxSuccess,
			TxFailed:           s.TxFailed,
			SuccessRatePercent: s.SuccessRatePercent,
		},
		Latency: LatencyView{
			AvgMs:  s.LatencyAvgMs,
			MinMs:  s.LatencyMinMs,
			MaxMs:  s.LatencyMaxMs,
			LastMs: s.LatencyLastMs,
		},
		EnergyMah: s.EnergyMah,
		WifiRSSI:  s.WifiRSSI,
	}
}
