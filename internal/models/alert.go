package models

import "time"

// AlertType 报警类型
type AlertType string

const (
	AlertTypePresence     AlertType = "presence"
	AlertTypeLowBattery   AlertType = "low_battery"
	AlertTypeHighHumidity AlertType = "high_humidity"

	// 以下仅由模拟数据生成器产生，大小写与真实评估器不同，不做合并
	AlertTypeMockLowMoisture AlertType = "LOW_MOISTURE"
	AlertTypeMockLowBattery  AlertType = "LOW_BATTERY"
	AlertTypeMockWeakSignal  AlertType = "WEAK_SIGNAL"
	AlertTypeMockHighTemp    AlertType = "HIGH_TEMP"
)

// Alert 报警记录（对应 alerts 表）
// 仅 Acknowledged 可变，且只能从 false 变为 true
type Alert struct {
	ID           int64     `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	NodeID       *string   `json:"node_id" db:"node_id"`
	Type         AlertType `json:"alert_type" db:"alert_type"`
	Message      string    `json:"message" db:"message"`
	Acknowledged bool      `json:"acknowledged" db:"acknowledged"`
}
