package evaluator

import (
	"fmt"

	"lora-envmon/internal/models"
)

// 报警阈值
const (
	LowBatteryThreshold   = 20 // battery_percent < 20
	HighHumidityThreshold = 80 // humidity_percent > 80

	// 电量缺失时按满电处理，不触发低电量报警
	defaultBattery = 100
)

// Evaluate 对一条已保存的读数执行阈值规则
// 结果按 presence、low_battery、high_humidity 的顺序返回，时间戳取读数时间戳
func Evaluate(r models.Reading) []models.Alert {
	alerts := make([]models.Alert, 0, 3)

	if r.Presence != nil && *r.Presence {
		alerts = append(alerts, newAlert(r, models.AlertTypePresence,
			fmt.Sprintf("Presence detected by %s", r.NodeID)))
	}

	battery := defaultBattery
	if r.Battery != nil {
		battery = *r.Battery
	}
	if battery < LowBatteryThreshold {
		alerts = append(alerts, newAlert(r, models.AlertTypeLowBattery,
			fmt.Sprintf("Low battery (%d%%) on %s", battery, r.NodeID)))
	}

	if r.Humidity != nil && *r.Humidity > HighHumidityThreshold {
		alerts = append(alerts, newAlert(r, models.AlertTypeHighHumidity,
			fmt.Sprintf("High humidity (%.1f%%) on %s", *r.Humidity, r.NodeID)))
	}

	return alerts
}

func newAlert(r models.Reading, t models.AlertType, message string) models.Alert {
	nodeID := r.NodeID
	return models.Alert{
		Timestamp: r.Timestamp,
		NodeID:    &nodeID,
		Type:      t,
		Message:   message,
	}
}
