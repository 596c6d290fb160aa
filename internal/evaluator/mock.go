package evaluator

import (
	"fmt"

	"lora-envmon/internal/models"
)

// 模拟数据报警阈值（演示用，与 Evaluate 的规则互不影响）
const (
	mockLowMoisture = 20.0   // humidity < 20
	mockLowBattery  = 25     // battery < 25
	mockWeakSignal  = -100.0 // rssi < -100
	mockHighTemp    = 35.0   // temperature > 35
)

// EvaluateMock 模拟数据生成器使用的规则，报警类型为大写的 LOW_MOISTURE 等
func EvaluateMock(r models.Reading) []models.Alert {
	var alerts []models.Alert

	if r.Humidity != nil && *r.Humidity < mockLowMoisture {
		alerts = append(alerts, newAlert(r, models.AlertTypeMockLowMoisture,
			fmt.Sprintf("Low soil moisture: %.1f%%", *r.Humidity)))
	}
	if r.Battery != nil && *r.Battery < mockLowBattery {
		alerts = append(alerts, newAlert(r, models.AlertTypeMockLowBattery,
			fmt.Sprintf("Low battery: %d%%", *r.Battery)))
	}
	if r.RSSI != nil && *r.RSSI < mockWeakSignal {
		alerts = append(alerts, newAlert(r, models.AlertTypeMockWeakSignal,
			fmt.Sprintf("Weak LoRa signal: %.0f dBm", *r.RSSI)))
	}
	if r.Temperature != nil && *r.Temperature > mockHighTemp {
		alerts = append(alerts, newAlert(r, models.AlertTypeMockHighTemp,
			fmt.Sprintf("High temperature: %.1f°C", *r.Temperature)))
	}

	return alerts
}
