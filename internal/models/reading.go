package models

import "time"

// DefaultNodeID 上报中缺少 node_id 时使用的节点标识
const DefaultNodeID = "unknown"

// Reading 一次节点采样（对应 sensor_readings 表）
// 所有传感器字段相互独立且可空：节点可能只上报其中一部分
type Reading struct {
	ID          int64     `json:"-" db:"id"` // BIGSERIAL，由存储分配
	NodeID      string    `json:"node_id" db:"node_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"` // 已换算的绝对时间
	Temperature *float64  `json:"temperature_celsius,omitempty" db:"temperature_celsius"`
	Humidity    *float64  `json:"humidity_percent,omitempty" db:"humidity_percent"`
	Distance    *int      `json:"distance_cm,omitempty" db:"distance_cm"`
	Luminosity  *int      `json:"luminosity_lux,omitempty" db:"luminosity_lux"`
	Presence    *bool     `json:"presence_detected,omitempty" db:"presence_detected"`
	Battery     *int      `json:"battery_percent,omitempty" db:"battery_percent"`
	RSSI        *float64  `json:"rssi_dbm,omitempty" db:"rssi_dbm"`
	SNR         *float64  `json:"snr_db,omitempty" db:"snr_db"`
	GatewayID   *int      `json:"gateway_id,omitempty" db:"gateway_id"`
}

// ReadingSensors 查询响应中的 sensors 子对象（与上报格式一致）
type ReadingSensors struct {
	Temperature *float64 `json:"temperature_celsius"`
	Humidity    *float64 `json:"humidity_percent"`
	Distance    *int     `json:"distance_cm"`
	Luminosity  *int     `json:"luminosity_lux"`
	Presence    bool     `json:"presence_detected"`
	RSSI        *float64 `json:"rssi_dbm"`
	SNR         *float64 `json:"snr_db"`
}

// ReadingView 查询响应格式（嵌套 sensors，presence 强制为 true/false）
type ReadingView struct {
	NodeID    string         `json:"node_id"`
	Timestamp time.Time      `json:"timestamp"`
	Sensors   ReadingSensors `json:"sensors"`
	Battery   *int           `json:"battery_percent"`
	GatewayID *int           `json:"gateway_id"`
}

// View 转换为查询响应格式
func (r Reading) View() ReadingView {
	return ReadingView{
		NodeID:    r.NodeID,
		Timestamp: r.Timestamp.UTC(),
		Sensors: ReadingSensors{
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Distance:    r.Distance,
			Luminosity:  r.Luminosity,
			Presence:    r.Presence != nil && *r.Presence,
			RSSI:        r.RSSI,
			SNR:         r.SNR,
		},
		Battery:   r.Battery,
		GatewayID: r.GatewayID,
	}
}

// ReadingSeries 图表用的列式历史数据（按时间升序）
type ReadingSeries struct {
	Timestamps  []time.Time `json:"timestamps"`
	Temperature []*float64  `json:"temperature"`
	Humidity    []*float64  `json:"humidity"`
	Distance    []*int      `json:"distance"`
	Luminosity  []*int      `json:"luminosity"`
	Battery     []*int      `json:"battery"`
}

// NewReadingSeries 将升序的读数转换为列式数据
func NewReadingSeries(readings []Reading) ReadingSeries {
	s := ReadingSeries{
		Timestamps:  make([]time.Time, 0, len(readings)),
		Temperature: make([]*float64, 0, len(readings)),
		Humidity:    make([]*float64, 0, len(readings)),
		Distance:    make([]*int, 0, len(readings)),
		Luminosity:  make([]*int, 0, len(readings)),
		Battery:     make([]*int, 0, len(readings)),
	}
	for _, r := range readings {
		s.Timestamps = append(s.Timestamps, r.Timestamp.UTC())
		s.Temperature = append(s.Temperature, r.Temperature)
		s.Humidity = append(s.Humidity, r.Humidity)
		s.Distance = append(s.Distance, r.Distance)
		s.Luminosity = append(s.Luminosity, r.Luminosity)
		s.Battery = append(s.Battery, r.Battery)
	}
	return s
}
