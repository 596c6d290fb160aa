package mockgen

import (
	"math/rand"
	"sync"
	"time"

	"lora-envmon/internal/models"
)

// PresenceDistanceCm 距离小于该值视为有人（与网关固件一致）
const PresenceDistanceCm = 100

// Node 模拟节点
type Node struct {
	ID   string
	Name string
}

// DefaultNodes 默认的三个模拟节点
var DefaultNodes = []Node{
	{ID: "NODE_01", Name: "Garden Bed A"},
	{ID: "NODE_02", Name: "Garden Bed B"},
	{ID: "NODE_03", Name: "Greenhouse"},
}

// Generator 随机传感器数据生成器（并发安全）
type Generator struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	nodes []Node

	// 网关侧累计计数
	rxTotal   int64
	rxInvalid int64
	txTotal   int64
	txFailed  int64
	energyMah float64
}

// New 创建生成器；nodes 为空时使用 DefaultNodes
func New(seed int64, nodes []Node) *Generator {
	if len(nodes) == 0 {
		nodes = DefaultNodes
	}
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		nodes: nodes,
	}
}

// Nodes 返回模拟节点列表
func (g *Generator) Nodes() []Node {
	return g.nodes
}

// Readings 为每个节点生成一条读数，时间戳统一为 ts
func (g *Generator) Readings(ts time.Time) []models.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.Reading, 0, len(g.nodes))
	for _, n := range g.nodes {
		temperature := g.uniform(15, 40)
		humidity := g.uniform(15, 95)
		distance := g.intn(5, 200)
		luminosity := g.intn(50, 15000)
		battery := g.intn(20, 100)
		rssi := float64(g.intn(-120, -40))
		snr := g.uniform(-5, 15)
		presence := distance < PresenceDistanceCm

		out = append(out, models.Reading{
			NodeID:      n.ID,
			Timestamp:   ts.UTC(),
			Temperature: &temperature,
			Humidity:    &humidity,
			Distance:    &distance,
			Luminosity:  &luminosity,
			Presence:    &presence,
			Battery:     &battery,
			RSSI:        &rssi,
			SNR:         &snr,
		})
	}
	return out
}

// Payloads 生成网关转发格式的读数（嵌套 sensors/radio，timestamp 为设备相对毫秒）
func (g *Generator) Payloads(gatewayID int, elapsed time.Duration) []map[string]interface{} {
	readings := g.Readings(time.Time{})
	out := make([]map[string]interface{}, 0, len(readings))
	for _, r := range readings {
		out = append(out, map[string]interface{}{
			"node_id":         r.NodeID,
			"NODE_ID":         gatewayID,
			"timestamp":       elapsed.Milliseconds(),
			"battery_percent": *r.Battery,
			"sensors": map[string]interface{}{
				"temperature_celsius": *r.Temperature,
				"humidity_percent":    *r.Humidity,
				"distance_cm":         *r.Distance,
				"luminosity_lux":      *r.Luminosity,
				"presence_detected":   *r.Presence,
			},
			"radio": map[string]interface{}{
				"rssi_dbm": *r.RSSI,
				"snr_db":   *r.SNR,
			},
		})
	}
	return out
}

// GatewayStatsPayload 生成一条固件格式的网关统计（NODE_ID / latency_json / avms）
// 计数在多次调用之间累加
func (g *Generator) GatewayStatsPayload(gatewayID int, uptime time.Duration) map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	rx := int64(len(g.nodes))
	invalid := int64(0)
	if g.rnd.Float64() < 0.1 {
		invalid = 1
	}
	failed := int64(0)
	if g.rnd.Float64() < 0.05 {
		failed = 1
	}
	g.rxTotal += rx + invalid
	g.rxInvalid += invalid
	g.txTotal += rx
	g.txFailed += failed
	g.energyMah += g.uniform(0.1, 0.5)

	lossPercent := 0.0
	if g.rxTotal > 0 {
		lossPercent = float64(g.rxInvalid) / float64(g.rxTotal) * 100
	}
	successRate := 0.0
	if g.txTotal > 0 {
		successRate = float64(g.txTotal-g.txFailed) / float64(g.txTotal) * 100
	}
	minMs := g.intn(40, 90)
	maxMs := g.intn(150, 400)

	return map[string]interface{}{
		"NODE_ID":        gatewayID,
		"timestamp":      uptime.Milliseconds(),
		"uptime_seconds": int64(uptime.Seconds()),
		"lora_stats": map[string]interface{}{
			"rx_total":            g.rxTotal,
			"rx_valid":            g.rxTotal - g.rxInvalid,
			"rx_invalid":          g.rxInvalid,
			"rx_checksum_error":   g.rxInvalid,
			"packet_loss_percent": lossPercent,
		},
		"server_stats": map[string]interface{}{
			"tx_total":             g.txTotal,
			"tx_success":           g.txTotal - g.txFailed,
			"tx_failed":            g.txFailed,
			"success_rate_percent": successRate,
		},
		"latency_json": map[string]interface{}{
			"avms":    g.uniform(float64(minMs), float64(maxMs)),
			"min_ms":  minMs,
			"max_ms":  maxMs,
			"last_ms": g.intn(minMs, maxMs),
		},
		"energy_mah": g.energyMah,
		"wifi_rssi":  g.intn(-80, -40),
	}
}

// uniform [lo, hi)
func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}

// intn [lo, hi]
func (g *Generator) intn(lo, hi int) int {
	return lo + g.rnd.Intn(hi-lo+1)
}
