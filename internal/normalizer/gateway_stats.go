package normalizer

import (
	"fmt"

	"lora-envmon/internal/models"
)

// statsRule 网关统计字段规则：group 为子对象别名（空表示顶层）
// latency_json / avms 来自网关固件的实际输出
type statsRule struct {
	group   []string
	aliases []string
}

var (
	statsGatewayID  = statsRule{nil, []string{"gateway_id", "NODE_ID"}}
	statsTimestamp  = statsRule{nil, []string{"timestamp"}}
	statsUptime     = statsRule{nil, []string{"uptime_seconds"}}
	statsEnergy     = statsRule{nil, []string{"energy_mah"}}
	statsWifiRSSI   = statsRule{nil, []string{"wifi_rssi"}}
	statsRxTotal    = statsRule{[]string{"lora_stats"}, []string{"rx_total"}}
	statsRxValid    = statsRule{[]string{"lora_stats"}, []string{"rx_valid"}}
	statsRxInvalid  = statsRule{[]string{"lora_stats"}, []string{"rx_invalid"}}
	statsRxChecksum = statsRule{[]string{"lora_stats"}, []string{"rx_checksum_error"}}
	statsPacketLoss = statsRule{[]string{"lora_stats"}, []string{"packet_loss_percent"}}
	statsTxTotal    = statsRule{[]string{"server_stats"}, []string{"tx_total"}}
	statsTxSuccess  = statsRule{[]string{"server_stats"}, []string{"tx_success"}}
	statsTxFailed   = statsRule{[]string{"server_stats"}, []string{"tx_failed"}}
	statsSuccRate   = statsRule{[]string{"server_stats"}, []string{"success_rate_percent"}}
	statsLatAvg     = statsRule{[]string{"latency", "latency_json"}, []string{"avg_ms", "avms"}}
	statsLatMin     = statsRule{[]string{"latency", "latency_json"}, []string{"min_ms"}}
	statsLatMax     = statsRule{[]string{"latency", "latency_json"}, []string{"max_ms"}}
	statsLatLast    = statsRule{[]string{"latency", "latency_json"}, []string{"last_ms"}}
)

// GatewayStats 将一条网关统计消息转换为快照（timestamp 已换算）
func (n *Normalizer) GatewayStats(payload Payload) (models.GatewayStatsSnapshot, error) {
	p := statsParser{payload: payload}
	s := models.GatewayStatsSnapshot{}

	s.GatewayID = int(p.int(statsGatewayID))
	rawTS, _ := p.lookup(statsTimestamp)
	s.Timestamp = n.reconciler.Resolve(rawTS)
	s.UptimeSeconds = p.int(statsUptime)

	s.RxTotal = p.int(statsRxTotal)
	s.RxValid = p.int(statsRxValid)
	s.RxInvalid = p.int(statsRxInvalid)
	s.RxChecksumError = p.int(statsRxChecksum)
	s.PacketLossPercent = p.float(statsPacketLoss)

	s.TxTotal = p.int(statsTxTotal)
	s.TxSuccess = p.int(statsTxSuccess)
	s.TxFailed = p.int(statsTxFailed)
	s.SuccessRatePercent = p.float(statsSuccRate)

	s.LatencyAvgMs = p.float(statsLatAvg)
	s.LatencyMinMs = p.int(statsLatMin)
	s.LatencyMaxMs = p.int(statsLatMax)
	s.LatencyLastMs = p.int(statsLatLast)

	s.EnergyMah = p.float(statsEnergy)
	if raw, ok := p.lookup(statsWifiRSSI); ok && p.err == nil {
		if rssi, err := parseInt(raw); err != nil {
			p.fail("wifi_rssi", err)
		} else {
			v := int(rssi)
			s.WifiRSSI = &v
		}
	}

	if p.err != nil {
		return models.GatewayStatsSnapshot{}, p.err
	}
	return s, nil
}

// statsParser 记录第一个错误，之后的字段读取全部短路
type statsParser struct {
	payload Payload
	err     error
}

func (p *statsParser) fail(field string, err error) {
	if p.err == nil {
		p.err = fieldError(field, err)
	}
}

func (p *statsParser) lookup(r statsRule) (interface{}, bool) {
	if p.err != nil {
		return nil, false
	}
	objects := []Payload{p.payload}
	if len(r.group) > 0 {
		objects = objects[:0]
		for _, g := range r.group {
			raw, ok := p.payload[g]
			if !ok || raw == nil {
				continue
			}
			obj, ok := raw.(map[string]interface{})
			if !ok {
				p.fail(g, fmt.Errorf("expected object, got %T", raw))
				return nil, false
			}
			objects = append(objects, obj)
		}
	}
	for _, obj := range objects {
		for _, alias := range r.aliases {
			if val, ok := obj[alias]; ok && val != nil {
				return val, true
			}
		}
	}
	return nil, false
}

func (p *statsParser) int(r statsRule) int64 {
	raw, ok := p.lookup(r)
	if !ok {
		return 0
	}
	i, err := parseInt(raw)
	if err != nil {
		p.fail(r.aliases[0], err)
		return 0
	}
	return i
}

func (p *statsParser) float(r statsRule) float64 {
	raw, ok := p.lookup(r)
	if !ok {
		return 0
	}
	f, err := parseFloat(raw)
	if err != nil {
		p.fail(r.aliases[0], err)
		return 0
	}
	return f
}
