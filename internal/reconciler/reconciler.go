package reconciler

import (
	"encoding/json"
	"math"
	"time"
)

// maxOffsetMs 可换算为 time.Duration 的最大毫秒偏移
const maxOffsetMs = float64(math.MaxInt64 / int64(time.Millisecond))

// isoLayouts 关闭换算时可接受的绝对时间格式（网关固件与旧客户端都会发送不带时区的 isoformat）
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Reconciler 时间戳换算器
// 设备上报的 timestamp 是自设备启动/重连以来的毫秒数，需要加上服务端启动时刻才是绝对时间
type Reconciler struct {
	reference time.Time
	enabled   bool
	now       func() time.Time
}

// New 创建换算器
// reference: 参考时刻（通常为服务启动时间），由调用方注入
// enabled: false 时按绝对时间解析 ISO-8601 字符串
func New(reference time.Time, enabled bool) *Reconciler {
	return &Reconciler{
		reference: reference.UTC(),
		enabled:   enabled,
		now:       time.Now,
	}
}

// Reference 返回参考时刻
func (r *Reconciler) Reference() time.Time {
	return r.reference
}

// Enabled 是否启用相对时间换算
func (r *Reconciler) Enabled() bool {
	return r.enabled
}

// Resolve 将上报的原始 timestamp 转换为绝对时间（UTC）
// 缺失、无法识别或偏移超出范围时回退到当前时间
func (r *Reconciler) Resolve(raw interface{}) time.Time {
	if r.enabled {
		if ms, ok := numericMillis(raw); ok && validOffset(ms) {
			return r.reference.Add(time.Duration(ms * float64(time.Millisecond)))
		}
		return r.now().UTC()
	}

	if s, ok := raw.(string); ok {
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return r.now().UTC()
}

func numericMillis(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func validOffset(ms float64) bool {
	return !math.IsNaN(ms) && !math.IsInf(ms, 0) && math.Abs(ms) < maxOffsetMs
}
