package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"lora-envmon/internal/models"
	"lora-envmon/internal/reconciler"
)

// ErrMalformedPayload 请求体无法解析，或某个字段无法转换为目标类型
var ErrMalformedPayload = errors.New("malformed payload")

// Payload 一条上报消息（任意结构的 JSON 对象）
type Payload = map[string]interface{}

// scope 字段查找的作用域
type scope int

const (
	scopeTop     scope = iota // 顶层对象
	scopeSensors              // sensors 子对象；不存在时退回顶层
	scopeRadio                // radio 子对象；不存在时为空
)

// rule 一个规范字段的查找规则：按作用域顺序、再按别名顺序取第一个非空值
type rule struct {
	scopes  []scope
	aliases []string
}

// 读数字段查找规则
var (
	ruleNodeID      = rule{[]scope{scopeTop}, []string{"node_id"}}
	ruleTimestamp   = rule{[]scope{scopeTop}, []string{"timestamp"}}
	ruleBattery     = rule{[]scope{scopeTop}, []string{"battery_percent"}}
	ruleGatewayID   = rule{[]scope{scopeTop}, []string{"gateway_id", "NODE_ID"}}
	ruleTemperature = rule{[]scope{scopeSensors}, []string{"temperature_celsius", "temperature"}}
	ruleHumidity    = rule{[]scope{scopeSensors}, []string{"humidity_percent", "humidity"}}
	ruleDistance    = rule{[]scope{scopeSensors}, []string{"distance_cm"}}
	ruleLuminosity  = rule{[]scope{scopeSensors}, []string{"luminosity_lux", "luminosity"}}
	rulePresence    = rule{[]scope{scopeSensors}, []string{"presence_detected"}}
	ruleRSSI        = rule{[]scope{scopeRadio, scopeSensors}, []string{"rssi_dbm"}}
	ruleSNR         = rule{[]scope{scopeRadio, scopeSensors}, []string{"snr_db"}}
)

// Normalizer 将不同形态的上报消息转换为规范记录
type Normalizer struct {
	reconciler *reconciler.Reconciler
}

// New 创建 Normalizer
func New(r *reconciler.Reconciler) *Normalizer {
	return &Normalizer{reconciler: r}
}

// Decode 解析请求体：单个对象返回长度为 1 的切片，数组按原顺序返回（batch=true）
// 数组元素不做检查，非对象元素在逐条处理时才报错
func Decode(body []byte) (items []interface{}, batch bool, err error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if dec.More() {
		return nil, false, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedPayload)
	}

	switch val := v.(type) {
	case map[string]interface{}:
		return []interface{}{val}, false, nil
	case []interface{}:
		return val, true, nil
	default:
		return nil, false, fmt.Errorf("%w: expected object or array, got %T", ErrMalformedPayload, v)
	}
}

// DecodeObject 解析必须为单个对象的请求体
func DecodeObject(body []byte) (Payload, error) {
	items, batch, err := Decode(body)
	if err != nil {
		return nil, err
	}
	if batch {
		return nil, fmt.Errorf("%w: expected a single object", ErrMalformedPayload)
	}
	return items[0].(Payload), nil
}

// Reading 将一条消息转换为规范读数（timestamp 已换算）
func (n *Normalizer) Reading(item interface{}) (models.Reading, error) {
	payload, ok := item.(map[string]interface{})
	if !ok {
		return models.Reading{}, fmt.Errorf("%w: reading must be an object, got %T", ErrMalformedPayload, item)
	}
	v, err := newView(payload)
	if err != nil {
		return models.Reading{}, err
	}

	reading := models.Reading{NodeID: models.DefaultNodeID}

	if raw, ok := v.lookup(ruleNodeID); ok {
		nodeID, err := parseString(raw)
		if err != nil {
			return models.Reading{}, fieldError("node_id", err)
		}
		if nodeID != "" {
			reading.NodeID = nodeID
		}
	}

	rawTS, _ := v.lookup(ruleTimestamp)
	reading.Timestamp = n.reconciler.Resolve(rawTS)

	if reading.Temperature, err = v.floatField(ruleTemperature); err != nil {
		return models.Reading{}, err
	}
	if reading.Humidity, err = v.floatField(ruleHumidity); err != nil {
		return models.Reading{}, err
	}
	if reading.Distance, err = v.intField(ruleDistance); err != nil {
		return models.Reading{}, err
	}
	if reading.Luminosity, err = v.intField(ruleLuminosity); err != nil {
		return models.Reading{}, err
	}
	if reading.Presence, err = v.boolField(rulePresence); err != nil {
		return models.Reading{}, err
	}
	if reading.Battery, err = v.intField(ruleBattery); err != nil {
		return models.Reading{}, err
	}
	if reading.RSSI, err = v.floatField(ruleRSSI); err != nil {
		return models.Reading{}, err
	}
	if reading.SNR, err = v.floatField(ruleSNR); err != nil {
		return models.Reading{}, err
	}
	if reading.GatewayID, err = v.intField(ruleGatewayID); err != nil {
		return models.Reading{}, err
	}

	return reading, nil
}

// view 一条消息按作用域展开后的视图
type view struct {
	top     Payload
	sensors Payload
	radio   Payload
}

func newView(payload Payload) (*view, error) {
	v := &view{top: payload, sensors: payload, radio: Payload{}}

	if raw, ok := payload["sensors"]; ok && raw != nil {
		sensors, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fieldError("sensors", fmt.Errorf("expected object, got %T", raw))
		}
		v.sensors = sensors
	}
	if raw, ok := payload["radio"]; ok && raw != nil {
		radio, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fieldError("radio", fmt.Errorf("expected object, got %T", raw))
		}
		v.radio = radio
	}
	return v, nil
}

func (v *view) object(s scope) Payload {
	switch s {
	case scopeSensors:
		return v.sensors
	case scopeRadio:
		return v.radio
	default:
		return v.top
	}
}

// lookup 返回规则命中的第一个非 null 值
func (v *view) lookup(r rule) (interface{}, bool) {
	for _, s := range r.scopes {
		obj := v.object(s)
		for _, alias := range r.aliases {
			if val, ok := obj[alias]; ok && val != nil {
				return val, true
			}
		}
	}
	return nil, false
}

func (v *view) floatField(r rule) (*float64, error) {
	raw, ok := v.lookup(r)
	if !ok {
		return nil, nil
	}
	f, err := parseFloat(raw)
	if err != nil {
		return nil, fieldError(r.aliases[0], err)
	}
	return &f, nil
}

func (v *view) intField(r rule) (*int, error) {
	raw, ok := v.lookup(r)
	if !ok {
		return nil, nil
	}
	i64, err := parseInt(raw)
	if err != nil {
		return nil, fieldError(r.aliases[0], err)
	}
	i := int(i64)
	return &i, nil
}

func (v *view) boolField(r rule) (*bool, error) {
	raw, ok := v.lookup(r)
	if !ok {
		return nil, nil
	}
	b, err := parseBool(raw)
	if err != nil {
		return nil, fieldError(r.aliases[0], err)
	}
	return &b, nil
}

func fieldError(field string, err error) error {
	return fmt.Errorf("%w: field %s: %v", ErrMalformedPayload, field, err)
}
