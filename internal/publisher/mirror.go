package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"lora-envmon/internal/models"
)

// ErrMiss 镜像中没有该网关
var ErrMiss = errors.New("cache miss")

// GatewayMirror 在 Redis 中保存每个网关的最新快照（带 TTL）
// key: {prefix}gateway:{gateway_id}:latest
type GatewayMirror struct {
	c      *redis.Client
	prefix string
	ttl    time.Duration
}

func NewGatewayMirror(c *redis.Client, prefix string, ttl time.Duration) *GatewayMirror {
	return &GatewayMirror{c: c, prefix: prefix, ttl: ttl}
}

func (m *GatewayMirror) key(gatewayID int) string {
	return fmt.Sprintf("%sgateway:%d:latest", m.prefix, gatewayID)
}

// Put 覆盖该网关的最新快照；ttl 为 0 表示不过期
func (m *GatewayMirror) Put(ctx context.Context, s models.GatewayStatsSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.c.Set(ctx, m.key(s.GatewayID), data, m.ttl).Err()
}

func (m *GatewayMirror) Get(ctx context.Context, gatewayID int) (*models.GatewayStatsSnapshot, error) {
	val, err := m.c.Get(ctx, m.key(gatewayID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	var s models.GatewayStatsSnapshot
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("invalid mirrored snapshot %s: %w", m.key(gatewayID), err)
	}
	return &s, nil
}

// All 返回镜像中全部网关的快照（按网关 id 排序）
// 用于重启后预热内存缓存
func (m *GatewayMirror) All(ctx context.Context) ([]models.GatewayStatsSnapshot, error) {
	var keys []string
	var cursor uint64
	for {
		k, next, err := m.c.Scan(ctx, cursor, m.prefix+"gateway:*:latest", 200).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	out := make([]models.GatewayStatsSnapshot, 0, len(keys))
	for _, key := range keys {
		val, err := m.c.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // 扫描后过期
		}
		if err != nil {
			return nil, err
		}
		var s models.GatewayStatsSnapshot
		if err := json.Unmarshal([]byte(val), &s); err != nil {
			return nil, fmt.Errorf("invalid mirrored snapshot %s: %w", key, err)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GatewayID < out[j].GatewayID })
	return out, nil
}
