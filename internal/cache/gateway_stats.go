package cache

import (
	"sort"
	"sync"

	"lora-envmon/internal/models"
)

// GatewayStatsCache 每个网关最近一次统计快照（进程内）
// 由 service 持有；读多写少，使用读写锁
type GatewayStatsCache struct {
	mu      sync.RWMutex
	entries map[int]models.GatewayStatsSnapshot // gatewayID -> snapshot
}

// NewGatewayStatsCache 创建空缓存
func NewGatewayStatsCache() *GatewayStatsCache {
	return &GatewayStatsCache{
		entries: map[int]models.GatewayStatsSnapshot{},
	}
}

// Put 覆盖该网关的缓存快照（后写入者生效，不比较时间戳）
func (c *GatewayStatsCache) Put(s models.GatewayStatsSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.GatewayID] = s
}

// Get 返回指定网关的快照
func (c *GatewayStatsCache) Get(gatewayID int) (models.GatewayStatsSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[gatewayID]
	return s, ok
}

// All 返回全部快照，按 gateway_id 升序
func (c *GatewayStatsCache) All() []models.GatewayStatsSnapshot {
	c.mu.RLock()
	out := make([]models.GatewayStatsSnapshot, 0, len(c.entries))
	for _, s := range c.entries {
		out = append(out, s)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].GatewayID < out[j].GatewayID
	})
	return out
}

// Len 已缓存的网关数量
func (c *GatewayStatsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
