package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"lora-envmon/internal/models"
)

// MemoryStore 数据库关闭或不可用时的内存实现（进程退出即丢失）
// 所有操作由一把锁串行化
type MemoryStore struct {
	mu sync.Mutex

	readings []models.Reading
	stats    []models.GatewayStatsSnapshot
	alerts   []models.Alert

	nextReadingID int64
	nextStatsID   int64
	nextAlertID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) EnsureSchema(_ context.Context) error {
	return nil
}

func (m *MemoryStore) SaveReading(_ context.Context, reading *models.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextReadingID++
	reading.ID = m.nextReadingID
	m.readings = append(m.readings, *reading)
	return nil
}

func (m *MemoryStore) SaveGatewayStats(_ context.Context, stats *models.GatewayStatsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextStatsID++
	stats.ID = m.nextStatsID
	m.stats = append(m.stats, *stats)
	return nil
}

func (m *MemoryStore) SaveAlert(_ context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendAlertLocked(alert)
	return nil
}

func (m *MemoryStore) SaveAlerts(_ context.Context, alerts []models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range alerts {
		m.appendAlertLocked(&alerts[i])
	}
	return nil
}

func (m *MemoryStore) appendAlertLocked(alert *models.Alert) {
	m.nextAlertID++
	alert.ID = m.nextAlertID
	m.alerts = append(m.alerts, *alert)
}

func (m *MemoryStore) FetchRecentReadings(_ context.Context, limit int) ([]models.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Reading, len(m.readings))
	copy(out, m.readings)
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i].Timestamp, out[i].ID, out[j].Timestamp, out[j].ID)
	})
	return truncate(out, limit), nil
}

func (m *MemoryStore) FetchReadingsSince(_ context.Context, since time.Time) ([]models.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Reading{}
	for _, r := range m.readings {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[j].Timestamp, out[j].ID, out[i].Timestamp, out[i].ID)
	})
	return out, nil
}

func (m *MemoryStore) FetchAlerts(_ context.Context, limit int, unackOnly bool) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Alert{}
	for _, a := range m.alerts {
		if unackOnly && a.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i].Timestamp, out[i].ID, out[j].Timestamp, out[j].ID)
	})
	return truncate(out, limit), nil
}

func (m *MemoryStore) FetchGatewayStatsHistory(_ context.Context, gatewayID, limit int) ([]models.GatewayStatsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.GatewayStatsSnapshot{}
	for _, s := range m.stats {
		if s.GatewayID == gatewayID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i].Timestamp, out[i].ID, out[j].Timestamp, out[j].ID)
	})
	return truncate(out, limit), nil
}

func (m *MemoryStore) FetchLatestGatewayStats(_ context.Context) (*models.GatewayStatsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.GatewayStatsSnapshot
	for i := range m.stats {
		s := m.stats[i]
		if latest == nil || newerFirst(s.Timestamp, s.ID, latest.Timestamp, latest.ID) {
			latest = &s
		}
	}
	return latest, nil
}

func (m *MemoryStore) AcknowledgeAlert(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Acknowledged = true
			return nil
		}
	}
	return nil
}

// newerFirst 与 SQL 的 ORDER BY timestamp DESC, id DESC 一致
func newerFirst(ta time.Time, ida int64, tb time.Time, idb int64) bool {
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return ida > idb
}

func truncate[T any](items []T, limit int) []T {
	if limit <= 0 {
		return items[:0]
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
