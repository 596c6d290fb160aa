package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lora-envmon/internal/models"
)

func TestMemoryStore_ReadingsOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 时间戳相同的两条按写入顺序（id）区分
	for _, r := range []models.Reading{
		{NodeID: "A", Timestamp: base.Add(2 * time.Second)},
		{NodeID: "B", Timestamp: base},
		{NodeID: "C", Timestamp: base.Add(2 * time.Second)},
	} {
		r := r
		require.NoError(t, m.SaveReading(ctx, &r))
		assert.NotZero(t, r.ID)
	}

	recent, err := m.FetchRecentReadings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{recent[0].NodeID, recent[1].NodeID, recent[2].NodeID})

	limited, err := m.FetchRecentReadings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "C", limited[0].NodeID)

	since, err := m.FetchReadingsSince(ctx, base.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "A", since[0].NodeID)
	assert.Equal(t, "C", since[1].NodeID)

	all, err := m.FetchReadingsSince(ctx, base)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "B", all[0].NodeID)
}

func TestMemoryStore_Alerts(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()

	alerts := []models.Alert{
		{Timestamp: now, Type: models.AlertTypePresence, Message: "p"},
		{Timestamp: now, Type: models.AlertTypeLowBattery, Message: "b"},
	}
	require.NoError(t, m.SaveAlerts(ctx, alerts))
	assert.Equal(t, int64(1), alerts[0].ID)
	assert.Equal(t, int64(2), alerts[1].ID)

	single := &models.Alert{Timestamp: now.Add(time.Second), Type: models.AlertTypeHighHumidity, Message: "h"}
	require.NoError(t, m.SaveAlert(ctx, single))

	got, err := m.FetchAlerts(ctx, 50, false)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, single.ID, got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)

	require.NoError(t, m.AcknowledgeAlert(ctx, 2))
	require.NoError(t, m.AcknowledgeAlert(ctx, 2))
	require.NoError(t, m.AcknowledgeAlert(ctx, 999))

	unack, err := m.FetchAlerts(ctx, 50, true)
	require.NoError(t, err)
	require.Len(t, unack, 2)
	for _, a := range unack {
		assert.NotEqual(t, int64(2), a.ID)
		assert.False(t, a.Acknowledged)
	}
}

func TestMemoryStore_GatewayStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	latest, err := m.FetchLatestGatewayStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, s := range []models.GatewayStatsSnapshot{
		{GatewayID: 1, Timestamp: base, RxTotal: 1},
		{GatewayID: 2, Timestamp: base.Add(time.Minute), RxTotal: 2},
		{GatewayID: 1, Timestamp: base.Add(2 * time.Minute), RxTotal: 3},
	} {
		s := s
		require.NoError(t, m.SaveGatewayStats(ctx, &s))
	}

	history, err := m.FetchGatewayStatsHistory(ctx, 1, 100)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].RxTotal)
	assert.Equal(t, int64(1), history[1].RxTotal)

	history, err = m.FetchGatewayStatsHistory(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)

	history, err = m.FetchGatewayStatsHistory(ctx, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	latest, err = m.FetchLatestGatewayStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.GatewayID)
	assert.Equal(t, int64(3), latest.RxTotal)
}

func TestMemoryStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := models.Reading{NodeID: "N", Timestamp: time.Now()}
			assert.NoError(t, m.SaveReading(ctx, &r))
		}()
	}
	wg.Wait()

	readings, err := m.FetchRecentReadings(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, readings, 20)

	seen := map[int64]bool{}
	for _, r := range readings {
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
}
