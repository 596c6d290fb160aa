package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lora-envmon/internal/models"
)

func setupMockStoreDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewPostgresStore(db, zap.NewNop())
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }
func strPtr(v string) *string     { return &v }

var readingCols = []string{
	"id", "node_id", "timestamp", "temperature_celsius", "humidity_percent", "distance_cm",
	"luminosity_lux", "presence_detected", "battery_percent", "rssi_dbm", "snr_db", "gateway_id",
}

var statsCols = []string{
	"id", "gateway_id", "timestamp", "uptime_seconds",
	"rx_total", "rx_valid", "rx_invalid", "rx_checksum_error", "packet_loss_percent",
	"tx_total", "tx_success", "tx_failed", "server_success_rate",
	"latency_avg_ms", "latency_min_ms", "latency_max_ms", "latency_last_ms",
	"energy_mah", "wifi_rssi",
}

// ============================================
// 写入
// ============================================

func TestEnsureSchema(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sensor_readings`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_sensor_readings_timestamp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS gateway_stats`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_gateway_stats_gateway_ts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS alerts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_Error(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sensor_readings`).WillReturnError(errors.New("permission denied"))

	err := store.EnsureSchema(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReading_Success(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	reading := &models.Reading{
		NodeID:      "NODE_01",
		Timestamp:   ts,
		Temperature: floatPtr(22.5),
		Presence:    boolPtr(true),
		Battery:     intPtr(15),
	}

	mock.ExpectQuery(`INSERT INTO sensor_readings`).
		WithArgs("NODE_01", ts, 22.5, nil, nil, nil, true, 15, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, store.SaveReading(context.Background(), reading))
	assert.Equal(t, int64(42), reading.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReading_Error(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO sensor_readings`).WillReturnError(errors.New("connection refused"))

	reading := &models.Reading{NodeID: "NODE_01", Timestamp: time.Now()}
	err := store.SaveReading(context.Background(), reading)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, reading.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveGatewayStats_Success(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	stats := &models.GatewayStatsSnapshot{
		GatewayID:    1,
		Timestamp:    time.Now(),
		RxTotal:      100,
		LatencyAvgMs: 12.5,
		WifiRSSI:     intPtr(-60),
	}

	mock.ExpectQuery(`INSERT INTO gateway_stats`).
		WithArgs(1, sqlmock.AnyArg(), 0, 100, 0, 0, 0, 0.0, 0, 0, 0, 0.0, 12.5, 0, 0, 0, 0.0, -60).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	require.NoError(t, store.SaveGatewayStats(context.Background(), stats))
	assert.Equal(t, int64(3), stats.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlert_Success(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	alert := &models.Alert{
		Timestamp: time.Now(),
		NodeID:    strPtr("NODE_01"),
		Type:      models.AlertTypePresence,
		Message:   "Presence detected by NODE_01",
	}

	mock.ExpectQuery(`INSERT INTO alerts`).
		WithArgs(sqlmock.AnyArg(), "NODE_01", "presence", "Presence detected by NODE_01", false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	require.NoError(t, store.SaveAlert(context.Background(), alert))
	assert.Equal(t, int64(9), alert.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlerts_CommitsTogether(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	now := time.Now()
	alerts := []models.Alert{
		{Timestamp: now, NodeID: strPtr("N1"), Type: models.AlertTypePresence, Message: "a"},
		{Timestamp: now, NodeID: strPtr("N1"), Type: models.AlertTypeLowBattery, Message: "b"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO alerts`).
		WithArgs(sqlmock.AnyArg(), "N1", "presence", "a", false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO alerts`).
		WithArgs(sqlmock.AnyArg(), "N1", "low_battery", "b", false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	require.NoError(t, store.SaveAlerts(context.Background(), alerts))
	assert.Equal(t, int64(1), alerts[0].ID)
	assert.Equal(t, int64(2), alerts[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlerts_RollbackOnError(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	alerts := []models.Alert{
		{Timestamp: time.Now(), Type: models.AlertTypePresence, Message: "a"},
		{Timestamp: time.Now(), Type: models.AlertTypeLowBattery, Message: "b"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO alerts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO alerts`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.SaveAlerts(context.Background(), alerts)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Zero(t, alerts[0].ID)
	assert.Zero(t, alerts[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlerts_Empty(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	require.NoError(t, store.SaveAlerts(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 查询
// ============================================

func TestFetchRecentReadings(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	t1 := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	t2 := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	rows := sqlmock.NewRows(readingCols).
		AddRow(2, "NODE_02", t1, 22.5, 45.0, 120, 300, true, 80, -70.0, 9.5, 1).
		AddRow(1, "NODE_01", t2, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(`SELECT .+ FROM sensor_readings\s+ORDER BY timestamp DESC, id DESC`).
		WithArgs(10).
		WillReturnRows(rows)

	readings, err := store.FetchRecentReadings(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, int64(2), readings[0].ID)
	assert.Equal(t, "NODE_02", readings[0].NodeID)
	assert.Equal(t, t1, readings[0].Timestamp)
	assert.Equal(t, 22.5, *readings[0].Temperature)
	assert.Equal(t, 120, *readings[0].Distance)
	assert.True(t, *readings[0].Presence)
	assert.Equal(t, 1, *readings[0].GatewayID)

	assert.Nil(t, readings[1].Temperature)
	assert.Nil(t, readings[1].Presence)
	assert.Nil(t, readings[1].GatewayID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRecentReadings_ZeroLimit(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	readings, err := store.FetchRecentReadings(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, readings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchReadingsSince(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	since := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(readingCols).
		AddRow(1, "NODE_01", since.Add(time.Minute), 20.0, nil, nil, nil, false, nil, nil, nil, nil)

	mock.ExpectQuery(`WHERE timestamp >= \$1\s+ORDER BY timestamp ASC, id ASC`).
		WithArgs(since).
		WillReturnRows(rows)

	readings, err := store.FetchReadingsSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.False(t, *readings[0].Presence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchReadingsSince_QueryError(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM sensor_readings`).WillReturnError(errors.New("timeout"))

	_, err := store.FetchReadingsSince(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrStorage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAlerts(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "timestamp", "node_id", "alert_type", "message", "acknowledged"}).
		AddRow(5, ts, "NODE_01", "low_battery", "Low battery (15%) on NODE_01", false).
		AddRow(4, ts, nil, "HIGH_TEMP", "mock", true)

	mock.ExpectQuery(`SELECT .+ FROM alerts ORDER BY timestamp DESC, id DESC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(rows)

	alerts, err := store.FetchAlerts(context.Background(), 50, false)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertTypeLowBattery, alerts[0].Type)
	assert.Equal(t, "NODE_01", *alerts[0].NodeID)
	assert.Nil(t, alerts[1].NodeID)
	assert.True(t, alerts[1].Acknowledged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAlerts_UnacknowledgedOnly(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM alerts WHERE acknowledged = FALSE ORDER BY`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp", "node_id", "alert_type", "message", "acknowledged"}))

	alerts, err := store.FetchAlerts(context.Background(), 20, true)
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchGatewayStatsHistory(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(statsCols).
		AddRow(8, 2, ts, 3600, 100, 95, 5, 1, 5.0, 95, 93, 2, 97.9, 120.5, 80, 300, 110, 12.5, -55).
		AddRow(7, 2, ts.Add(-time.Minute), 3540, 90, 85, 5, 1, 5.5, 85, 84, 1, 98.8, 110.0, 70, 250, 100, 12.0, nil)

	mock.ExpectQuery(`FROM gateway_stats\s+WHERE gateway_id = \$1`).
		WithArgs(2, 100).
		WillReturnRows(rows)

	history, err := store.FetchGatewayStatsHistory(context.Background(), 2, 100)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].GatewayID)
	assert.Equal(t, int64(95), history[0].RxValid)
	assert.Equal(t, 97.9, history[0].SuccessRatePercent)
	assert.Equal(t, int64(110), history[0].LatencyLastMs)
	assert.Equal(t, -55, *history[0].WifiRSSI)
	assert.Nil(t, history[1].WifiRSSI)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchLatestGatewayStats(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM gateway_stats\s+ORDER BY timestamp DESC, id DESC\s+LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(statsCols).
			AddRow(8, 3, ts, 60, 1, 1, 0, 0, 0.0, 1, 1, 0, 100.0, 10.0, 10, 10, 10, 0.5, nil))

	latest, err := store.FetchLatestGatewayStats(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 3, latest.GatewayID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchLatestGatewayStats_Empty(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM gateway_stats`).WillReturnRows(sqlmock.NewRows(statsCols))

	latest, err := store.FetchLatestGatewayStats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert(t *testing.T) {
	db, mock, store := setupMockStoreDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE alerts SET acknowledged = TRUE WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE alerts`).
		WithArgs(int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.AcknowledgeAlert(context.Background(), 5))
	require.NoError(t, store.AcknowledgeAlert(context.Background(), 999))
	require.NoError(t, mock.ExpectationsWereMet())
}
