package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"lora-envmon/internal/models"
)

// PostgresStore Store 的 PostgreSQL 实现
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore 创建 PostgresStore
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// 确保实现了接口
var _ Store = (*PostgresStore)(nil)

const readingColumns = `id, node_id, timestamp, temperature_celsius, humidity_percent, distance_cm,
	luminosity_lux, presence_detected, battery_percent, rssi_dbm, snr_db, gateway_id`

const gatewayStatsColumns = `id, gateway_id, timestamp, uptime_seconds,
	rx_total, rx_valid, rx_invalid, rx_checksum_error, packet_loss_percent,
	tx_total, tx_success, tx_failed, server_success_rate,
	latency_avg_ms, latency_min_ms, latency_max_ms, latency_last_ms,
	energy_mah, wifi_rssi`

const alertColumns = `id, timestamp, node_id, alert_type, message, acknowledged`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageError("ensure schema", err)
		}
	}
	s.logger.Info("Database schema ready")
	return nil
}

func (s *PostgresStore) SaveReading(ctx context.Context, reading *models.Reading) error {
	query := `
		INSERT INTO sensor_readings (
			node_id, timestamp, temperature_celsius, humidity_percent, distance_cm,
			luminosity_lux, presence_detected, battery_percent, rssi_dbm, snr_db, gateway_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		reading.NodeID,
		reading.Timestamp.UTC(),
		reading.Temperature,
		reading.Humidity,
		reading.Distance,
		reading.Luminosity,
		reading.Presence,
		reading.Battery,
		reading.RSSI,
		reading.SNR,
		reading.GatewayID,
	).Scan(&id)
	if err != nil {
		return storageError("insert reading", err)
	}
	reading.ID = id
	return nil
}

func (s *PostgresStore) SaveGatewayStats(ctx context.Context, stats *models.GatewayStatsSnapshot) error {
	query := `
		INSERT INTO gateway_stats (
			gateway_id, timestamp, uptime_seconds,
			rx_total, rx_valid, rx_invalid, rx_checksum_error, packet_loss_percent,
			tx_total, tx_success, tx_failed, server_success_rate,
			latency_avg_ms, latency_min_ms, latency_max_ms, latency_last_ms,
			energy_mah, wifi_rssi
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		stats.GatewayID,
		stats.Timestamp.UTC(),
		stats.UptimeSeconds,
		stats.RxTotal,
		stats.RxValid,
		stats.RxInvalid,
		stats.RxChecksumError,
		stats.PacketLossPercent,
		stats.TxTotal,
		stats.TxSuccess,
		stats.TxFailed,
		stats.SuccessRatePercent,
		stats.LatencyAvgMs,
		stats.LatencyMinMs,
		stats.LatencyMaxMs,
		stats.LatencyLastMs,
		stats.EnergyMah,
		stats.WifiRSSI,
	).Scan(&id)
	if err != nil {
		return storageError("insert gateway stats", err)
	}
	stats.ID = id
	return nil
}

const insertAlertQuery = `
	INSERT INTO alerts (timestamp, node_id, alert_type, message, acknowledged)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id
`

func (s *PostgresStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	var id int64
	err := s.db.QueryRowContext(ctx, insertAlertQuery,
		alert.Timestamp.UTC(), alert.NodeID, string(alert.Type), alert.Message, alert.Acknowledged,
	).Scan(&id)
	if err != nil {
		return storageError("insert alert", err)
	}
	alert.ID = id
	return nil
}

func (s *PostgresStore) SaveAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin alerts transaction", err)
	}

	ids := make([]int64, len(alerts))
	for i := range alerts {
		a := &alerts[i]
		err := tx.QueryRowContext(ctx, insertAlertQuery,
			a.Timestamp.UTC(), a.NodeID, string(a.Type), a.Message, a.Acknowledged,
		).Scan(&ids[i])
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("Failed to rollback alerts transaction", zap.Error(rbErr))
			}
			return storageError("insert alert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit alerts transaction", err)
	}
	for i := range alerts {
		alerts[i].ID = ids[i]
	}
	return nil
}

func (s *PostgresStore) FetchRecentReadings(ctx context.Context, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		return []models.Reading{}, nil
	}
	query := `SELECT ` + readingColumns + `
		FROM sensor_readings
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, storageError("query recent readings", err)
	}
	return scanReadings(rows)
}

func (s *PostgresStore) FetchReadingsSince(ctx context.Context, since time.Time) ([]models.Reading, error) {
	query := `SELECT ` + readingColumns + `
		FROM sensor_readings
		WHERE timestamp >= $1
		ORDER BY timestamp ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, storageError("query readings since", err)
	}
	return scanReadings(rows)
}

func (s *PostgresStore) FetchAlerts(ctx context.Context, limit int, unackOnly bool) ([]models.Alert, error) {
	if limit <= 0 {
		return []models.Alert{}, nil
	}
	query := `SELECT ` + alertColumns + ` FROM alerts`
	if unackOnly {
		query += ` WHERE acknowledged = FALSE`
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, storageError("query alerts", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var (
			a         models.Alert
			nodeID    sql.NullString
			alertType string
		)
		if err := rows.Scan(&a.ID, &a.Timestamp, &nodeID, &alertType, &a.Message, &a.Acknowledged); err != nil {
			return nil, storageError("scan alert", err)
		}
		a.Timestamp = a.Timestamp.UTC()
		a.Type = models.AlertType(alertType)
		if nodeID.Valid {
			v := nodeID.String
			a.NodeID = &v
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate alerts", err)
	}
	return alerts, nil
}

func (s *PostgresStore) FetchGatewayStatsHistory(ctx context.Context, gatewayID, limit int) ([]models.GatewayStatsSnapshot, error) {
	if limit <= 0 {
		return []models.GatewayStatsSnapshot{}, nil
	}
	query := `SELECT ` + gatewayStatsColumns + `
		FROM gateway_stats
		WHERE gateway_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, gatewayID, limit)
	if err != nil {
		return nil, storageError("query gateway stats history", err)
	}
	defer rows.Close()

	history := []models.GatewayStatsSnapshot{}
	for rows.Next() {
		st, err := scanGatewayStats(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate gateway stats", err)
	}
	return history, nil
}

func (s *PostgresStore) FetchLatestGatewayStats(ctx context.Context) (*models.GatewayStatsSnapshot, error) {
	query := `SELECT ` + gatewayStatsColumns + `
		FROM gateway_stats
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`
	st, err := scanGatewayStats(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return storageError("acknowledge alert", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("Acknowledge for unknown alert ignored", zap.Int64("alert_id", id))
	}
	return nil
}

// rowScanner *sql.Row 与 *sql.Rows 的公共部分
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	defer rows.Close()

	readings := []models.Reading{}
	for rows.Next() {
		var (
			r                                   models.Reading
			temperature, humidity, rssi, snr    sql.NullFloat64
			distance, luminosity, battery, gwID sql.NullInt64
			presence                            sql.NullBool
		)
		err := rows.Scan(
			&r.ID, &r.NodeID, &r.Timestamp,
			&temperature, &humidity, &distance, &luminosity, &presence,
			&battery, &rssi, &snr, &gwID,
		)
		if err != nil {
			return nil, storageError("scan reading", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		r.Temperature = nullFloat(temperature)
		r.Humidity = nullFloat(humidity)
		r.Distance = nullInt(distance)
		r.Luminosity = nullInt(luminosity)
		r.Presence = nullBool(presence)
		r.Battery = nullInt(battery)
		r.RSSI = nullFloat(rssi)
		r.SNR = nullFloat(snr)
		r.GatewayID = nullInt(gwID)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate readings", err)
	}
	return readings, nil
}

func scanGatewayStats(row rowScanner) (models.GatewayStatsSnapshot, error) {
	var (
		st       models.GatewayStatsSnapshot
		wifiRSSI sql.NullInt64
	)
	err := row.Scan(
		&st.ID, &st.GatewayID, &st.Timestamp, &st.UptimeSeconds,
		&st.RxTotal, &st.RxValid, &st.RxInvalid, &st.RxChecksumError, &st.PacketLossPercent,
		&st.TxTotal, &st.TxSuccess, &st.TxFailed, &st.SuccessRatePercent,
		&st.LatencyAvgMs, &st.LatencyMinMs, &st.LatencyMaxMs, &st.LatencyLastMs,
		&st.EnergyMah, &wifiRSSI,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return st, err
		}
		return st, storageError("scan gateway stats", err)
	}
	st.Timestamp = st.Timestamp.UTC()
	st.WifiRSSI = nullInt(wifiRSSI)
	return st, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
