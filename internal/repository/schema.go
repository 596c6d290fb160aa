package repository

// schemaStatements 建表语句，EnsureSchema 按顺序执行
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		id                  BIGSERIAL PRIMARY KEY,
		node_id             TEXT NOT NULL,
		timestamp           TIMESTAMPTZ NOT NULL,
		temperature_celsius DOUBLE PRECISION,
		humidity_percent    DOUBLE PRECISION,
		distance_cm         INTEGER,
		luminosity_lux      INTEGER,
		presence_detected   BOOLEAN,
		battery_percent     INTEGER,
		rssi_dbm            DOUBLE PRECISION,
		snr_db              DOUBLE PRECISION,
		gateway_id          INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_readings_timestamp ON sensor_readings (timestamp DESC, id DESC)`,

	`CREATE TABLE IF NOT EXISTS gateway_stats (
		id                  BIGSERIAL PRIMARY KEY,
		gateway_id          INTEGER NOT NULL DEFAULT 0,
		timestamp           TIMESTAMPTZ NOT NULL,
		uptime_seconds      BIGINT NOT NULL DEFAULT 0,
		rx_total            BIGINT NOT NULL DEFAULT 0,
		rx_valid            BIGINT NOT NULL DEFAULT 0,
		rx_invalid          BIGINT NOT NULL DEFAULT 0,
		rx_checksum_error   BIGINT NOT NULL DEFAULT 0,
		packet_loss_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		tx_total            BIGINT NOT NULL DEFAULT 0,
		tx_success          BIGINT NOT NULL DEFAULT 0,
		tx_failed           BIGINT NOT NULL DEFAULT 0,
		server_success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		latency_avg_ms      DOUBLE PRECISION NOT NULL DEFAULT 0,
		latency_min_ms      BIGINT NOT NULL DEFAULT 0,
		latency_max_ms      BIGINT NOT NULL DEFAULT 0,
		latency_last_ms     BIGINT NOT NULL DEFAULT 0,
		energy_mah          DOUBLE PRECISION NOT NULL DEFAULT 0,
		wifi_rssi           INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gateway_stats_gateway_ts ON gateway_stats (gateway_id, timestamp DESC, id DESC)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id           BIGSERIAL PRIMARY KEY,
		timestamp    TIMESTAMPTZ NOT NULL,
		node_id      TEXT,
		alert_type   TEXT NOT NULL,
		message      TEXT NOT NULL,
		acknowledged BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts (timestamp DESC, id DESC)`,
}
