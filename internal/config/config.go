package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量加载配置
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		c.Port = parseInt(port, c.Port)
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_NAME"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
	if maxConns := os.Getenv(prefix + "_MAX_CONNS"); maxConns != "" {
		c.MaxConns = parseInt(maxConns, c.MaxConns)
	}
	if maxIdle := os.Getenv(prefix + "_MAX_IDLE"); maxIdle != "" {
		c.MaxIdle = parseInt(maxIdle, c.MaxIdle)
	}
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		c.DB = parseInt(db, c.DB)
	}
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if clientID := os.Getenv(prefix + "_CLIENT_ID"); clientID != "" {
		c.ClientID = clientID
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if qos := os.Getenv(prefix + "_QOS"); qos != "" {
		c.QoS = byte(parseInt(qos, int(c.QoS)))
	}
}

// Config 环境监测服务配置
type Config struct {
	HTTP struct {
		Addr         string
		MaxBodyBytes int64 // 请求体上限（字节）
	}

	DBEnabled        bool
	DBMemoryFallback bool // DB 连接失败时允许回退到内存存储（仅用于本地联调）
	Database         DatabaseConfig

	RedisEnabled bool
	Redis        RedisConfig

	MQTTEnabled bool
	MQTT        MQTTConfig

	Ingest struct {
		// 是否把设备上报的相对毫秒时间戳换算为绝对时间
		TimestampReconcile bool
	}

	// 发布配置（Redis Streams + 网关最新快照镜像）
	Publish struct {
		StreamPrefix    string        // 如 "envmon:"
		GatewayCacheTTL time.Duration // 网关快照镜像 TTL
	}

	Topics struct {
		Telemetry string // 如 "envmon/+/telemetry"
		Stats     string // 如 "envmon/+/stats"
	}

	Mock struct {
		Enabled  bool
		Interval time.Duration
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.MaxBodyBytes = int64(parseInt(getEnv("MAX_BODY_BYTES", "1048576"), 1<<20))

	// DB_ENABLED=false 时直接使用内存存储；启用但连接失败时默认退出
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.DBMemoryFallback = getEnv("DB_MEMORY_FALLBACK", "false") == "true"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "envmon"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTTEnabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "envmon-server"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Ingest.TimestampReconcile = getEnv("TIMESTAMP_RECONCILE", "true") == "true"

	cfg.Publish.StreamPrefix = getEnv("REDIS_STREAM_PREFIX", "envmon:")
	ttl, err := time.ParseDuration(getEnv("GATEWAY_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_CACHE_TTL: %w", err)
	}
	cfg.Publish.GatewayCacheTTL = ttl

	cfg.Topics.Telemetry = getEnv("MQTT_TELEMETRY_TOPIC", "envmon/+/telemetry")
	cfg.Topics.Stats = getEnv("MQTT_STATS_TOPIC", "envmon/+/stats")

	cfg.Mock.Enabled = getEnv("MOCK_ENABLED", "false") == "true"
	interval, err := time.ParseDuration(getEnv("MOCK_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid MOCK_INTERVAL: %w", err)
	}
	cfg.Mock.Interval = interval

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
