package config

import "time"

// Config is the root configuration for a realtime client instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Connection ConnectionConfig `yaml:"connection"`
	Session    SessionConfig    `yaml:"session"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Storage    StorageConfig    `yaml:"storage"`
	Health     HealthConfig     `yaml:"health"`
}

// InstanceConfig identifies this client.
type InstanceConfig struct {
	ID string `yaml:"id" env:"REALTIME_INSTANCE_ID"`
}

// ServerConfig holds the backend endpoints.
type ServerConfig struct {
	WSURL      string        `yaml:"ws_url" env:"REALTIME_WS_URL"`
	RestURL    string        `yaml:"rest_url" env:"REALTIME_REST_URL"`
	PingPath   string        `yaml:"ping_path"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// AuthConfig locates the bearer token used for the transport handshake.
type AuthConfig struct {
	Token     string `yaml:"token" env:"REALTIME_TOKEN"`
	TokenFile string `yaml:"token_file" env:"REALTIME_TOKEN_FILE"`
}

// ConnectionConfig holds ConnectionManager and transport settings.
type ConnectionConfig struct {
	ReconnectAttempts       int           `yaml:"reconnect_attempts"`
	ReconnectDelay          time.Duration `yaml:"reconnect_delay"`
	ServerReconnectDelay    time.Duration `yaml:"server_reconnect_delay"`
	BackgroundRetryInterval time.Duration `yaml:"background_retry_interval"`
	DisableBackgroundRetry  bool          `yaml:"disable_background_retry"`
	HandshakeTimeout        time.Duration `yaml:"handshake_timeout"`
	PingInterval            time.Duration `yaml:"ping_interval"`
	PingTimeout             time.Duration `yaml:"ping_timeout"`
	WriteTimeout            time.Duration `yaml:"write_timeout"`
	BufferSize              int           `yaml:"buffer_size"`
	MaxPending              int           `yaml:"max_pending"`
	PendingTTL              time.Duration `yaml:"pending_ttl"` // 0 keeps queued messages until sent
}

// SessionConfig holds per-room typing indicator timing.
type SessionConfig struct {
	TypingThrottle time.Duration `yaml:"typing_throttle"`
	TypingExpiry   time.Duration `yaml:"typing_expiry"`
}

// MonitorConfig holds connectivity probe settings.
type MonitorConfig struct {
	Disabled      bool          `yaml:"disabled"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

// StorageConfig selects and configures the durable snapshot store.
type StorageConfig struct {
	Driver   string       `yaml:"driver" env:"REALTIME_STORAGE_DRIVER"` // sqlite, postgres, redis, memory
	SQLite   SQLiteConfig `yaml:"sqlite"`
	Postgres DBConfig     `yaml:"postgres"`
	Redis    RedisConfig  `yaml:"redis"`
}

// SQLiteConfig holds the local database file location.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"REALTIME_SQLITE_PATH"`
}

// DBConfig holds a single PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password" env:"REALTIME_DB_PASSWORD"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds a Redis connection.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password" env:"REALTIME_REDIS_PASSWORD"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// HealthConfig holds the status endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
