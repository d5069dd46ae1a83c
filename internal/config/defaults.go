package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPingPath                = "/api/ping"
	DefaultAPITimeout              = 30 * time.Second
	DefaultMaxRetries              = 3
	DefaultReconnectAttempts       = 5
	DefaultReconnectDelay          = 1 * time.Second
	DefaultServerReconnectDelay    = 1 * time.Second
	DefaultBackgroundRetryInterval = 30 * time.Second
	DefaultHandshakeTimeout        = 10 * time.Second
	DefaultPingInterval            = 25 * time.Second
	DefaultPingTimeout             = 60 * time.Second
	DefaultWriteTimeout            = 5 * time.Second
	DefaultBufferSize              = 1000
	DefaultMaxPending              = 500
	DefaultTypingThrottle          = 2 * time.Second
	DefaultTypingExpiry            = 3 * time.Second
	DefaultProbeInterval           = 15 * time.Second
	DefaultProbeTimeout            = 5 * time.Second
	DefaultStorageDriver           = "sqlite"
	DefaultSQLitePath              = "realtime.db"
	DefaultDBPort                  = 5432
	DefaultDBSSLMode               = "prefer"
	DefaultMaxConns                = 4
	DefaultMinConns                = 1
	DefaultRedisKeyPrefix          = "realtime:"
	DefaultHealthPort              = 8080
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.PingPath == "" {
		c.Server.PingPath = DefaultPingPath
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultAPITimeout
	}
	if c.Server.MaxRetries == 0 {
		c.Server.MaxRetries = DefaultMaxRetries
	}

	// Connection defaults
	conn := &c.Connection
	if conn.ReconnectAttempts == 0 {
		conn.ReconnectAttempts = DefaultReconnectAttempts
	}
	if conn.ReconnectDelay == 0 {
		conn.ReconnectDelay = DefaultReconnectDelay
	}
	if conn.ServerReconnectDelay == 0 {
		conn.ServerReconnectDelay = DefaultServerReconnectDelay
	}
	if conn.BackgroundRetryInterval == 0 {
		conn.BackgroundRetryInterval = DefaultBackgroundRetryInterval
	}
	if conn.HandshakeTimeout == 0 {
		conn.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if conn.PingInterval == 0 {
		conn.PingInterval = DefaultPingInterval
	}
	if conn.PingTimeout == 0 {
		conn.PingTimeout = DefaultPingTimeout
	}
	if conn.WriteTimeout == 0 {
		conn.WriteTimeout = DefaultWriteTimeout
	}
	if conn.BufferSize == 0 {
		conn.BufferSize = DefaultBufferSize
	}
	if conn.MaxPending == 0 {
		conn.MaxPending = DefaultMaxPending
	}

	// Session defaults
	if c.Session.TypingThrottle == 0 {
		c.Session.TypingThrottle = DefaultTypingThrottle
	}
	if c.Session.TypingExpiry == 0 {
		c.Session.TypingExpiry = DefaultTypingExpiry
	}

	// Monitor defaults
	if c.Monitor.ProbeInterval == 0 {
		c.Monitor.ProbeInterval = DefaultProbeInterval
	}
	if c.Monitor.ProbeTimeout == 0 {
		c.Monitor.ProbeTimeout = DefaultProbeTimeout
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = DefaultSQLitePath
	}
	applyDBDefaults(&c.Storage.Postgres)
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
