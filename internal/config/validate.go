package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Storage drivers accepted by storage.driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := validateURL("server.ws_url", c.Server.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("server.rest_url", c.Server.RestURL, "http", "https"); err != nil {
		return err
	}

	if c.Auth.Token == "" && c.Auth.TokenFile == "" {
		return errors.New("auth.token or auth.token_file is required")
	}

	if c.Connection.ReconnectAttempts < 1 {
		return errors.New("connection.reconnect_attempts must be >= 1")
	}
	if c.Connection.MaxPending < 1 {
		return errors.New("connection.max_pending must be >= 1")
	}
	if c.Connection.PendingTTL < 0 {
		return errors.New("connection.pending_ttl must be >= 0")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	case DriverPostgres:
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use scheme %v, got %q", field, schemes, u.Scheme)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
