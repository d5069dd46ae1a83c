package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: desk-1
server:
  ws_url: ws://localhost:5000/ws
  rest_url: http://localhost:5000
auth:
  token: abc
storage:
  driver: memory
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "desk-1" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "desk-1")
	}
	if cfg.Server.WSURL != "ws://localhost:5000/ws" {
		t.Errorf("Server.WSURL = %q, want %q", cfg.Server.WSURL, "ws://localhost:5000/ws")
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, DriverMemory)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CHAT_TOKEN", "secret123")

	yaml := `
instance:
  id: desk-1
auth:
  token: ${TEST_CHAT_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.Token != "secret123" {
		t.Errorf("Auth.Token = %q, want %q", cfg.Auth.Token, "secret123")
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("REALTIME_WS_URL", "wss://chat.example.com/ws")
	t.Setenv("REALTIME_DB_PASSWORD", "from-env")

	yaml := `
instance:
  id: desk-1
server:
  ws_url: ws://localhost:5000/ws
storage:
  postgres:
    password: from-file
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.WSURL != "wss://chat.example.com/ws" {
		t.Errorf("Server.WSURL = %q, want %q", cfg.Server.WSURL, "wss://chat.example.com/ws")
	}
	if cfg.Storage.Postgres.Password != "from-env" {
		t.Errorf("Storage.Postgres.Password = %q, want %q", cfg.Storage.Postgres.Password, "from-env")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: desk-1
connection:
  reconnect_attempts: 3
  reconnect_delay: 250ms
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Explicit values survive
	if cfg.Connection.ReconnectAttempts != 3 {
		t.Errorf("Connection.ReconnectAttempts = %d, want %d", cfg.Connection.ReconnectAttempts, 3)
	}
	if cfg.Connection.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("Connection.ReconnectDelay = %v, want %v", cfg.Connection.ReconnectDelay, 250*time.Millisecond)
	}

	// Check defaults were applied
	if cfg.Connection.MaxPending != DefaultMaxPending {
		t.Errorf("Connection.MaxPending = %d, want default %d", cfg.Connection.MaxPending, DefaultMaxPending)
	}
	if cfg.Connection.PendingTTL != 0 {
		t.Errorf("Connection.PendingTTL = %v, want 0", cfg.Connection.PendingTTL)
	}
	if cfg.Session.TypingExpiry != DefaultTypingExpiry {
		t.Errorf("Session.TypingExpiry = %v, want default %v", cfg.Session.TypingExpiry, DefaultTypingExpiry)
	}
	if cfg.Storage.Driver != DefaultStorageDriver {
		t.Errorf("Storage.Driver = %q, want default %q", cfg.Storage.Driver, DefaultStorageDriver)
	}
	if cfg.Storage.Postgres.Port != DefaultDBPort {
		t.Errorf("Storage.Postgres.Port = %d, want default %d", cfg.Storage.Postgres.Port, DefaultDBPort)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Instance: InstanceConfig{ID: "test"},
			Server: ServerConfig{
				WSURL:   "ws://localhost:5000/ws",
				RestURL: "http://localhost:5000",
			},
			Auth:    AuthConfig{Token: "abc"},
			Storage: StorageConfig{Driver: DriverMemory},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing ws url",
			mutate:  func(c *Config) { c.Server.WSURL = "" },
			wantErr: "server.ws_url is required",
		},
		{
			name:    "ws url with http scheme",
			mutate:  func(c *Config) { c.Server.WSURL = "http://localhost:5000/ws" },
			wantErr: `server.ws_url must use scheme [ws wss], got "http"`,
		},
		{
			name:    "missing credentials",
			mutate:  func(c *Config) { c.Auth.Token = "" },
			wantErr: "auth.token or auth.token_file is required",
		},
		{
			name:    "negative pending ttl",
			mutate:  func(c *Config) { c.Connection.PendingTTL = -time.Second },
			wantErr: "connection.pending_ttl must be >= 0",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *Config) { c.Storage.Driver = "etcd" },
			wantErr: `storage.driver "etcd" is not supported`,
		},
		{
			name: "missing postgres password",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 4}
			},
			wantErr: "storage.postgres.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "storage.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "missing redis addr",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverRedis
			},
			wantErr: "storage.redis.addr is required",
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("server: [unclosed")); err == nil {
		t.Error("Parse() expected error for invalid yaml, got nil")
	}
}

func TestParse_EnvOverrideWinsOverDocument(t *testing.T) {
	t.Setenv("REALTIME_WS_URL", "ws://override/ws")
	cfg, err := Parse([]byte("server:\n  ws_url: ws://file/ws\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Server.WSURL != "ws://override/ws" {
		t.Errorf("Server.WSURL = %q, want %q", cfg.Server.WSURL, "ws://override/ws")
	}
}
