package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/installkit/installkit/pkg/setup"
)

func newTestStore(t *testing.T, driver string) *ConfigStore {
	t.Helper()
	connector, err := NewConnector(driver, "utf8mb4")
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config", "db.yaml")
	return NewConfigStore(path, connector, zerolog.Nop())
}

func TestConfigStore_RoundTrip(t *testing.T) {
	tests := []ConnectionConfig{
		{Host: "localhost", Port: 3306, DBName: "app", User: "root", Password: ""},
		{Host: "db.internal", Port: 5432, DBName: "shop", User: "shop", Password: "s3cr:t@#"},
		{Host: "127.0.0.1", Port: 1, DBName: "x", User: "u", Password: "'quoted'"},
	}

	for _, cfg := range tests {
		t.Run(cfg.Host, func(t *testing.T) {
			store := newTestStore(t, "mysql")

			if err := store.Write(cfg); err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			got, err := store.Read()
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got == nil {
				t.Fatal("Expected config after write")
			}

			want := cfg
			want.PasswordSet = true
			if *got != want {
				t.Errorf("Read() = %+v, want %+v", *got, want)
			}
			if !store.Validate(got) {
				t.Error("Written config should validate")
			}
		})
	}
}

func TestConfigStore_ReadAbsent(t *testing.T) {
	store := newTestStore(t, "mysql")

	cfg, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if cfg != nil {
		t.Errorf("Expected nil config, got %+v", cfg)
	}
}

func TestConfigStore_ReadMissingPasswordKey(t *testing.T) {
	store := newTestStore(t, "mysql")
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0755); err != nil {
		t.Fatal(err)
	}
	doc := "parameters:\n    dbname: app\n    host: localhost\n    port: 3306\n    user: root\n"
	if err := os.WriteFile(store.Path(), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if cfg.PasswordSet {
		t.Error("PasswordSet should be false when the key is missing")
	}
	if store.Validate(cfg) {
		t.Error("Config without password key must not validate")
	}
}

func TestConfigStore_ReadMalformed(t *testing.T) {
	store := newTestStore(t, "mysql")
	_ = os.MkdirAll(filepath.Dir(store.Path()), 0755)
	if err := os.WriteFile(store.Path(), []byte("parameters: [\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Read(); !setup.IsConfiguration(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestConfigStore_Validate(t *testing.T) {
	valid := ConnectionConfig{Host: "h", Port: 3306, DBName: "d", User: "u", PasswordSet: true}

	tests := []struct {
		name   string
		mutate func(c *ConnectionConfig)
		want   bool
	}{
		{"valid", func(c *ConnectionConfig) {}, true},
		{"empty password allowed", func(c *ConnectionConfig) { c.Password = "" }, true},
		{"missing host", func(c *ConnectionConfig) { c.Host = "" }, false},
		{"missing port", func(c *ConnectionConfig) { c.Port = 0 }, false},
		{"missing dbname", func(c *ConnectionConfig) { c.DBName = "" }, false},
		{"missing user", func(c *ConnectionConfig) { c.User = "" }, false},
		{"missing password key", func(c *ConnectionConfig) { c.PasswordSet = false }, false},
	}

	store := newTestStore(t, "mysql")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if got := store.Validate(&cfg); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}

	if store.Validate(nil) {
		t.Error("nil config must not validate")
	}
}

func TestConfigStore_TestConnection(t *testing.T) {
	store := newTestStore(t, "sqlite")
	ctx := context.Background()

	ok := ConnectionConfig{Host: "localhost", Port: 1, User: "root", DBName: filepath.Join(t.TempDir(), "app.db"), PasswordSet: true}
	res := store.TestConnection(ctx, ok)
	if !res.Success {
		t.Errorf("Expected success, got %s", res.Message)
	}

	bad := ok
	bad.DBName = filepath.Join(t.TempDir(), "missing", "dir", "app.db")
	res = store.TestConnection(ctx, bad)
	if res.Success {
		t.Error("Expected failure for unreachable database")
	}
	if res.Outcome != setup.OutcomeConnectivity {
		t.Errorf("Expected connectivity outcome, got %s", res.Outcome)
	}
	if res.Message == "" {
		t.Error("Failure should carry a reason")
	}
}
