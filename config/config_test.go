package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objsync.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeFile(t, "rest:\n  base_url: https://api.example.com/v1\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rest.BaseURL != "https://api.example.com/v1" {
		t.Errorf("Rest.BaseURL = %q", cfg.Rest.BaseURL)
	}
	if cfg.Rest.Timeout != 30*time.Second {
		t.Errorf("Rest.Timeout = %v, want default", cfg.Rest.Timeout)
	}
	if cfg.Logger.Level != "info" || cfg.Cache.Name != "objsync" || cfg.Crud.MaxInFlight != 16 {
		t.Errorf("mandatory sections not defaulted: %+v %+v %+v", cfg.Logger, cfg.Cache, cfg.Crud)
	}
	if cfg.Cron.Location != "UTC" {
		t.Errorf("Cron.Location = %q", cfg.Cron.Location)
	}
	if cfg.Kafka != nil || cfg.ClickHouse != nil || cfg.MySQL != nil || cfg.History != nil || cfg.Throttle != nil {
		t.Error("optional sections must stay disabled")
	}
}

func TestLoad_Full(t *testing.T) {
	t.Setenv("OBJSYNC_CH_PASSWORD", "s3cret")
	body := `
logger:
  level: debug
  encoding: console
crud:
  name: orders
  stale_after: 5s
rest:
  base_url: https://api.example.com
  timeout: 2s
throttle:
  max_in_flight: 4
kafka:
  topic: sync
  producer:
    brokers: ["localhost:9092"]
  consumer:
    brokers: ["localhost:9092"]
    group_id: objsync-1
clickhouse:
  hosts: ["localhost:9000"]
  username: default
  password: ${OBJSYNC_CH_PASSWORD}
  writer:
    flush_interval: 1s
history:
  spec: "*/10 * * * * *"
  retention: 24h
`
	cfg, err := Load(writeFile(t, body))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logger.Level != "debug" || cfg.Logger.Encoding != "console" {
		t.Errorf("Logger = %+v", cfg.Logger)
	}
	if cfg.Crud.Name != "orders" || cfg.Crud.StaleAfter != 5*time.Second {
		t.Errorf("Crud = %+v", cfg.Crud)
	}
	if cfg.Throttle.MaxInFlight != 4 {
		t.Errorf("Throttle.MaxInFlight = %d", cfg.Throttle.MaxInFlight)
	}
	if cfg.Kafka.Consumer == nil || len(cfg.Kafka.Consumer.Topics) != 1 || cfg.Kafka.Consumer.Topics[0] != "sync" {
		t.Errorf("consumer topics should default to the signal topic: %+v", cfg.Kafka.Consumer)
	}
	if cfg.ClickHouse.Password != "s3cret" {
		t.Errorf("ClickHouse.Password = %q, want expanded env", cfg.ClickHouse.Password)
	}
	if cfg.ClickHouse.Writer == nil || cfg.ClickHouse.Writer.FlushInterval != time.Second {
		t.Errorf("ClickHouse.Writer = %+v", cfg.ClickHouse.Writer)
	}
	if cfg.History.Retention != 24*time.Hour || cfg.History.ActionTable != "objsync_actions" {
		t.Errorf("History = %+v", cfg.History)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing base url",
			body:    "logger:\n  level: info\n",
			wantErr: "section rest",
		},
		{
			name:    "invalid yaml",
			body:    "rest: [",
			wantErr: "failed to parse",
		},
		{
			name:    "invalid logger level",
			body:    "logger:\n  level: loud\nrest:\n  base_url: https://x.io\n",
			wantErr: "section logger",
		},
		{
			name:    "bad duration",
			body:    "rest:\n  base_url: https://x.io\n  timeout: soon\n",
			wantErr: "failed to parse",
		},
		{
			name:    "clickhouse without hosts",
			body:    "rest:\n  base_url: https://x.io\nclickhouse:\n  username: default\n",
			wantErr: "section clickhouse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_HistoryNeedsRecorder(t *testing.T) {
	_, err := Parse([]byte("rest:\n  base_url: https://x.io\nhistory: {}\n"))
	if !errors.Is(err, ErrNoRecorder) {
		t.Fatalf("Parse() error = %v, want ErrNoRecorder", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() error = %v, want os.ErrNotExist", err)
	}
}
