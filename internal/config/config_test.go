package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LEDGER_BACKEND", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want \"8080\"", cfg.Port)
	}
	if cfg.Backend != BackendMemory {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendMemory)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want \"text\"", cfg.LogFormat)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LEDGER_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/test.db")
	t.Setenv("PLAN_SEARCH_BUDGET", "1000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want \"9000\"", cfg.Port)
	}
	if cfg.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendSQLite)
	}
	if cfg.SQLitePath != "/tmp/test.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.PlanSearchBudget != 1000 {
		t.Errorf("PlanSearchBudget = %d, want 1000", cfg.PlanSearchBudget)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "postgres without dsn",
			cfg:     Config{Backend: BackendPostgres, LogFormat: "text"},
			wantErr: "POSTGRES_DSN",
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "redis", LogFormat: "text"},
			wantErr: "LEDGER_BACKEND",
		},
		{
			name:    "unknown log format",
			cfg:     Config{Backend: BackendMemory, LogFormat: "xml"},
			wantErr: "LOG_FORMAT",
		},
		{
			name:    "negative budget",
			cfg:     Config{Backend: BackendMemory, LogFormat: "text", PlanSearchBudget: -1},
			wantErr: "PLAN_SEARCH_BUDGET",
		},
		{
			name: "valid",
			cfg:  Config{Backend: BackendMemory, LogFormat: "json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
