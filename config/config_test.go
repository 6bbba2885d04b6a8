package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_SQLiteDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PURGE_INTERVAL_MINUTES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SQLitePath != "tracker.db" {
		t.Errorf("SQLitePath = %q, want tracker.db", cfg.SQLitePath)
	}
	if cfg.PurgeInterval != time.Hour {
		t.Errorf("PurgeInterval = %v, want 1h", cfg.PurgeInterval)
	}
	if cfg.Port != 5200 {
		t.Errorf("Port = %d, want 5200", cfg.Port)
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	got := envList("ALLOWED_ORIGINS", nil)
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("envList = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug {
		t.Error("debug not parsed")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Error("unknown level should fall back to info")
	}
}
