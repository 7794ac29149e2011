package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPath_Defaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("expected memory driver, got %s", cfg.Database.Driver)
	}
	if cfg.Pricing.StepPerUnit != 1.0 || cfg.Pricing.RoundTo != 0.5 {
		t.Fatalf("unexpected pricing defaults: %#v", cfg.Pricing)
	}
}

func TestLoadFromPath_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("server:\n  port: 8080\ndatabase:\n  driver: sqlite\n  dsn: file:test.db\npricing:\n  round_to: 0.25\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DATABASE_DSN", "file:override.db")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "file:override.db" {
		t.Fatalf("env override not applied: %s", cfg.Database.DSN)
	}
	if cfg.Pricing.RoundTo != 0.25 {
		t.Fatalf("expected round_to 0.25, got %v", cfg.Pricing.RoundTo)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}

	cfg = Default()
	cfg.Database.Driver = "bolt"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}

	cfg = Default()
	cfg.Pricing.StepPerUnit = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero step")
	}
}
