// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Backup.MaxParallel != 3 {
		t.Errorf("Backup.MaxParallel = %d, want 3", cfg.Backup.MaxParallel)
	}
	r := cfg.Backup.Retention
	if r.FullDays != 30 || r.IncrementalDays != 7 || r.SnapshotDays != 90 {
		t.Errorf("retention = %d/%d/%d, want 30/7/90", r.FullDays, r.IncrementalDays, r.SnapshotDays)
	}
	if r.DeleteRemote {
		t.Error("DeleteRemote should be false by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tenantvault.yaml")
	yaml := `
backup:
  dir: /srv/backups
  max_parallel: 5
  retention:
    full_days: 45
storage:
  url: s3://school-backups?region=eu-central-1
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BACKUP_MAX_PARALLEL", "2")
	t.Setenv("RETENTION_SWEEP_INTERVAL", "6h")
	t.Setenv("GDPR_USER_TABLES", "notifications, grades:student_id")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backup.Dir != "/srv/backups" {
		t.Errorf("Backup.Dir = %q", cfg.Backup.Dir)
	}
	if cfg.Backup.MaxParallel != 2 {
		t.Errorf("Backup.MaxParallel = %d, want env value 2", cfg.Backup.MaxParallel)
	}
	if cfg.Backup.Retention.FullDays != 45 {
		t.Errorf("FullDays = %d, want 45", cfg.Backup.Retention.FullDays)
	}
	if cfg.Backup.Retention.IncrementalDays != 7 {
		t.Errorf("IncrementalDays = %d, want default 7", cfg.Backup.Retention.IncrementalDays)
	}
	if cfg.Backup.Retention.SweepInterval != 6*time.Hour {
		t.Errorf("SweepInterval = %v, want 6h", cfg.Backup.Retention.SweepInterval)
	}
	if got := strings.Join(cfg.GDPR.UserTables, "|"); got != "notifications|grades:student_id" {
		t.Errorf("UserTables = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero parallel", func(c *Config) { c.Backup.MaxParallel = 0 }, "BACKUP_MAX_PARALLEL"},
		{"bad retention", func(c *Config) { c.Backup.Retention.SnapshotDays = 0 }, "RETENTION_SNAPSHOT_DAYS"},
		{"bad storage scheme", func(c *Config) { c.Storage.URL = "smb://share/x" }, "not supported"},
		{"sqlite without dsn", func(c *Config) { c.Metadata.Driver = "sqlite" }, "METADATA_DSN"},
		{"identity without key", func(c *Config) { c.Identity.URL = "https://auth.example.com" }, "AUTH_SERVICE_KEY"},
		{"bad webhook", func(c *Config) { c.Notify.WebhookURL = "ftp://x" }, "NOTIFY_WEBHOOK_URL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "app", Password: "p@ss", Name: "school", SSLMode: "require"}
	want := "postgres://app:p%40ss@db:5433/school?sslmode=require"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestRetentionDays(t *testing.T) {
	r := defaultConfig().Backup.Retention
	if d, _ := r.RetentionDays("snapshot"); d != 90 {
		t.Errorf("snapshot = %d, want 90", d)
	}
	if _, err := r.RetentionDays("weekly"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestSecrets(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Password = "pg-pass"
	cfg.Backup.EncryptionKey = "archive-key"
	cfg.Identity.ServiceKey = "svc-key"

	got := strings.Join(cfg.Secrets(), ",")
	if got != "pg-pass,archive-key,svc-key" {
		t.Errorf("Secrets() = %s", got)
	}
}
