// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order of priority.
var DefaultConfigPaths = []string{
	"tenantvault.yaml",
	"tenantvault.yml",
	"/etc/tenantvault/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "TENANTVAULT_CONFIG"

// DefaultUserTables is the user-owned table plan used by the deletion engine
// when gdpr.user_tables is not configured.
var DefaultUserTables = []string{
	"notifications",
	"messages:sender_id",
	"attendance_records:student_id",
	"grades:student_id",
	"assignment_submissions:student_id",
	"parent_communications",
	"user_sessions",
	"activity_logs",
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Name:           "postgres",
			SSLMode:        "disable",
			PgDumpPath:     "pg_dump",
			PsqlPath:       "psql",
			MaxOpenConns:   5,
			CommandTimeout: 30 * time.Minute,
		},
		Metadata: MetadataConfig{
			Driver: "postgres",
		},
		Backup: BackupConfig{
			Dir:              "/var/lib/tenantvault/backups",
			CompressionLevel: 6,
			MaxParallel:      3,
			Retention: RetentionConfig{
				FullDays:        30,
				IncrementalDays: 7,
				SnapshotDays:    90,
				DeleteRemote:    false,
				SweepInterval:   24 * time.Hour,
			},
		},
		Storage: StorageConfig{
			Timeout: 5 * time.Minute,
		},
		Restore: RestoreConfig{
			Lock: LockConfig{
				TTL: 2 * time.Hour,
			},
		},
		GDPR: GDPRConfig{
			UserTables:           DefaultUserTables,
			DefaultRetentionDays: 30,
			PurgeInterval:        time.Hour,
		},
		Identity: IdentityConfig{
			Timeout: 15 * time.Second,
		},
		Notify: NotifyConfig{
			RateLimit:     1,
			Burst:         5,
			NATSSubject:   "tenantvault.events",
			DrainInterval: time.Minute,
		},
		Server: ServerConfig{
			Addr:            ":9464",
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment. configPath may be empty, in which case the file is searched for.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they come from the environment.
var sliceConfigPaths = []string{
	"gdpr.user_tables",
	"restore.tables",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"pg_host":            "database.host",
	"pg_port":            "database.port",
	"pg_user":            "database.user",
	"pg_password":        "database.password",
	"pg_database":        "database.name",
	"pg_sslmode":         "database.sslmode",
	"pg_dump_path":       "database.pg_dump_path",
	"psql_path":          "database.psql_path",
	"pg_max_open_conns":  "database.max_open_conns",
	"pg_command_timeout": "database.command_timeout",

	"metadata_driver": "metadata.driver",
	"metadata_dsn":    "metadata.dsn",

	"backup_dir":                 "backup.dir",
	"backup_encryption_key":      "backup.encryption_key",
	"backup_compression_level":   "backup.compression_level",
	"backup_max_parallel":        "backup.max_parallel",
	"retention_full_days":        "backup.retention.full_days",
	"retention_incremental_days": "backup.retention.incremental_days",
	"retention_snapshot_days":    "backup.retention.snapshot_days",
	"retention_delete_remote":    "backup.retention.delete_remote",
	"retention_sweep_interval":   "backup.retention.sweep_interval",

	"storage_url":     "storage.url",
	"ftp_user":        "storage.ftp_user",
	"ftp_password":    "storage.ftp_password",
	"storage_timeout": "storage.timeout",

	"restore_temp_dir": "restore.temp_dir",
	"restore_tables":   "restore.tables",
	"redis_addr":       "restore.lock.redis_addr",
	"redis_password":   "restore.lock.redis_password",
	"redis_db":         "restore.lock.redis_db",
	"restore_lock_ttl": "restore.lock.ttl",

	"gdpr_user_tables":     "gdpr.user_tables",
	"gdpr_hash_secret":     "gdpr.hash_secret",
	"gdpr_retention_days":  "gdpr.default_retention_days",
	"gdpr_purge_interval":  "gdpr.purge_interval",
	"auth_admin_url":       "identity.url",
	"auth_service_key":     "identity.service_key",
	"auth_request_timeout": "identity.timeout",

	"notify_webhook_url":    "notify.webhook_url",
	"notify_rate_limit":     "notify.rate_limit",
	"notify_burst":          "notify.burst",
	"nats_url":              "notify.nats_url",
	"nats_subject":          "notify.nats_subject",
	"notify_outbox_path":    "notify.outbox_path",
	"notify_drain_interval": "notify.drain_interval",

	"http_addr":             "server.addr",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_rate_limit":       "server.rate_limit",
	"http_rate_window":      "server.rate_limit_window",
	"metrics_textfile_path": "metrics.textfile_path",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable to its koanf path.
// Unknown variables map to "" and are ignored by the env provider.
//
// Examples:
//   - PG_HOST -> database.host
//   - RETENTION_FULL_DAYS -> backup.retention.full_days
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
