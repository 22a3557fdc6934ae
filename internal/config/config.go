// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Metadata MetadataConfig `koanf:"metadata"`
	Backup   BackupConfig   `koanf:"backup"`
	Storage  StorageConfig  `koanf:"storage"`
	Restore  RestoreConfig  `koanf:"restore"`
	GDPR     GDPRConfig     `koanf:"gdpr"`
	Identity IdentityConfig `koanf:"identity"`
	Notify   NotifyConfig   `koanf:"notify"`
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig describes the Postgres instance that holds tenant schemas.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`

	// PgDumpPath and PsqlPath locate the client binaries.
	PgDumpPath string `koanf:"pg_dump_path"`
	PsqlPath   string `koanf:"psql_path"`

	MaxOpenConns   int           `koanf:"max_open_conns"`
	CommandTimeout time.Duration `koanf:"command_timeout"`
}

// DSN returns a postgres:// connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// MetadataConfig selects the relational store for pipeline metadata.
type MetadataConfig struct {
	// Driver is postgres or sqlite.
	Driver string `koanf:"driver"`
	// DSN defaults to Database.DSN() for the postgres driver.
	DSN string `koanf:"dsn"`
}

// BackupConfig controls artifact creation.
type BackupConfig struct {
	Dir string `koanf:"dir"`
	// EncryptionKey enables AES-256-CBC when non-empty.
	EncryptionKey    string          `koanf:"encryption_key"`
	CompressionLevel int             `koanf:"compression_level"`
	MaxParallel      int             `koanf:"max_parallel"`
	Retention        RetentionConfig `koanf:"retention"`
}

// RetentionConfig holds per-type retention windows in days.
type RetentionConfig struct {
	FullDays        int  `koanf:"full_days"`
	IncrementalDays int  `koanf:"incremental_days"`
	SnapshotDays    int  `koanf:"snapshot_days"`
	DeleteRemote    bool `koanf:"delete_remote"`
	// SweepInterval is used by serve mode only.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// StorageConfig describes the remote bucket. An empty URL keeps artifacts local.
type StorageConfig struct {
	URL         string        `koanf:"url"`
	FTPUser     string        `koanf:"ftp_user"`
	FTPPassword string        `koanf:"ftp_password"`
	Timeout     time.Duration `koanf:"timeout"`
}

// RestoreConfig controls restore working files and locking.
type RestoreConfig struct {
	TempDir string `koanf:"temp_dir"`
	// Tables limits partial restores to these names. Empty allows any
	// valid identifier.
	Tables []string   `koanf:"tables"`
	Lock   LockConfig `koanf:"lock"`
}

// LockConfig selects the per-tenant restore lock backend.
// An empty RedisAddr uses an in-process lock.
type LockConfig struct {
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	TTL           time.Duration `koanf:"ttl"`
}

// GDPRConfig controls the deletion engine.
type GDPRConfig struct {
	// UserTables lists user-owned tables as "table" or "table:column".
	UserTables           []string      `koanf:"user_tables"`
	HashSecret           string        `koanf:"hash_secret"`
	DefaultRetentionDays int           `koanf:"default_retention_days"`
	PurgeInterval        time.Duration `koanf:"purge_interval"`
}

// IdentityConfig points at the authentication provider's admin API.
type IdentityConfig struct {
	URL        string        `koanf:"url"`
	ServiceKey string        `koanf:"service_key"`
	Timeout    time.Duration `koanf:"timeout"`
}

// NotifyConfig configures notification sinks.
type NotifyConfig struct {
	WebhookURL    string        `koanf:"webhook_url"`
	RateLimit     float64       `koanf:"rate_limit"`
	Burst         int           `koanf:"burst"`
	NATSURL       string        `koanf:"nats_url"`
	NATSSubject   string        `koanf:"nats_subject"`
	OutboxPath    string        `koanf:"outbox_path"`
	DrainInterval time.Duration `koanf:"drain_interval"`
}

// ServerConfig is used by serve mode.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RateLimit is requests per RateLimitWindow per client IP on /api/v1.
	// Zero disables limiting.
	RateLimit       int           `koanf:"rate_limit"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// MetricsConfig controls metrics output for one-shot CLI runs.
type MetricsConfig struct {
	TextfilePath string `koanf:"textfile_path"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MetadataDSN resolves the metadata connection string.
func (c *Config) MetadataDSN() string {
	if c.Metadata.DSN != "" {
		return c.Metadata.DSN
	}
	return c.Database.DSN()
}

// Secrets returns every configured credential, for log redaction.
func (c *Config) Secrets() []string {
	var out []string
	for _, s := range []string{
		c.Database.Password,
		c.Backup.EncryptionKey,
		c.Storage.FTPPassword,
		c.Restore.Lock.RedisPassword,
		c.GDPR.HashSecret,
		c.Identity.ServiceKey,
	} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RetentionDays returns the retention window for a backup type name.
func (r RetentionConfig) RetentionDays(backupType string) (int, error) {
	switch backupType {
	case "full":
		return r.FullDays, nil
	case "incremental":
		return r.IncrementalDays, nil
	case "snapshot":
		return r.SnapshotDays, nil
	default:
		return 0, fmt.Errorf("unknown backup type %q", backupType)
	}
}
