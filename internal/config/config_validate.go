// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateGDPR(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("PG_HOST is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("PG_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}
	if c.Database.PgDumpPath == "" || c.Database.PsqlPath == "" {
		return fmt.Errorf("PG_DUMP_PATH and PSQL_PATH must not be empty")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	switch c.Metadata.Driver {
	case "postgres":
		return nil
	case "sqlite":
		if c.Metadata.DSN == "" {
			return fmt.Errorf("METADATA_DSN is required when METADATA_DRIVER=sqlite")
		}
		return nil
	default:
		return fmt.Errorf("METADATA_DRIVER must be postgres or sqlite, got %q", c.Metadata.Driver)
	}
}

func (c *Config) validateBackup() error {
	if c.Backup.Dir == "" {
		return fmt.Errorf("BACKUP_DIR is required")
	}
	if c.Backup.MaxParallel < 1 {
		return fmt.Errorf("BACKUP_MAX_PARALLEL must be at least 1, got %d", c.Backup.MaxParallel)
	}
	if c.Backup.CompressionLevel < -2 || c.Backup.CompressionLevel > 9 {
		return fmt.Errorf("BACKUP_COMPRESSION_LEVEL must be between -2 and 9, got %d", c.Backup.CompressionLevel)
	}
	r := c.Backup.Retention
	for name, days := range map[string]int{
		"RETENTION_FULL_DAYS":        r.FullDays,
		"RETENTION_INCREMENTAL_DAYS": r.IncrementalDays,
		"RETENTION_SNAPSHOT_DAYS":    r.SnapshotDays,
	} {
		if days < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, days)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.URL == "" {
		return nil
	}
	u, err := url.Parse(c.Storage.URL)
	if err != nil {
		return fmt.Errorf("STORAGE_URL is invalid: %w", err)
	}
	switch u.Scheme {
	case "s3", "gs", "file", "mem", "ftp":
		return nil
	default:
		return fmt.Errorf("STORAGE_URL scheme %q is not supported", u.Scheme)
	}
}

func (c *Config) validateGDPR() error {
	if len(c.GDPR.UserTables) == 0 {
		return fmt.Errorf("GDPR_USER_TABLES must list at least one table")
	}
	if c.GDPR.DefaultRetentionDays < 1 {
		return fmt.Errorf("GDPR_RETENTION_DAYS must be at least 1, got %d", c.GDPR.DefaultRetentionDays)
	}
	if c.Identity.URL != "" && c.Identity.ServiceKey == "" {
		return fmt.Errorf("AUTH_SERVICE_KEY is required when AUTH_ADMIN_URL is set")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.WebhookURL != "" {
		u, err := url.Parse(c.Notify.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("NOTIFY_WEBHOOK_URL must be an http(s) URL")
		}
	}
	if c.Notify.RateLimit < 0 {
		return fmt.Errorf("NOTIFY_RATE_LIMIT must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is invalid", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
