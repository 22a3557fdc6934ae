// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package config provides centralized configuration management for Tenantvault.

Configuration is loaded exactly once, in main, and the resulting *Config is
passed into every component constructor. No other package reads the process
environment.

# Configuration Sources

Sources are layered with Koanf v2, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (--config flag, TENANTVAULT_CONFIG, or DefaultConfigPaths)
 3. Environment variables, mapped through envMappings

# Configuration Structure

  - DatabaseConfig: tenant database connection and pg_dump/psql binaries
  - MetadataConfig: store for tenant_backups, tenant_restores, gdpr_deletion_requests
  - BackupConfig: archive directory, encryption secret, parallelism, retention windows
  - StorageConfig: remote object store bucket URL (s3://, gs://, file://, mem://, ftp://)
  - RestoreConfig: temp directory and per-tenant lock (Redis or in-process)
  - GDPRConfig: user-owned table plan, email hash secret, purge cadence
  - IdentityConfig: authentication provider admin API
  - NotifyConfig: webhook, NATS subject, durable outbox
  - ServerConfig, MetricsConfig, LoggingConfig

# Environment Variables

Database:
  - PG_HOST, PG_PORT, PG_USER, PG_PASSWORD, PG_DATABASE, PG_SSLMODE
  - PG_DUMP_PATH, PSQL_PATH

Backup:
  - BACKUP_DIR, BACKUP_ENCRYPTION_KEY, BACKUP_MAX_PARALLEL
  - RETENTION_FULL_DAYS (30), RETENTION_INCREMENTAL_DAYS (7), RETENTION_SNAPSHOT_DAYS (90)
  - RETENTION_DELETE_REMOTE (false)

Storage:
  - STORAGE_URL, FTP_USER, FTP_PASSWORD

Notifications:
  - NOTIFY_WEBHOOK_URL, NATS_URL, NATS_SUBJECT, NOTIFY_OUTBOX_PATH

See envMappings in koanf.go for the full list.
*/
package config
