// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package metrics provides Prometheus instrumentation for Tenantvault.

All collectors register with the default registry through promauto. Serve mode
exposes them at /metrics; one-shot CLI runs can write them to a node-exporter
textfile collector directory with WriteTextfile.

Metric Families:

	tenantvault_backups_total{type,status}
	tenantvault_backup_duration_seconds{type}
	tenantvault_backup_bytes{type,stage}            stage is original or compressed
	tenantvault_restores_total{mode,result}
	tenantvault_restore_duration_seconds{mode}
	tenantvault_retention_deletions_total{type,target}
	tenantvault_gdpr_deletions_total{type,status}
	tenantvault_gdpr_purges_total{result}
	tenantvault_notifications_total{sink,result}
	tenantvault_object_store_errors_total{op}
	tenantvault_last_backup_timestamp_seconds{type}

Labels never carry tenant or user identifiers to keep cardinality bounded.
*/
package metrics
