// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Backup Metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_backups_total",
			Help: "Total number of tenant backups by type and final status",
		},
		[]string{"type", "status"},
	)

	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantvault_backup_duration_seconds",
			Help:    "Duration of one tenant backup from dump to metadata write",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"type"},
	)

	BackupBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantvault_backup_bytes",
			Help:    "Size of backup payloads before and after compression",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12), // 1KiB .. 4GiB
		},
		[]string{"type", "stage"},
	)

	LastBackupTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tenantvault_last_backup_timestamp_seconds",
			Help: "Unix time of the last completed backup by type",
		},
		[]string{"type"},
	)

	// Restore Metrics
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_restores_total",
			Help: "Total number of restore operations by mode and result",
		},
		[]string{"mode", "result"},
	)

	RestoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantvault_restore_duration_seconds",
			Help:    "Duration of restore operations",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"mode"},
	)

	// Retention Metrics
	RetentionDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_retention_deletions_total",
			Help: "Artifacts removed by the retention sweeper by type and target (local, remote, metadata)",
		},
		[]string{"type", "target"},
	)

	// GDPR Metrics
	GDPRDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_gdpr_deletions_total",
			Help: "GDPR deletion requests by type and final status",
		},
		[]string{"type", "status"},
	)

	GDPRPurges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_gdpr_purges_total",
			Help: "Scheduled purges of soft-deleted users by result",
		},
		[]string{"result"},
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_notifications_total",
			Help: "Notification deliveries by sink and result",
		},
		[]string{"sink", "result"},
	)

	// Object Store Metrics
	ObjectStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantvault_object_store_errors_total",
			Help: "Object store transfer failures by operation",
		},
		[]string{"op"},
	)
)

// RecordBackup records the outcome of one tenant backup.
func RecordBackup(backupType, status string, duration time.Duration, originalBytes, compressedBytes int64) {
	BackupsTotal.WithLabelValues(backupType, status).Inc()
	BackupDuration.WithLabelValues(backupType).Observe(duration.Seconds())
	if originalBytes > 0 {
		BackupBytes.WithLabelValues(backupType, "original").Observe(float64(originalBytes))
	}
	if compressedBytes > 0 {
		BackupBytes.WithLabelValues(backupType, "compressed").Observe(float64(compressedBytes))
	}
	if status == "completed" {
		LastBackupTimestamp.WithLabelValues(backupType).SetToCurrentTime()
	}
}

// RecordRestore records the outcome of one restore operation.
func RecordRestore(mode string, success bool, duration time.Duration) {
	RestoresTotal.WithLabelValues(mode, resultLabel(success)).Inc()
	RestoreDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordRetentionDeletion counts one removal by the sweeper.
func RecordRetentionDeletion(backupType, target string) {
	RetentionDeletions.WithLabelValues(backupType, target).Inc()
}

// RecordGDPRDeletion counts one deletion request reaching a terminal state.
func RecordGDPRDeletion(deletionType, status string) {
	GDPRDeletions.WithLabelValues(deletionType, status).Inc()
}

// RecordGDPRPurge counts one scheduled purge.
func RecordGDPRPurge(success bool) {
	GDPRPurges.WithLabelValues(resultLabel(success)).Inc()
}

// RecordNotification counts one delivery attempt.
func RecordNotification(sink string, err error) {
	NotificationsTotal.WithLabelValues(sink, resultLabel(err == nil)).Inc()
}

// RecordObjectStoreError counts one failed transfer.
func RecordObjectStoreError(op string) {
	ObjectStoreErrors.WithLabelValues(op).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile writes the default registry in text format to path for the
// node-exporter textfile collector. The write is atomic.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
