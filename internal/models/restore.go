// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package models

import "time"

// RestoreMode distinguishes whole-schema from table-scoped restores.
type RestoreMode string

const (
	RestoreFull    RestoreMode = "full"
	RestorePartial RestoreMode = "partial"
)

// ValidationResult is the post-restore check of one table.
type ValidationResult struct {
	Table       string `json:"table"`
	RecordCount int64  `json:"record_count"`
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
}

// TableMigration records how far a partial restore got with one table.
type TableMigration struct {
	Table      string `json:"table"`
	BackupName string `json:"backup_name,omitempty"`
	RowsCopied int64  `json:"rows_copied"`
	Resumed    bool   `json:"resumed,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RestoreOperation is one restore attempt.
type RestoreOperation struct {
	ID                string             `gorm:"primaryKey;size:36" json:"id"`
	TenantID          string             `gorm:"size:63;not null;index" json:"tenant_id"`
	BackupID          string             `gorm:"size:26;not null;index" json:"backup_id"`
	Mode              RestoreMode        `gorm:"size:16;not null" json:"mode"`
	Tables            []string           `gorm:"serializer:json" json:"tables,omitempty"`
	ValidationResults []ValidationResult `gorm:"serializer:json" json:"validation_results"`
	Migrations        []TableMigration   `gorm:"serializer:json" json:"migrations,omitempty"`
	Success           bool               `json:"success"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	DurationSeconds   float64            `json:"duration_seconds"`
	StartedAt         time.Time          `gorm:"not null" json:"started_at"`
	FinishedAt        time.Time          `json:"finished_at"`
}

// TableName implements gorm's tabler.
func (RestoreOperation) TableName() string { return "tenant_restores" }

// AllValid reports whether every result is valid. An empty set is not valid.
func AllValid(results []ValidationResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Valid {
			return false
		}
	}
	return true
}
