// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package models

import (
	"fmt"
	"time"
)

// DeletionType is the GDPR erasure strategy.
type DeletionType string

const (
	DeletionHard      DeletionType = "hard"
	DeletionSoft      DeletionType = "soft"
	DeletionAnonymize DeletionType = "anonymize"
)

// Valid reports whether t is a known deletion type.
func (t DeletionType) Valid() bool {
	switch t {
	case DeletionHard, DeletionSoft, DeletionAnonymize:
		return true
	}
	return false
}

// ParseDeletionType converts a flag or API value to a DeletionType.
func ParseDeletionType(s string) (DeletionType, error) {
	t := DeletionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown deletion type %q (want hard, soft or anonymize)", s)
	}
	return t, nil
}

// DeletionStatus is the ledger state.
//
//	processing -> completed -> purged   (soft, after the retention window)
//	processing -> completed             (hard, anonymize)
//	processing -> failed
type DeletionStatus string

const (
	DeletionProcessing DeletionStatus = "processing"
	DeletionCompleted  DeletionStatus = "completed"
	DeletionFailed     DeletionStatus = "failed"
	DeletionPurged     DeletionStatus = "purged"
)

// DeletionRequest is the GDPR/KVKK ledger entry. Rows are never deleted.
type DeletionRequest struct {
	ID                  string         `gorm:"primaryKey;size:36" json:"id"`
	UserID              string         `gorm:"size:64;not null;index" json:"user_id"`
	TenantID            string         `gorm:"size:63;not null;index" json:"tenant_id"`
	DeletionType        DeletionType   `gorm:"size:16;not null;index:ix_deletions_purge,priority:1" json:"deletion_type"`
	Status              DeletionStatus `gorm:"size:16;not null;index:ix_deletions_purge,priority:2" json:"status"`
	RetentionPeriodDays *int           `json:"retention_period_days,omitempty"`
	ScheduledPurgeDate  *time.Time     `gorm:"index:ix_deletions_purge,priority:3" json:"scheduled_purge_date,omitempty"`
	ExportLocation      string         `json:"export_location,omitempty"`
	ErrorMessage        string         `json:"error_message,omitempty"`
	RequestedAt         time.Time      `gorm:"not null" json:"requested_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	PurgedAt            *time.Time     `json:"purged_at,omitempty"`
}

// TableName implements gorm's tabler.
func (DeletionRequest) TableName() string { return "gdpr_deletion_requests" }
