// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package models

import (
	"fmt"
	"time"
)

// BackupType selects the dump strategy and retention window.
type BackupType string

const (
	BackupFull        BackupType = "full"
	BackupIncremental BackupType = "incremental"
	BackupSnapshot    BackupType = "snapshot"
)

// BackupTypes lists every supported backup type.
var BackupTypes = []BackupType{BackupFull, BackupIncremental, BackupSnapshot}

// Valid reports whether t is a known backup type.
func (t BackupType) Valid() bool {
	switch t {
	case BackupFull, BackupIncremental, BackupSnapshot:
		return true
	}
	return false
}

// ParseBackupType converts a flag or API value to a BackupType.
func ParseBackupType(s string) (BackupType, error) {
	t := BackupType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown backup type %q (want full, incremental or snapshot)", s)
	}
	return t, nil
}

// BackupStatus is the artifact lifecycle state.
type BackupStatus string

const (
	BackupPending   BackupStatus = "pending"
	BackupCompleted BackupStatus = "completed"
	BackupFailed    BackupStatus = "failed"
)

// BackupArtifact is one produced backup.
//
// Checksum is the hex SHA-256 of the compressed bytes before encryption.
// RemoteLocation is the fully qualified scheme://bucket/key locator returned by
// the object store and is never rebuilt from configuration.
type BackupArtifact struct {
	ID             string       `gorm:"primaryKey;size:26" json:"id"`
	TenantID       string       `gorm:"size:63;not null;index:ix_backups_tenant_created,priority:1" json:"tenant_id"`
	Plan           string       `gorm:"size:32" json:"plan,omitempty"`
	Type           BackupType   `gorm:"size:16;not null;index:ix_backups_type_created,priority:1" json:"backup_type"`
	Status         BackupStatus `gorm:"size:16;not null" json:"status"`
	FileName       string       `gorm:"size:255" json:"file_name"`
	OriginalSize   int64        `json:"original_size_bytes"`
	CompressedSize int64        `json:"compressed_size_bytes"`
	Checksum       string       `gorm:"size:64" json:"checksum"`
	Encrypted      bool         `json:"encrypted"`
	LocalPath      string       `json:"local_path,omitempty"`
	RemoteLocation string       `json:"remote_location,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;index:ix_backups_tenant_created,priority:2;index:ix_backups_type_created,priority:2" json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// TableName implements gorm's tabler.
func (BackupArtifact) TableName() string { return "tenant_backups" }
