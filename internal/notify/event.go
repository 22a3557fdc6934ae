// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an event for routing on the receiving side.
type Kind string

const (
	KindBackupCompleted  Kind = "backup.completed"
	KindBackupFailed     Kind = "backup.failed"
	KindRestoreCompleted Kind = "restore.completed"
	KindRestoreFailed    Kind = "restore.failed"
	KindDeletionUser     Kind = "gdpr.deletion.user"
	KindDeletionAdmin    Kind = "gdpr.deletion.admin"
	KindPurgeCompleted   Kind = "gdpr.purge.completed"
)

// Event is one notification.
type Event struct {
	ID        string                 `json:"id"`
	Kind      Kind                   `json:"kind"`
	Title     string                 `json:"title"`
	Success   bool                   `json:"success"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	TenantIDs []string               `json:"tenant_ids,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func newEvent(kind Kind, title string, success bool) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Title:     title,
		Success:   success,
		Timestamp: time.Now().UTC(),
	}
}

// BackupBatchFailed is the single alert a batch run emits for all failed tenants.
func BackupBatchFailed(backupType string, failed []string, errs map[string]string) Event {
	e := newEvent(KindBackupFailed, fmt.Sprintf("%s backup failed for %d tenant(s)", backupType, len(failed)), false)
	e.TenantIDs = append([]string(nil), failed...)
	e.Error = "failed tenants: " + strings.Join(failed, ", ")
	e.Details = map[string]interface{}{"backup_type": backupType}
	if len(errs) > 0 {
		e.Details["errors"] = errs
	}
	return e
}

// BackupBatchCompleted summarizes a batch run without failures.
func BackupBatchCompleted(backupType string, tenants int) Event {
	e := newEvent(KindBackupCompleted, fmt.Sprintf("%s backup completed for %d tenant(s)", backupType, tenants), true)
	e.Details = map[string]interface{}{"backup_type": backupType, "tenants": tenants}
	return e
}

// RestoreFinished reports the terminal state of one restore.
func RestoreFinished(tenantID, backupID, mode string, success bool, errMsg string) Event {
	kind, title := KindRestoreCompleted, "Restore completed"
	if !success {
		kind, title = KindRestoreFailed, "Restore failed"
	}
	e := newEvent(kind, title, success)
	e.TenantID = tenantID
	e.Error = errMsg
	e.Details = map[string]interface{}{"backup_id": backupID, "mode": mode}
	return e
}

// DeletionFinished reports a GDPR deletion to the user or the tenant admin.
// The user ID is included; contact details are not.
func DeletionFinished(kind Kind, tenantID, userID, requestID, deletionType string, success bool, errMsg string) Event {
	title := "Your data deletion request was processed"
	if kind == KindDeletionAdmin {
		title = fmt.Sprintf("GDPR %s deletion processed", deletionType)
	}
	e := newEvent(kind, title, success)
	e.TenantID = tenantID
	e.Error = errMsg
	e.Details = map[string]interface{}{
		"user_id":       userID,
		"request_id":    requestID,
		"deletion_type": deletionType,
	}
	return e
}

// PurgeCompleted summarizes one run of the scheduled purge job.
func PurgeCompleted(purged, failed int) Event {
	e := newEvent(KindPurgeCompleted, fmt.Sprintf("Purged %d soft-deleted user(s)", purged), failed == 0)
	e.Details = map[string]interface{}{"purged": purged, "failed": failed}
	return e
}
