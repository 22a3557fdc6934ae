// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"fmt"
	"time"

	"github.com/tomtom215/tenantvault/internal/models"
)

// FileTimestampLayout is the timestamp used in artifact file names.
const FileTimestampLayout = "2006-01-02-15-04-05"

// FileName returns tenant_{id}_{type}_{ts}.sql with .gz and .enc appended as applicable.
func FileName(tenantID string, backupType models.BackupType, createdAt time.Time, compressed, encrypted bool) string {
	name := fmt.Sprintf("tenant_%s_%s_%s.sql", tenantID, backupType, createdAt.UTC().Format(FileTimestampLayout))
	if compressed {
		name += ".gz"
	}
	if encrypted {
		name += ".enc"
	}
	return name
}
