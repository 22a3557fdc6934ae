// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package export serializes tenant table data.
//
// Export returns one document per table in CSV, JSON or xlsx. UserExport collects
// every row owned by one user, which the deletion engine archives to the
// object store before any destructive step:
//
//	exports/{tenantID}/{userID}/export_{timestamp}.json
package export
