// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package restore reverses the backup chain for one tenant.
//
// A full restore downloads an artifact, verifies its checksum, decodes it and
// loads the script into the tenant schema. A partial restore loads the same
// script into a staging schema, validates the requested tables there and only
// then swaps them into the live schema one table at a time:
//
//	live "grades"  --rename-->  "grades_backup_20261014120000"
//	staging "grades" --LIKE INCLUDING ALL + copy--> live "grades"
//
// Partial restores are not transactional across tables. Each table step is
// checkpointed to the restore ledger, so a later attempt for the same backup
// resumes a half-migrated table instead of failing on it.
//
// Restores of one tenant are serialized by a Locker: RedisLocker when a Redis
// address is configured, LocalLocker otherwise.
package restore
