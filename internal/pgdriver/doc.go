// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package pgdriver runs dump, restore and guarded SQL against tenant schemas.

# Identifiers

Schema and table names never reach SQL as raw strings. They are wrapped in
Schema and Table values, which can only be built through ParseSchema,
TenantSchema, Schema.Table or a Registry. Construction rejects anything that
does not match ^[a-zA-Z0-9_]+$ and the values render themselves double-quoted.
Every statement builder in this package accepts only those types.

# Subprocesses

pg_dump and psql run through a Runner so tests can substitute a fake. The
database password is passed to the child via PGPASSWORD only. On failure the
captured stderr is attached to a *faults.DriverError.

# Dump Types

	full, snapshot  pg_dump --schema=<schema> --format=plain --no-owner --no-privileges
	incremental     COPY blocks for rows with updated_at inside the window (24h by
	                default), one per table that has an updated_at column; other
	                tables are skipped

# Sessions

Driver wraps a database/sql handle opened with the pgx stdlib driver. Pinned
returns a Driver bound to one connection so that a restore issues all of its
statements through a single serialized session.
*/
package pgdriver
