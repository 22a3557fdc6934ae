// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package main is the tenantvault command.
//
// tenantvault backs up, restores and erases data held in per-tenant Postgres
// schemas. Every subcommand is a one-shot run except serve, which keeps the
// retention sweep, the GDPR purge job and the outbox drain running under a
// supervisor tree next to a small HTTP API.
//
// # Configuration
//
// Settings are layered with Koanf v2 (highest priority wins):
//   - Environment variables (PG_HOST, BACKUP_ENCRYPTION_KEY, STORAGE_URL, ...)
//   - Config file (--config, TENANTVAULT_CONFIG, or ./tenantvault.yaml)
//   - Built-in defaults
//
// # Examples
//
// Nightly full backup of premium tenants with a retention sweep:
//
//	tenantvault backup --type=full --plan=premium --cleanup
//
// Dry run for one tenant:
//
//	tenantvault backup --type=snapshot --tenant=t42 --dryRun
//
// Restore two tables from an artifact:
//
//	tenantvault restore --tenant=t42 --backup=01JB... --tables=grades,attendance
//
// Soft-delete a user with a 7-day grace period and an export first:
//
//	tenantvault gdpr delete --tenant=t42 --user=u1 --type=soft --retention-days=7 --export
//
// # Exit codes
//
// 0 on success, 1 when any tenant or request failed, 2 on usage or
// configuration errors.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
