// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package testinfra provides container-backed infrastructure for integration tests.
//
// Tests in this package and its callers are built only with the integration
// tag and are skipped when Docker is unavailable:
//
//	go test -tags integration ./...
//
// # PostgreSQL Container
//
// PostgresContainer starts a throwaway PostgreSQL server with pg_dump and psql
// available inside the container, so dump and restore can be exercised end to end:
//
//	func TestRoundTrip(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//
//	    cfg := pg.DatabaseConfig()
//	    // ...
//	}
//
// # Webhook Capture
//
// WebhookServer records incoming notification requests for later assertions.
package testinfra
