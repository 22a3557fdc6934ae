// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package gdpr

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" database/sql driver

	"github.com/tomtom215/tenantvault/internal/export"
	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/models"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// memLedger is an in-memory Ledger.
type memLedger struct {
	mu        sync.Mutex
	rows      map[string]models.DeletionRequest
	createErr error
	updateErr error
	updates   int
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]models.DeletionRequest)}
}

func (l *memLedger) CreateDeletionRequest(_ context.Context, r *models.DeletionRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return l.createErr
	}
	l.rows[r.ID] = *r
	return nil
}

func (l *memLedger) UpdateDeletionRequest(_ context.Context, r *models.DeletionRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.updateErr != nil {
		return l.updateErr
	}
	if _, ok := l.rows[r.ID]; !ok {
		return faults.NotFound("deletion request", r.ID)
	}
	l.rows[r.ID] = *r
	l.updates++
	return nil
}

func (l *memLedger) ListPendingPurges(_ context.Context, now time.Time) ([]models.DeletionRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.DeletionRequest
	for _, r := range l.rows {
		if r.DeletionType == models.DeletionSoft && r.Status == models.DeletionCompleted &&
			r.ScheduledPurgeDate != nil && !r.ScheduledPurgeDate.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *memLedger) get(id string) models.DeletionRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[id]
}

// fakeIdentity records identity provider calls.
type fakeIdentity struct {
	mu      sync.Mutex
	calls   []string
	emails  map[string]string
	failFor map[string]bool
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{emails: make(map[string]string), failFor: make(map[string]bool)}
}

func (f *fakeIdentity) record(op, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+userID)
	if f.failFor[userID] {
		return errors.New("identity provider unavailable")
	}
	return nil
}

func (f *fakeIdentity) DeleteUser(_ context.Context, userID string) error {
	return f.record("delete", userID)
}

func (f *fakeIdentity) BanUser(_ context.Context, userID, duration string) error {
	return f.record("ban("+duration+")", userID)
}

func (f *fakeIdentity) UpdateEmail(_ context.Context, userID, email string) error {
	if err := f.record("email", userID); err != nil {
		return err
	}
	f.mu.Lock()
	f.emails[userID] = email
	f.mu.Unlock()
	return nil
}

// fakeExporter returns a fixed location or error.
type fakeExporter struct {
	err   error
	calls int
}

func (f *fakeExporter) UserExport(_ context.Context, tenantID, userID string) (*export.UserExport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &export.UserExport{Location: "mem://backups/exports/" + tenantID + "/" + userID + "/export.json"}, nil
}

type testEnv struct {
	engine   *Engine
	db       *sql.DB
	ledger   *memLedger
	identity *fakeIdentity
	exporter *fakeExporter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		"ATTACH DATABASE ':memory:' AS tenant_t1",
		`CREATE TABLE tenant_t1.users (
			id TEXT PRIMARY KEY, email TEXT, first_name TEXT, last_name TEXT, phone TEXT,
			birth_date TEXT, photo_url TEXT, is_active BOOLEAN, deleted_at TIMESTAMP,
			scheduled_purge_date TIMESTAMP, original_email_hash TEXT, anonymized_at TIMESTAMP)`,
		"CREATE TABLE tenant_t1.grades (id INTEGER, student_id TEXT, score INTEGER, deleted_at TIMESTAMP, scheduled_purge_date TIMESTAMP)",
		"CREATE TABLE tenant_t1.notifications (id INTEGER, user_id TEXT, body TEXT, deleted_at TIMESTAMP, scheduled_purge_date TIMESTAMP)",
		`INSERT INTO tenant_t1.users (id, email, first_name, last_name, phone, birth_date, photo_url, is_active) VALUES
			('u1', 'Ada@Example.com', 'Ada', 'Lovelace', '555-0100', '1815-12-10', 'https://img/ada.png', 1),
			('u2', 'bob@example.com', 'Bob', 'Builder', NULL, NULL, NULL, 1)`,
		"INSERT INTO tenant_t1.grades (id, student_id, score) VALUES (1, 'u1', 90), (2, 'u1', 75), (3, 'u2', 60)",
		"INSERT INTO tenant_t1.notifications (id, user_id, body) VALUES (1, 'u1', 'hi'), (2, 'u2', 'yo')",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	tables, err := export.ParseUserTables([]string{"grades:student_id", "notifications", "missing_table"})
	if err != nil {
		t.Fatal(err)
	}
	hasher, err := NewEmailHasher("pepper")
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		db:       db,
		ledger:   newMemLedger(),
		identity: newFakeIdentity(),
		exporter: &fakeExporter{},
	}
	env.engine = NewEngine(db, env.ledger, env.identity, env.exporter, hasher, Config{Tables: tables, DefaultRetentionDays: 30})
	env.engine.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	env.engine.now = func() time.Time { return testNow }
	return env
}

func (env *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := env.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}
