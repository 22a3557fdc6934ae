// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package pgdriver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" database/sql driver

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/faults"
)

// fakeRunner records commands and returns canned output.
type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	output   func(Command) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, c Command) ([]byte, error) {
	f.mu.Lock()
	f.commands = append(f.commands, c)
	f.mu.Unlock()
	if f.output == nil {
		return nil, nil
	}
	return f.output(c)
}

func testDBConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:       "db.internal",
		Port:       5432,
		User:       "backup",
		Password:   "hunter2",
		Name:       "school",
		PgDumpPath: "/usr/bin/pg_dump",
		PsqlPath:   "/usr/bin/psql",
	}
}

// newSQLiteDriver opens an in-memory SQLite database with each schema attached
// as its own database, plus a stand-in information_schema.
func newSQLiteDriver(t *testing.T, runner Runner, schemas ...string) (*Driver, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		"ATTACH DATABASE ':memory:' AS information_schema",
		"CREATE TABLE information_schema.tables (table_schema TEXT, table_name TEXT, table_type TEXT)",
		"CREATE TABLE information_schema.columns (table_schema TEXT, table_name TEXT, column_name TEXT, ordinal_position INTEGER, column_default TEXT, is_identity TEXT DEFAULT 'NO')",
		"CREATE TABLE information_schema.schemata (schema_name TEXT)",
		"CREATE TABLE information_schema.sequences (sequence_schema TEXT, sequence_name TEXT)",
	}
	for _, s := range schemas {
		stmts = append(stmts,
			fmt.Sprintf("ATTACH DATABASE ':memory:' AS %s", s),
			fmt.Sprintf("INSERT INTO information_schema.schemata VALUES ('%s')", s),
		)
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	d := New(db, runner, testDBConfig())
	d.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	return d, db
}

// createTable creates a table and registers it in the stand-in catalog.
func createTable(t *testing.T, db *sql.DB, schema, table string, cols ...string) {
	t.Helper()

	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c + " TEXT"
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE "%s"."%s" (%s)`, schema, table, strings.Join(defs, ", "))); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO information_schema.tables VALUES (?, ?, 'BASE TABLE')", schema, table); err != nil {
		t.Fatal(err)
	}
	for i, c := range cols {
		if _, err := db.Exec("INSERT INTO information_schema.columns (table_schema, table_name, column_name, ordinal_position) VALUES (?, ?, ?, ?)", schema, table, c, i+1); err != nil {
			t.Fatal(err)
		}
	}
}

// execRecorder runs queries on the wrapped querier but only records
// statements sent through ExecContext.
type execRecorder struct {
	querier
	mu    sync.Mutex
	stmts []string
	args  [][]any
}

func (r *execRecorder) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, query)
	r.args = append(r.args, args)
	return driver.RowsAffected(1), nil
}

func TestDump_Full(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: func(Command) ([]byte, error) { return []byte("CREATE SCHEMA tenant_t1;\n"), nil }}
	d := New(nil, runner, testDBConfig())
	schema, _ := TenantSchema("t1")

	out, err := d.Dump(context.Background(), schema, DumpOptions{})
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if string(out) != "CREATE SCHEMA tenant_t1;\n" {
		t.Errorf("output = %q", out)
	}

	if len(runner.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(runner.commands))
	}
	cmd := runner.commands[0]
	if cmd.Path != "/usr/bin/pg_dump" {
		t.Errorf("Path = %s", cmd.Path)
	}
	args := strings.Join(cmd.Args, " ")
	for _, want := range []string{"--schema=tenant_t1", "--format=plain", "--no-owner", "--host db.internal", "--dbname school"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if strings.Contains(args, "hunter2") {
		t.Error("password leaked into argv")
	}
	if !containsColumn(cmd.Env, "PGPASSWORD=hunter2") {
		t.Errorf("Env = %v, want PGPASSWORD", cmd.Env)
	}
}

func TestDump_DriverError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: func(c Command) ([]byte, error) {
		return nil, faults.Driver("pg_dump", "pg_dump: error: schema not found", errors.New("exit status 1"))
	}}
	d := New(nil, runner, testDBConfig())
	schema, _ := TenantSchema("missing")

	_, err := d.Dump(context.Background(), schema, DumpOptions{})
	var de *faults.DriverError
	if !errors.As(err, &de) || !strings.Contains(de.Stderr, "schema not found") {
		t.Errorf("Dump() error = %v, want DriverError with stderr", err)
	}
}

func TestDump_Incremental(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: func(c Command) ([]byte, error) {
		return []byte("1\t90\t2026-10-14 08:00:00+00\n"), nil
	}}
	d, db := newSQLiteDriver(t, runner, "tenant_t1")
	d.now = func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }

	createTable(t, db, "tenant_t1", "grades", "id", "score", "updated_at")
	createTable(t, db, "tenant_t1", "settings", "key", "value")

	schema, _ := TenantSchema("t1")
	out, err := d.Dump(context.Background(), schema, DumpOptions{Incremental: true})
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	script := string(out)
	if !strings.Contains(script, `COPY "tenant_t1"."grades" ("id", "score", "updated_at") FROM stdin;`) {
		t.Errorf("script missing grades COPY block:\n%s", script)
	}
	if !strings.Contains(script, "1\t90\t2026-10-14 08:00:00+00\n\\.\n") {
		t.Errorf("script missing rows or terminator:\n%s", script)
	}
	if strings.Contains(script, "settings") {
		t.Error("table without updated_at should be skipped")
	}

	if len(runner.commands) != 1 {
		t.Fatalf("psql invocations = %d, want 1", len(runner.commands))
	}
	query := runner.commands[0].Args[len(runner.commands[0].Args)-1]
	if !strings.Contains(query, `WHERE "updated_at" >= '2026-10-13T12:00:00Z'::timestamptz`) {
		t.Errorf("query = %s", query)
	}
}

func TestRestoreFromFile(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	d := New(nil, runner, testDBConfig())
	if err := d.RestoreFromFile(context.Background(), "/tmp/restore-1/dump.sql"); err != nil {
		t.Fatal(err)
	}

	args := strings.Join(runner.commands[0].Args, " ")
	for _, want := range []string{"--file /tmp/restore-1/dump.sql", "ON_ERROR_STOP=1", "--single-transaction"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestCountRows_RenameAndCopy(t *testing.T) {
	t.Parallel()

	d, db := newSQLiteDriver(t, nil, "tenant_t1", "tenant_t1_restore_1")
	createTable(t, db, "tenant_t1", "grades", "id", "score")
	createTable(t, db, "tenant_t1_restore_1", "grades", "id", "score")
	for i := 0; i < 3; i++ {
		if _, err := db.Exec(`INSERT INTO "tenant_t1_restore_1"."grades" VALUES (?, ?)`, i, 80+i); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	live, _ := TenantSchema("t1")
	staging, _ := live.Derived("restore_1")
	liveGrades, _ := live.Table("grades")
	stagedGrades := liveGrades.In(staging)

	n, err := d.CountRows(ctx, stagedGrades)
	if err != nil || n != 3 {
		t.Fatalf("CountRows() = %d, %v; want 3", n, err)
	}

	backupName, err := d.RenameTable(ctx, liveGrades, "grades_backup_20261014120000")
	if err != nil {
		t.Fatalf("RenameTable() error = %v", err)
	}
	if backupName.Name() != "grades_backup_20261014120000" {
		t.Errorf("renamed = %s", backupName)
	}

	if _, err := db.Exec(`CREATE TABLE "tenant_t1"."grades" (id TEXT, score TEXT)`); err != nil {
		t.Fatal(err)
	}
	copied, err := d.CopyRows(ctx, stagedGrades, liveGrades)
	if err != nil || copied != 3 {
		t.Fatalf("CopyRows() = %d, %v; want 3", copied, err)
	}

	_, err = d.CountRows(ctx, backupName.In(staging))
	if !errors.Is(err, faults.ErrDriver) {
		t.Errorf("CountRows(missing) error = %v, want DriverError", err)
	}
}

func TestCatalogQueries(t *testing.T) {
	t.Parallel()

	d, db := newSQLiteDriver(t, nil, "tenant_t1")
	createTable(t, db, "tenant_t1", "users", "id", "email")
	createTable(t, db, "tenant_t1", "attendance_records", "id", "student_id")

	ctx := context.Background()
	schema, _ := TenantSchema("t1")

	tables, err := d.Tables(ctx, schema)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 || tables[0].Name() != "attendance_records" || tables[1].Name() != "users" {
		t.Errorf("Tables() = %v", tables)
	}

	users, _ := schema.Table("users")
	if ok, err := d.TableExists(ctx, users); err != nil || !ok {
		t.Errorf("TableExists(users) = %v, %v", ok, err)
	}
	missing, _ := schema.Table("payments")
	if ok, _ := d.TableExists(ctx, missing); ok {
		t.Error("TableExists(payments) = true")
	}
	if ok, _ := d.SchemaExists(ctx, schema); !ok {
		t.Error("SchemaExists(tenant_t1) = false")
	}
}

func TestSQLBuilders(t *testing.T) {
	t.Parallel()

	live, _ := TenantSchema("t1")
	staging, _ := live.Derived("restore_9")
	src, _ := staging.Table("grades")
	dst := src.In(live)

	if got := cloneTableSQL(src, dst); got != `CREATE TABLE IF NOT EXISTS "tenant_t1"."grades" (LIKE "tenant_t1_restore_9"."grades" INCLUDING ALL)` {
		t.Errorf("cloneTableSQL = %s", got)
	}
	renamed, _ := dst.Renamed("grades_backup_1")
	if got := renameTableSQL(dst, renamed); got != `ALTER TABLE "tenant_t1"."grades" RENAME TO "grades_backup_1"` {
		t.Errorf("renameTableSQL = %s", got)
	}
}

func TestRetargetScript(t *testing.T) {
	t.Parallel()

	from, _ := TenantSchema("t1")
	to, _ := from.Derived("restore_5")
	other, _ := TenantSchema("t10")

	script := []byte("CREATE SCHEMA tenant_t1;\nCREATE TABLE tenant_t1.users (id int);\nALTER TABLE ONLY \"tenant_t1\".\"users\" ADD PRIMARY KEY (id);\nCREATE TABLE " + other.Name() + ".x ();\n")
	got := string(RetargetScript(script, from, to))

	if strings.Contains(got, "tenant_t1.") || strings.Contains(got, "\"tenant_t1\"") {
		t.Errorf("source schema remains:\n%s", got)
	}
	if !strings.Contains(got, "CREATE SCHEMA tenant_t1_restore_5;") || !strings.Contains(got, "\"tenant_t1_restore_5\".\"users\"") {
		t.Errorf("retargeted script:\n%s", got)
	}
	if !strings.Contains(got, "tenant_t10.x") {
		t.Error("other tenant's schema name must not be rewritten")
	}
}

func TestRetargetScript_LeavesCopyDataAlone(t *testing.T) {
	t.Parallel()

	from, _ := TenantSchema("t1")
	to, _ := from.Derived("restore_5")

	script := []byte("COPY tenant_t1.notes (id, body) FROM stdin;\n" +
		"1\tmigrated from tenant_t1 legacy\n" +
		"2\tsee tenant_t1.users\n" +
		"\\.\n" +
		"ALTER TABLE ONLY tenant_t1.notes ADD PRIMARY KEY (id);\n" +
		"COPY tenant_t1.audit (id) FROM stdin;\r\n" +
		"tenant_t1\r\n" +
		"\\.\r\n" +
		"SELECT pg_catalog.setval('tenant_t1.notes_id_seq', 2, true);\n")
	got := string(RetargetScript(script, from, to))

	for _, want := range []string{
		"COPY tenant_t1_restore_5.notes (id, body) FROM stdin;\n",
		"1\tmigrated from tenant_t1 legacy\n",
		"2\tsee tenant_t1.users\n",
		"ALTER TABLE ONLY tenant_t1_restore_5.notes ADD PRIMARY KEY (id);\n",
		"COPY tenant_t1_restore_5.audit (id) FROM stdin;\r\ntenant_t1\r\n\\.\r\n",
		"setval('tenant_t1_restore_5.notes_id_seq', 2, true)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("retargeted script lacks %q:\n%s", want, got)
		}
	}
}

func TestDropSchema_TerminatesBySchemaLocks(t *testing.T) {
	t.Parallel()

	d := New(nil, nil, testDBConfig())
	rec := &execRecorder{}
	d.q = rec

	schema, _ := TenantSchema("t1")
	if err := d.DropSchema(context.Background(), schema); err != nil {
		t.Fatalf("DropSchema() error = %v", err)
	}

	if len(rec.stmts) != 2 {
		t.Fatalf("statements = %q", rec.stmts)
	}
	terminate := rec.stmts[0]
	if terminate != terminateSessionsSQL || len(rec.args[0]) != 1 || rec.args[0][0] != "tenant_t1" {
		t.Errorf("terminate = %s %v", terminate, rec.args[0])
	}
	for _, frag := range []string{"pg_locks", "n.nspname = $1", "pg_backend_pid()"} {
		if !strings.Contains(terminate, frag) {
			t.Errorf("terminate query lacks %q", frag)
		}
	}
	// Matching on query text would catch tenant_t10 and tenant_t1_x sessions.
	for _, frag := range []string{"pg_stat_activity", "position(", "LIKE"} {
		if strings.Contains(terminate, frag) {
			t.Errorf("terminate query matches on %q", frag)
		}
	}
	if rec.stmts[1] != `DROP SCHEMA IF EXISTS "tenant_t1" CASCADE` {
		t.Errorf("drop = %s", rec.stmts[1])
	}

	if err := d.DropSchema(context.Background(), Schema{}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("DropSchema(zero) error = %v", err)
	}
}

func TestReattachSequences(t *testing.T) {
	t.Parallel()

	d, db := newSQLiteDriver(t, nil, "tenant_t1", "tenant_t1_restore_9")
	createTable(t, db, "tenant_t1_restore_9", "grades", "id", "score", "ref", "seq_no")
	for _, stmt := range []string{
		`UPDATE information_schema.columns SET column_default = 'nextval(''"tenant_t1_restore_9".grades_id_seq''::regclass)' WHERE table_schema = 'tenant_t1_restore_9' AND column_name = 'id'`,
		`UPDATE information_schema.columns SET column_default = 'nextval(''public.shared_seq''::regclass)' WHERE table_schema = 'tenant_t1_restore_9' AND column_name = 'ref'`,
		`UPDATE information_schema.columns SET is_identity = 'YES' WHERE table_schema = 'tenant_t1_restore_9' AND column_name = 'seq_no'`,
		`UPDATE information_schema.columns SET column_default = '0' WHERE table_schema = 'tenant_t1_restore_9' AND column_name = 'score'`,
		// The renamed live table still owns tenant_t1.grades_id_seq.
		`INSERT INTO information_schema.sequences VALUES ('tenant_t1', 'grades_id_seq')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	rec := &execRecorder{querier: db}
	d.q = rec

	live, _ := TenantSchema("t1")
	staging, _ := live.Derived("restore_9")
	liveGrades, _ := live.Table("grades")

	cols, err := d.ReattachSequences(context.Background(), liveGrades.In(staging), liveGrades)
	if err != nil {
		t.Fatalf("ReattachSequences() error = %v", err)
	}
	if strings.Join(cols, ",") != "id,seq_no" {
		t.Errorf("changed columns = %v", cols)
	}

	want := []string{
		`CREATE SEQUENCE "tenant_t1"."grades_id_seq_1"`,
		`ALTER SEQUENCE "tenant_t1"."grades_id_seq_1" OWNED BY "tenant_t1"."grades"."id"`,
		`ALTER TABLE "tenant_t1"."grades" ALTER COLUMN "id" SET DEFAULT nextval('"tenant_t1"."grades_id_seq_1"'::regclass)`,
		`SELECT setval('"tenant_t1"."grades_id_seq_1"'::regclass, COALESCE((SELECT max("id") FROM "tenant_t1"."grades"), 0) + 1, false)`,
		`SELECT setval(pg_get_serial_sequence('"tenant_t1"."grades"', 'seq_no'), COALESCE((SELECT max("seq_no") FROM "tenant_t1"."grades"), 0) + 1, false)`,
	}
	if strings.Join(rec.stmts, "\n") != strings.Join(want, "\n") {
		t.Errorf("statements:\n%s\nwant:\n%s", strings.Join(rec.stmts, "\n"), strings.Join(want, "\n"))
	}
}

func TestSplitSequenceRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		def        string
		wantSchema string
		wantName   string
	}{
		{`nextval('"tenant_t1_restore_9".grades_id_seq'::regclass)`, "tenant_t1_restore_9", "grades_id_seq"},
		{`nextval('tenant_t1.grades_id_seq'::regclass)`, "tenant_t1", "grades_id_seq"},
		{`nextval('grades_id_seq'::regclass)`, "", "grades_id_seq"},
		{`now()`, "", ""},
	}
	for _, tt := range tests {
		schema, name := splitSequenceRef(tt.def)
		if schema != tt.wantSchema || name != tt.wantName {
			t.Errorf("splitSequenceRef(%s) = %q, %q; want %q, %q", tt.def, schema, name, tt.wantSchema, tt.wantName)
		}
	}
}
