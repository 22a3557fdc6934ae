// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
driver.go - Dump/Restore Driver

Dump produces plain SQL for one tenant schema. RestoreFromFile feeds a script
to psql with ON_ERROR_STOP so that the first failing statement aborts the load.
DropSchema terminates sessions that are working in the schema before dropping
it with CASCADE.
*/

//nolint:staticcheck // File documentation, not package doc
package pgdriver

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/logging"
)

// DefaultIncrementalWindow is how far back an incremental dump looks.
const DefaultIncrementalWindow = 24 * time.Hour

// IncrementalColumn marks tables eligible for incremental dumps.
const IncrementalColumn = "updated_at"

// querier is satisfied by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DumpOptions selects the dump strategy.
type DumpOptions struct {
	// Incremental limits the dump to rows updated within Window.
	Incremental bool
	// Window defaults to DefaultIncrementalWindow.
	Window time.Duration
}

// Driver executes dumps, restores and SQL against the tenant database.
type Driver struct {
	db     *sql.DB
	q      querier
	runner Runner
	cfg    config.DatabaseConfig
	sb     sq.StatementBuilderType
	now    func() time.Time
}

// Open connects to the tenant database with the pgx stdlib driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup
		return nil, faults.Driver("connect", "", err)
	}
	return db, nil
}

// New creates a Driver. runner may be nil to use ExecRunner.
func New(db *sql.DB, runner Runner, cfg config.DatabaseConfig) *Driver {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Driver{
		db:     db,
		q:      db,
		runner: runner,
		cfg:    cfg,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:    time.Now,
	}
}

// Pinned returns a Driver whose SQL runs on a single dedicated connection.
// The returned release function must be called when done.
func (d *Driver) Pinned(ctx context.Context) (*Driver, func() error, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, nil, faults.Driver("acquire connection", "", err)
	}
	pinned := *d
	pinned.q = conn
	return &pinned, conn.Close, nil
}

// connArgs are the connection flags shared by pg_dump and psql.
func (d *Driver) connArgs() []string {
	return []string{
		"--host", d.cfg.Host,
		"--port", strconv.Itoa(d.cfg.Port),
		"--username", d.cfg.User,
		"--dbname", d.cfg.Name,
		"--no-password",
	}
}

func (d *Driver) env() []string {
	env := []string{"PGPASSWORD=" + d.cfg.Password}
	if d.cfg.SSLMode != "" {
		env = append(env, "PGSSLMODE="+d.cfg.SSLMode)
	}
	return env
}

func (d *Driver) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.CommandTimeout > 0 {
		return context.WithTimeout(ctx, d.cfg.CommandTimeout)
	}
	return context.WithCancel(ctx)
}

// Dump exports schema as plain SQL.
func (d *Driver) Dump(ctx context.Context, schema Schema, opts DumpOptions) ([]byte, error) {
	if schema.IsZero() {
		return nil, fmt.Errorf("%w: empty schema", ErrInvalidIdentifier)
	}
	if opts.Incremental {
		return d.dumpIncremental(ctx, schema, opts)
	}

	ctx, cancel := d.commandContext(ctx)
	defer cancel()

	args := append(d.connArgs(),
		"--schema="+schema.Name(),
		"--format=plain",
		"--no-owner",
		"--no-privileges",
	)
	out, err := d.runner.Run(ctx, Command{Path: d.cfg.PgDumpPath, Args: args, Env: d.env()})
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug().Str("schema", schema.Name()).Int("bytes", len(out)).Msg("pg_dump finished")
	return out, nil
}

func (d *Driver) dumpIncremental(ctx context.Context, schema Schema, opts DumpOptions) ([]byte, error) {
	window := opts.Window
	if window <= 0 {
		window = DefaultIncrementalWindow
	}
	since := d.now().UTC().Add(-window)

	tables, err := d.Tables(ctx, schema)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "-- Incremental dump of schema %s\n-- Rows with %s >= %s\n\n", schema.Name(), IncrementalColumn, since.Format(time.RFC3339))
	buf.WriteString("SET client_encoding = 'UTF8';\nSET standard_conforming_strings = on;\n\n")

	included := 0
	for _, table := range tables {
		cols, err := d.Columns(ctx, table)
		if err != nil {
			return nil, err
		}
		if !containsColumn(cols, IncrementalColumn) {
			logging.Ctx(ctx).Debug().Str("table", table.String()).Msg("Skipping table without updated_at")
			continue
		}

		rows, err := d.copyOut(ctx, table, cols, since)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&buf, "COPY %s (%s) FROM stdin;\n", table.Quoted(), quoteColumns(cols))
		buf.Write(rows)
		buf.WriteString("\\.\n\n")
		included++
	}

	logging.Ctx(ctx).Debug().
		Str("schema", schema.Name()).
		Int("tables", included).
		Int("skipped", len(tables)-included).
		Msg("Incremental dump finished")
	return buf.Bytes(), nil
}

// copyOut streams rows changed since the cutoff through psql's COPY TO STDOUT.
func (d *Driver) copyOut(ctx context.Context, table Table, cols []string, since time.Time) ([]byte, error) {
	ctx, cancel := d.commandContext(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"COPY (SELECT %s FROM %s WHERE \"%s\" >= '%s'::timestamptz) TO STDOUT",
		quoteColumns(cols), table.Quoted(), IncrementalColumn, since.Format(time.RFC3339Nano),
	)
	args := append(d.connArgs(), "--no-psqlrc", "--quiet", "--set", "ON_ERROR_STOP=1", "--command", query)
	return d.runner.Run(ctx, Command{Path: d.cfg.PsqlPath, Args: args, Env: d.env()})
}

// RestoreFromFile executes a SQL script with psql.
func (d *Driver) RestoreFromFile(ctx context.Context, path string) error {
	ctx, cancel := d.commandContext(ctx)
	defer cancel()

	args := append(d.connArgs(),
		"--no-psqlrc",
		"--quiet",
		"--set", "ON_ERROR_STOP=1",
		"--single-transaction",
		"--file", path,
	)
	_, err := d.runner.Run(ctx, Command{Path: d.cfg.PsqlPath, Args: args, Env: d.env()})
	return err
}

// Execute runs one statement. query must be built from Schema and Table values.
func (d *Driver) Execute(ctx context.Context, query string, args ...any) error {
	_, err := d.exec(ctx, "execute", query, args...)
	return err
}

func (d *Driver) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := d.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, faults.Driver(op, "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // Some statements do not report affected rows
	}
	return n, nil
}

// terminateSessionsSQL ends every other session holding a lock on the schema
// itself or on a relation inside it. Sessions are matched by namespace name,
// never by query text.
const terminateSessionsSQL = `SELECT pg_terminate_backend(s.pid) FROM (
  SELECT l.pid FROM pg_locks l
  JOIN pg_class c ON c.oid = l.relation
  JOIN pg_namespace n ON n.oid = c.relnamespace
  WHERE n.nspname = $1 AND l.database = (SELECT oid FROM pg_database WHERE datname = current_database())
  UNION
  SELECT l.pid FROM pg_locks l
  JOIN pg_namespace n ON l.classid = 'pg_namespace'::regclass AND l.objid = n.oid
  WHERE n.nspname = $1 AND l.database = (SELECT oid FROM pg_database WHERE datname = current_database())
) s
WHERE s.pid <> pg_backend_pid()`

// DropSchema terminates sessions using schema and drops it with CASCADE.
func (d *Driver) DropSchema(ctx context.Context, schema Schema) error {
	if schema.IsZero() {
		return fmt.Errorf("%w: empty schema", ErrInvalidIdentifier)
	}

	terminated, err := d.exec(ctx, "terminate connections", terminateSessionsSQL, schema.Name())
	if err != nil {
		return err
	}

	if _, err := d.exec(ctx, "drop schema", "DROP SCHEMA IF EXISTS "+schema.Quoted()+" CASCADE"); err != nil {
		return err
	}

	logging.Ctx(ctx).Warn().Str("schema", schema.Name()).Int64("terminated", terminated).Msg("Schema dropped")
	return nil
}

// CountRows returns the number of rows in table.
func (d *Driver) CountRows(ctx context.Context, table Table) (int64, error) {
	var n int64
	if err := d.q.QueryRowContext(ctx, "SELECT count(*) FROM "+table.Quoted()).Scan(&n); err != nil {
		return 0, faults.Driver("count rows", "", fmt.Errorf("%s: %w", table, err))
	}
	return n, nil
}

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

func quoteColumns(cols []string) string {
	var buf bytes.Buffer
	for i, c := range cols {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(`"` + c + `"`)
	}
	return buf.String()
}
