// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package pgdriver

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/tomtom215/tenantvault/internal/faults"
)

// CreateSchema creates schema if it does not exist.
func (d *Driver) CreateSchema(ctx context.Context, schema Schema) error {
	_, err := d.exec(ctx, "create schema", "CREATE SCHEMA IF NOT EXISTS "+schema.Quoted())
	return err
}

// RenameTable renames table to newName within its schema.
func (d *Driver) RenameTable(ctx context.Context, table Table, newName string) (Table, error) {
	renamed, err := table.Renamed(newName)
	if err != nil {
		return Table{}, err
	}
	if _, err := d.exec(ctx, "rename table", renameTableSQL(table, renamed)); err != nil {
		return Table{}, err
	}
	return renamed, nil
}

// CloneTable creates dst with the structure of src, including defaults,
// constraints and indexes. An existing dst is left as is.
func (d *Driver) CloneTable(ctx context.Context, src, dst Table) error {
	_, err := d.exec(ctx, "clone table", cloneTableSQL(src, dst))
	return err
}

// CopyRows copies every row of src into dst and returns the number copied.
func (d *Driver) CopyRows(ctx context.Context, src, dst Table) (int64, error) {
	return d.exec(ctx, "copy rows", copyRowsSQL(src, dst))
}

var nextvalDefault = regexp.MustCompile(`^nextval\('([^']+)'::regclass\)$`)

// ReattachSequences gives live its own sequences for the columns of staged
// that draw from a sequence in the staging schema. Each new sequence lives in
// the live schema, is owned by its column and continues after the copied
// rows. Identity columns keep their sequence and are only advanced. It must
// run after CopyRows and before the staging schema is dropped, since dropping
// it removes defaults that still point into it. Returns the changed columns.
func (d *Driver) ReattachSequences(ctx context.Context, staged, live Table) ([]string, error) {
	query, args, err := d.sb.
		Select("column_name", "column_default", "is_identity").
		From("information_schema.columns").
		Where(sq.Eq{"table_schema": staged.Schema().Name(), "table_name": staged.Name()}).
		Where(sq.Or{sq.Like{"column_default": "nextval(%"}, sq.Eq{"is_identity": "YES"}}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sequence query: %w", err)
	}

	cols, err := d.sequenceColumns(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, c := range cols {
		if err := checkIdentifier("column", c.name); err != nil {
			return changed, fmt.Errorf("%s: %w", staged, err)
		}

		var seqRef string
		if c.identity {
			seqRef = "pg_get_serial_sequence('" + live.Quoted() + "', '" + c.name + "')"
		} else {
			schema, _ := splitSequenceRef(c.def)
			if schema != staged.Schema().Name() {
				continue
			}
			seq, err := d.freeSequenceName(ctx, live, c.name)
			if err != nil {
				return changed, err
			}
			for _, stmt := range []string{
				"CREATE SEQUENCE " + seq.Quoted(),
				"ALTER SEQUENCE " + seq.Quoted() + " OWNED BY " + live.Quoted() + `."` + c.name + `"`,
				"ALTER TABLE " + live.Quoted() + ` ALTER COLUMN "` + c.name + `" SET DEFAULT nextval('` + seq.Quoted() + "'::regclass)",
			} {
				if _, err := d.exec(ctx, "reattach sequence", stmt); err != nil {
					return changed, err
				}
			}
			seqRef = "'" + seq.Quoted() + "'::regclass"
		}

		if _, err := d.exec(ctx, "advance sequence", setvalSQL(seqRef, live, c.name)); err != nil {
			return changed, err
		}
		changed = append(changed, c.name)
	}
	return changed, nil
}

type sequenceColumn struct {
	name     string
	def      string
	identity bool
}

func (d *Driver) sequenceColumns(ctx context.Context, query string, args ...any) ([]sequenceColumn, error) {
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, faults.Driver("list sequence columns", "", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err is checked below

	var out []sequenceColumn
	for rows.Next() {
		var (
			name     string
			def      sql.NullString
			identity sql.NullString
		)
		if err := rows.Scan(&name, &def, &identity); err != nil {
			return nil, faults.Driver("list sequence columns", "", err)
		}
		out = append(out, sequenceColumn{name: name, def: def.String, identity: identity.String == "YES"})
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Driver("list sequence columns", "", err)
	}
	return out, nil
}

// freeSequenceName returns <table>_<column>_seq, or the first free numbered
// variant when that name is taken, typically by the renamed live table.
func (d *Driver) freeSequenceName(ctx context.Context, table Table, column string) (Table, error) {
	base := table.Name() + "_" + column + "_seq"
	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		seq, err := table.Renamed(name)
		if err != nil {
			return Table{}, err
		}

		query, args, err := d.sb.
			Select("count(*)").
			From("information_schema.sequences").
			Where(sq.Eq{"sequence_schema": seq.Schema().Name(), "sequence_name": seq.Name()}).
			ToSql()
		if err != nil {
			return Table{}, fmt.Errorf("build sequence exists query: %w", err)
		}
		var n int
		if err := d.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return Table{}, faults.Driver("sequence exists", "", err)
		}
		if n == 0 {
			return seq, nil
		}
	}
	return Table{}, fmt.Errorf("no free sequence name for %s.%s", table, column)
}

// splitSequenceRef returns the schema and name of the sequence in a
// nextval('...'::regclass) default. schema is empty for unqualified names.
func splitSequenceRef(def string) (schema, name string) {
	m := nextvalDefault.FindStringSubmatch(def)
	if m == nil {
		return "", ""
	}
	ref := strings.ReplaceAll(m[1], `"`, "")
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

func setvalSQL(seqRef string, table Table, column string) string {
	return "SELECT setval(" + seqRef + `, COALESCE((SELECT max("` + column + `") FROM ` + table.Quoted() + "), 0) + 1, false)"
}

func renameTableSQL(table, renamed Table) string {
	return "ALTER TABLE " + table.Quoted() + ` RENAME TO "` + renamed.Name() + `"`
}

func cloneTableSQL(src, dst Table) string {
	return "CREATE TABLE IF NOT EXISTS " + dst.Quoted() + " (LIKE " + src.Quoted() + " INCLUDING ALL)"
}

func copyRowsSQL(src, dst Table) string {
	return "INSERT INTO " + dst.Quoted() + " SELECT * FROM " + src.Quoted()
}

// copyFromStdin matches the statement that opens a COPY data block.
var copyFromStdin = regexp.MustCompile(`^COPY\s.*\sFROM stdin;\s*$`)

// RetargetScript rewrites every whole-word occurrence of from in the statements
// of a dump to to, so a tenant dump can be loaded into a staging schema. Row
// data between COPY ... FROM stdin; and the terminating \. is copied verbatim.
func RetargetScript(script []byte, from, to Schema) []byte {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(from.Name()) + `\b`)
	replacement := []byte(to.Name())

	out := make([]byte, 0, len(script)+len(script)/16)
	inData := false
	for _, line := range bytes.SplitAfter(script, []byte("\n")) {
		if inData {
			if bytes.Equal(bytes.TrimRight(line, "\r\n"), []byte(`\.`)) {
				inData = false
			}
			out = append(out, line...)
			continue
		}
		line = re.ReplaceAllLiteral(line, replacement)
		inData = copyFromStdin.Match(bytes.TrimRight(line, "\r\n"))
		out = append(out, line...)
	}
	return out
}
