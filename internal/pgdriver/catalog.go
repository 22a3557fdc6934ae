// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package pgdriver

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tomtom215/tenantvault/internal/faults"
)

// Tables lists the base tables of schema in name order.
// Names that are not valid identifiers are reported as an error, never skipped.
func (d *Driver) Tables(ctx context.Context, schema Schema) ([]Table, error) {
	query, args, err := d.sb.
		Select("table_name").
		From("information_schema.tables").
		Where(sq.Eq{"table_schema": schema.Name(), "table_type": "BASE TABLE"}).
		OrderBy("table_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build table query: %w", err)
	}

	names, err := d.queryStrings(ctx, "list tables", query, args...)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		t, err := schema.Table(name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Columns lists the columns of table in ordinal order.
func (d *Driver) Columns(ctx context.Context, table Table) ([]string, error) {
	query, args, err := d.sb.
		Select("column_name").
		From("information_schema.columns").
		Where(sq.Eq{"table_schema": table.Schema().Name(), "table_name": table.Name()}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build column query: %w", err)
	}

	cols, err := d.queryStrings(ctx, "list columns", query, args...)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if err := checkIdentifier("column", c); err != nil {
			return nil, fmt.Errorf("%s: %w", table, err)
		}
	}
	return cols, nil
}

// TableExists reports whether table exists.
func (d *Driver) TableExists(ctx context.Context, table Table) (bool, error) {
	query, args, err := d.sb.
		Select("count(*)").
		From("information_schema.tables").
		Where(sq.Eq{"table_schema": table.Schema().Name(), "table_name": table.Name()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var n int
	if err := d.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, faults.Driver("table exists", "", err)
	}
	return n > 0, nil
}

// SchemaExists reports whether schema exists.
func (d *Driver) SchemaExists(ctx context.Context, schema Schema) (bool, error) {
	query, args, err := d.sb.
		Select("count(*)").
		From("information_schema.schemata").
		Where(sq.Eq{"schema_name": schema.Name()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build schema query: %w", err)
	}

	var n int
	if err := d.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, faults.Driver("schema exists", "", err)
	}
	return n > 0, nil
}

func (d *Driver) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, faults.Driver(op, "", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err is checked below

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, faults.Driver(op, "", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Driver(op, "", err)
	}
	return out, nil
}
