// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
exporter.go - Table Export

Rows are read with squirrel-built SELECTs over database/sql and rendered as
JSON arrays of objects, CSV with a header row, or an xlsx workbook holding one
sheet named after the table. Column and table names come
from the catalog and are validated identifiers; filter values are always bound
as parameters.
*/

//nolint:staticcheck // File documentation, not package doc
package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/objectstore"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
	"github.com/tomtom215/tenantvault/internal/validation"
)

// Format is an export serialization.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "excel"
)

// Extension returns the file extension for documents in f.
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// maxSheetName is Excel's sheet name limit.
const maxSheetName = 31

// ErrUnsupportedFormat is returned for formats without a renderer.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// UsersTable holds one row per user, keyed by id.
const UsersTable = "users"

// Redacted replaces personal data when anonymizing an export.
const Redacted = "[REDACTED]"

// personalColumns are replaced with Redacted by AnonymizePersonalData.
var personalColumns = map[string]bool{
	"email":         true,
	"first_name":    true,
	"last_name":     true,
	"full_name":     true,
	"name":          true,
	"phone":         true,
	"phone_number":  true,
	"address":       true,
	"birth_date":    true,
	"date_of_birth": true,
	"photo_url":     true,
	"avatar_url":    true,
}

// Catalog lists tables and columns of a schema.
type Catalog interface {
	Tables(ctx context.Context, schema pgdriver.Schema) ([]pgdriver.Table, error)
	Columns(ctx context.Context, table pgdriver.Table) ([]string, error)
}

// Querier runs read queries.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Options selects what Export returns.
type Options struct {
	Format Format `validate:"required,oneof=csv json excel"`
	// Tables defaults to every table of the tenant schema.
	Tables []string `validate:"omitempty,dive,identifier"`
	// Filters are column equality conditions, applied to tables that have the column.
	Filters               map[string]string `validate:"omitempty,dive,keys,identifier,endkeys"`
	AnonymizePersonalData bool
}

// Exporter reads tenant data.
type Exporter struct {
	db      Querier
	catalog Catalog
	remote  objectstore.Store
	tables  []UserTable
	sb      sq.StatementBuilderType
	now     func() time.Time
}

// New creates an Exporter. remote may be nil, in which case UserExport
// returns the document without archiving it.
func New(db Querier, catalog Catalog, remote objectstore.Store, userTables []UserTable) *Exporter {
	return &Exporter{
		db:      db,
		catalog: catalog,
		remote:  remote,
		tables:  userTables,
		sb:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:     time.Now,
	}
}

// Export returns the serialized rows of each selected table keyed by table name.
func (e *Exporter) Export(ctx context.Context, tenantID string, opts Options) (map[string][]byte, error) {
	if verr := validation.ValidateStruct(&opts); verr != nil {
		return nil, verr
	}

	schema, err := pgdriver.TenantSchema(tenantID)
	if err != nil {
		return nil, err
	}
	tables, err := e.selectTables(ctx, schema, opts.Tables)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(tables))
	for _, t := range tables {
		cols, rows, err := e.readTable(ctx, t, opts.Filters)
		if err != nil {
			return nil, err
		}
		if opts.AnonymizePersonalData {
			anonymize(cols, rows)
		}
		doc, err := render(opts.Format, t.Name(), cols, rows)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", t, err)
		}
		out[t.Name()] = doc
	}

	logging.Ctx(ctx).Info().
		Str("format", string(opts.Format)).
		Int("tables", len(out)).
		Bool("anonymized", opts.AnonymizePersonalData).
		Msg("Tenant export finished")
	return out, nil
}

func (e *Exporter) selectTables(ctx context.Context, schema pgdriver.Schema, names []string) ([]pgdriver.Table, error) {
	if len(names) == 0 {
		return e.catalog.Tables(ctx, schema)
	}
	tables := make([]pgdriver.Table, 0, len(names))
	for _, n := range names {
		t, err := schema.Table(n)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// readTable returns the column names and rows of t. Filters on columns t does
// not have are ignored.
func (e *Exporter) readTable(ctx context.Context, t pgdriver.Table, filters map[string]string) ([]string, [][]any, error) {
	cols, err := e.catalog.Columns(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	if len(cols) == 0 {
		return nil, nil, faults.NotFound("table", t.String())
	}

	where := sq.Eq{}
	for _, c := range cols {
		if v, ok := filters[c]; ok {
			where[`"`+c+`"`] = v
		}
	}
	return e.query(ctx, t, cols, where)
}

func (e *Exporter) query(ctx context.Context, t pgdriver.Table, cols []string, where sq.Eq) ([]string, [][]any, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
	}
	b := e.sb.Select(quoted...).From(t.Quoted())
	if len(where) > 0 {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, nil, fmt.Errorf("build export query: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, faults.Driver("export "+t.String(), "", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err is checked below

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, faults.Driver("export "+t.String(), "", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, faults.Driver("export "+t.String(), "", err)
	}
	return cols, out, nil
}

func anonymize(cols []string, rows [][]any) {
	for i, c := range cols {
		if !personalColumns[c] {
			continue
		}
		for _, r := range rows {
			if r[i] != nil {
				r[i] = Redacted
			}
		}
	}
}

func render(format Format, table string, cols []string, rows [][]any) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(records(cols, rows), "", "  ")
	case FormatCSV:
		return renderCSV(cols, rows)
	case FormatExcel:
		return renderExcel(table, cols, rows)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func records(cols []string, rows [][]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c] = r[i]
		}
		out = append(out, m)
	}
	return out
}

func renderCSV(cols []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, err
	}
	record := make([]string, len(cols))
	for _, r := range rows {
		for i, v := range r {
			record[i] = csvValue(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func csvValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func renderExcel(table string, cols []string, rows [][]any) (_ []byte, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sheet := table
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, err
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}
	for n, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(r))
		for i, v := range r {
			values[i] = excelValue(v)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// excelValue keeps numbers numeric and writes timestamps as RFC 3339 text,
// matching the CSV rendering.
func excelValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int, int32, int64, float32, float64, bool, string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
