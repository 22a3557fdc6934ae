// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package pgdriver

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// MaxIdentifierLength is Postgres' NAMEDATALEN - 1.
const MaxIdentifierLength = 63

// TenantSchemaPrefix prefixes every tenant schema name.
const TenantSchemaPrefix = "tenant_"

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ErrInvalidIdentifier is returned for names that are not safe to use in SQL.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ValidIdentifier reports whether name may be used as a schema or table name.
func ValidIdentifier(name string) bool {
	return len(name) <= MaxIdentifierLength && identifierPattern.MatchString(name)
}

func checkIdentifier(kind, name string) error {
	if !ValidIdentifier(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, name)
	}
	return nil
}

// Schema is a validated schema name.
type Schema struct {
	name string
}

// ParseSchema validates name as a schema.
func ParseSchema(name string) (Schema, error) {
	if err := checkIdentifier("schema", name); err != nil {
		return Schema{}, err
	}
	return Schema{name: name}, nil
}

// TenantSchema returns the schema that isolates tenantID.
func TenantSchema(tenantID string) (Schema, error) {
	if err := checkIdentifier("tenant id", tenantID); err != nil {
		return Schema{}, err
	}
	return ParseSchema(TenantSchemaPrefix + tenantID)
}

// Name returns the bare schema name.
func (s Schema) Name() string { return s.name }

// Quoted returns the schema name as a quoted SQL identifier.
func (s Schema) Quoted() string { return `"` + s.name + `"` }

// IsZero reports whether s was never initialized.
func (s Schema) IsZero() bool { return s.name == "" }

func (s Schema) String() string { return s.name }

// Table builds a validated table reference inside s.
func (s Schema) Table(name string) (Table, error) {
	if s.IsZero() {
		return Table{}, fmt.Errorf("%w: empty schema", ErrInvalidIdentifier)
	}
	if err := checkIdentifier("table", name); err != nil {
		return Table{}, err
	}
	return Table{schema: s, name: name}, nil
}

// Derived returns a schema named <s>_<suffix>, validated.
func (s Schema) Derived(suffix string) (Schema, error) {
	return ParseSchema(s.name + "_" + suffix)
}

// Table is a validated schema-qualified table reference.
type Table struct {
	schema Schema
	name   string
}

// Schema returns the table's schema.
func (t Table) Schema() Schema { return t.schema }

// Name returns the bare table name.
func (t Table) Name() string { return t.name }

// Quoted returns "schema"."table".
func (t Table) Quoted() string { return t.schema.Quoted() + `."` + t.name + `"` }

func (t Table) String() string { return t.schema.name + "." + t.name }

// In returns the same table name inside another schema.
func (t Table) In(s Schema) Table { return Table{schema: s, name: t.name} }

// Renamed returns a reference to name in the same schema, validated.
func (t Table) Renamed(name string) (Table, error) { return t.schema.Table(name) }

// Registry resolves tenant tables against an allow-list of table names. A
// Registry with no tables accepts any valid identifier.
type Registry struct {
	tables map[string]struct{}
}

// NewRegistry builds a registry of permitted table names.
func NewRegistry(tables ...string) (*Registry, error) {
	r := &Registry{tables: make(map[string]struct{}, len(tables))}
	for _, name := range tables {
		if err := checkIdentifier("table", name); err != nil {
			return nil, err
		}
		r.tables[name] = struct{}{}
	}
	return r, nil
}

// Resolve returns the table reference for tenantID.
func (r *Registry) Resolve(tenantID, table string) (Table, error) {
	if len(r.tables) > 0 {
		if _, ok := r.tables[table]; !ok {
			return Table{}, fmt.Errorf("%w: table %q is not registered", ErrInvalidIdentifier, table)
		}
	}
	schema, err := TenantSchema(tenantID)
	if err != nil {
		return Table{}, err
	}
	return schema.Table(table)
}

// Tables returns the registered names in sorted order.
func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.tables))
	for name := range r.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
