// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package export

import (
	"fmt"
	"strings"

	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

// DefaultOwnerColumn links a row to its user when a table spec names no column.
const DefaultOwnerColumn = "user_id"

// UserTable is a user-owned table and the column holding the owner's ID.
type UserTable struct {
	Name        string
	OwnerColumn string
}

// ParseUserTables parses "table" and "table:column" specs.
func ParseUserTables(specs []string) ([]UserTable, error) {
	out := make([]UserTable, 0, len(specs))
	for _, spec := range specs {
		name, col, found := strings.Cut(strings.TrimSpace(spec), ":")
		if !found || col == "" {
			col = DefaultOwnerColumn
		}
		if !pgdriver.ValidIdentifier(name) || !pgdriver.ValidIdentifier(col) {
			return nil, fmt.Errorf("%w: user table spec %q", pgdriver.ErrInvalidIdentifier, spec)
		}
		out = append(out, UserTable{Name: name, OwnerColumn: col})
	}
	return out, nil
}
