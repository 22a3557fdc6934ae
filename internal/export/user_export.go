// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package export

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/objectstore"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

// UserDocument is everything stored about one user.
type UserDocument struct {
	TenantID   string                      `json:"tenant_id"`
	UserID     string                      `json:"user_id"`
	ExportedAt time.Time                   `json:"exported_at"`
	Tables     map[string][]map[string]any `json:"tables"`
	Skipped    map[string]string           `json:"skipped,omitempty"`
}

// UserExport is the result of exporting one user's data.
type UserExport struct {
	Document *UserDocument
	Data     []byte
	// Location is empty when no object store is configured.
	Location string
}

// UserExport collects the users row and every owned row of the configured
// user tables. Tables that cannot be read are listed in Document.Skipped;
// failing to read the users row is an error.
func (e *Exporter) UserExport(ctx context.Context, tenantID, userID string) (*UserExport, error) {
	schema, err := pgdriver.TenantSchema(tenantID)
	if err != nil {
		return nil, err
	}
	exportedAt := e.now().UTC()
	doc := &UserDocument{
		TenantID:   tenantID,
		UserID:     userID,
		ExportedAt: exportedAt,
		Tables:     make(map[string][]map[string]any),
		Skipped:    make(map[string]string),
	}
	log := logging.Ctx(ctx)

	users, err := schema.Table(UsersTable)
	if err != nil {
		return nil, err
	}
	cols, rows, err := e.ownedRows(ctx, users, "id", userID)
	if err != nil {
		return nil, fmt.Errorf("export user row: %w", err)
	}
	doc.Tables[UsersTable] = records(cols, rows)

	for _, ut := range e.tables {
		t, err := schema.Table(ut.Name)
		if err != nil {
			return nil, err
		}
		cols, rows, err := e.ownedRows(ctx, t, ut.OwnerColumn, userID)
		if err != nil {
			log.Warn().Err(err).Str("table", t.String()).Msg("Skipping table in user export")
			doc.Skipped[ut.Name] = err.Error()
			continue
		}
		doc.Tables[ut.Name] = records(cols, rows)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode user export: %w", err)
	}
	res := &UserExport{Document: doc, Data: data}

	if e.remote != nil {
		name := fmt.Sprintf("export_%s.json", exportedAt.Format("2006-01-02-15-04-05"))
		loc, err := e.remote.Put(ctx, objectstore.ExportKey(tenantID, userID, name), data, map[string]string{
			"tenant_id": tenantID,
			"user_id":   userID,
		})
		if err != nil {
			metrics.RecordObjectStoreError("put")
			return nil, err
		}
		res.Location = loc
	}

	log.Info().
		Str("user_id", userID).
		Int("tables", len(doc.Tables)).
		Int("skipped", len(doc.Skipped)).
		Str("location", res.Location).
		Msg("User export finished")
	return res, nil
}

func (e *Exporter) ownedRows(ctx context.Context, t pgdriver.Table, ownerColumn, userID string) ([]string, [][]any, error) {
	cols, err := e.catalog.Columns(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("table %s not found", t)
	}
	return e.query(ctx, t, cols, sq.Eq{`"` + ownerColumn + `"`: userID})
}
