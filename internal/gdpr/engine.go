// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
engine.go - Deletion Engine

DeleteUserData writes the ledger row, optionally exports, applies one deletion
type and records the outcome. Per-table failures on user-owned tables are
collected and skipped; failures on the users row or the identity provider fail
the request.
*/

//nolint:staticcheck // File documentation, not package doc
package gdpr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/tomtom215/tenantvault/internal/export"
	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/notify"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
	"github.com/tomtom215/tenantvault/internal/validation"
)

// DefaultRetentionDays is the soft-delete grace period when none is configured.
const DefaultRetentionDays = 30

// DB runs the engine's statements.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledger persists deletion requests.
type Ledger interface {
	CreateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error
	UpdateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error
	ListPendingPurges(ctx context.Context, now time.Time) ([]models.DeletionRequest, error)
}

// UserExporter exports one user's data before deletion.
type UserExporter interface {
	UserExport(ctx context.Context, tenantID, userID string) (*export.UserExport, error)
}

// Options controls one deletion.
type Options struct {
	Type                 models.DeletionType `validate:"required,deletiontype"`
	ExportBeforeDeletion bool
	// RetentionPeriodDays is the soft-delete grace period. Zero uses the
	// engine default.
	RetentionPeriodDays int `validate:"gte=0,lte=3650"`
	NotifyUser          bool
	NotifyAdmin         bool
}

// Config configures an Engine.
type Config struct {
	Tables               []export.UserTable
	DefaultRetentionDays int
}

// DeletionResult is the outcome of DeleteUserData.
type DeletionResult struct {
	Request *models.DeletionRequest
	// Affected counts rows changed per table.
	Affected map[string]int64
	// Skipped holds the error of each user-owned table that failed.
	Skipped map[string]string
	Events  []notify.Event
}

// Engine deletes user data inside tenant schemas.
type Engine struct {
	db        DB
	ledger    Ledger
	identity  IdentityProvider
	exporter  UserExporter
	hasher    *EmailHasher
	tables    []export.UserTable
	retention int
	sb        sq.StatementBuilderType
	now       func() time.Time
}

// NewEngine creates an Engine. identity and exporter may be nil; requests
// needing them then fail instead of skipping the step silently.
func NewEngine(db DB, ledger Ledger, identity IdentityProvider, exporter UserExporter, hasher *EmailHasher, cfg Config) *Engine {
	retention := cfg.DefaultRetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	return &Engine{
		db:        db,
		ledger:    ledger,
		identity:  identity,
		exporter:  exporter,
		hasher:    hasher,
		tables:    cfg.Tables,
		retention: retention,
		sb:        sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:       time.Now,
	}
}

type deleteRequest struct {
	UserID   string `validate:"required,max=255"`
	TenantID string `validate:"required,identifier"`
	Options  Options
}

// DeleteUserData deletes, soft-deletes or anonymizes one user. The returned
// result is non-nil once the ledger row was written.
func (e *Engine) DeleteUserData(ctx context.Context, userID, tenantID string, opts Options) (*DeletionResult, error) {
	if verr := validation.ValidateStruct(&deleteRequest{UserID: userID, TenantID: tenantID, Options: opts}); verr != nil {
		return nil, verr
	}
	schema, err := pgdriver.TenantSchema(tenantID)
	if err != nil {
		return nil, err
	}

	ctx = logging.ContextWithTenant(ctx, tenantID)
	now := e.now().UTC()
	req := &models.DeletionRequest{
		ID:           uuid.New().String(),
		UserID:       userID,
		TenantID:     tenantID,
		DeletionType: opts.Type,
		Status:       models.DeletionProcessing,
		RequestedAt:  now,
	}
	if opts.Type == models.DeletionSoft {
		days := opts.RetentionPeriodDays
		if days == 0 {
			days = e.retention
		}
		purge := now.AddDate(0, 0, days)
		req.RetentionPeriodDays = &days
		req.ScheduledPurgeDate = &purge
	}

	if err := e.ledger.CreateDeletionRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("record deletion request: %w", err)
	}

	res := &DeletionResult{
		Request:  req,
		Affected: make(map[string]int64),
		Skipped:  make(map[string]string),
	}
	cause := e.run(ctx, schema, req, opts, res)
	return e.finish(ctx, req, opts, res, cause)
}

func (e *Engine) run(ctx context.Context, schema pgdriver.Schema, req *models.DeletionRequest, opts Options, res *DeletionResult) error {
	if opts.ExportBeforeDeletion {
		if e.exporter == nil {
			return errors.New("export requested but no exporter is configured")
		}
		exp, err := e.exporter.UserExport(ctx, req.TenantID, req.UserID)
		if err != nil {
			return fmt.Errorf("export before deletion: %w", err)
		}
		req.ExportLocation = exp.Location
	}

	switch req.DeletionType {
	case models.DeletionHard:
		return e.hardDelete(ctx, schema, req.UserID, false, res)
	case models.DeletionSoft:
		return e.softDelete(ctx, schema, req.UserID, *req.ScheduledPurgeDate, res)
	case models.DeletionAnonymize:
		return e.anonymize(ctx, schema, req.UserID, res)
	default:
		return fmt.Errorf("unknown deletion type %q", req.DeletionType)
	}
}

func (e *Engine) finish(ctx context.Context, req *models.DeletionRequest, opts Options, res *DeletionResult, cause error) (*DeletionResult, error) {
	completed := e.now().UTC()
	req.CompletedAt = &completed
	req.Status = models.DeletionCompleted
	if cause != nil {
		req.Status = models.DeletionFailed
		req.ErrorMessage = cause.Error()
	}

	log := logging.Ctx(ctx)
	if err := e.ledger.UpdateDeletionRequest(ctx, req); err != nil {
		log.Error().Err(err).Str("request_id", req.ID).Msg("Failed to update deletion ledger")
		cause = errors.Join(cause, fmt.Errorf("update deletion request: %w", err))
	}
	metrics.RecordGDPRDeletion(string(req.DeletionType), string(req.Status))

	evt := log.Info()
	if cause != nil {
		evt = log.Error().Err(cause)
	}
	evt.Str("request_id", req.ID).
		Str("user_id", req.UserID).
		Str("deletion_type", string(req.DeletionType)).
		Int("tables_affected", len(res.Affected)).
		Int("tables_skipped", len(res.Skipped)).
		Msg("Deletion request finished")

	success := req.Status == models.DeletionCompleted
	if opts.NotifyUser {
		res.Events = append(res.Events, notify.DeletionFinished(notify.KindDeletionUser, req.TenantID, req.UserID, req.ID, string(req.DeletionType), success, req.ErrorMessage))
	}
	if opts.NotifyAdmin {
		res.Events = append(res.Events, notify.DeletionFinished(notify.KindDeletionAdmin, req.TenantID, req.UserID, req.ID, string(req.DeletionType), success, req.ErrorMessage))
	}
	return res, cause
}

// ownedTables resolves the configured user-owned tables in schema.
func (e *Engine) ownedTables(schema pgdriver.Schema) ([]pgdriver.Table, []string, error) {
	tables := make([]pgdriver.Table, 0, len(e.tables))
	owners := make([]string, 0, len(e.tables))
	for _, ut := range e.tables {
		t, err := schema.Table(ut.Name)
		if err != nil {
			return nil, nil, err
		}
		tables = append(tables, t)
		owners = append(owners, ut.OwnerColumn)
	}
	return tables, owners, nil
}

func (e *Engine) exec(ctx context.Context, op string, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	r, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, faults.Driver(op, "", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // Driver does not report affected rows
	}
	return n, nil
}

func (e *Engine) skip(ctx context.Context, res *DeletionResult, t pgdriver.Table, err error) {
	logging.Ctx(ctx).Warn().Err(err).Str("table", t.String()).Msg("Skipping table during deletion")
	res.Skipped[t.Name()] = err.Error()
}

// userExists reports whether the users row for userID exists.
func (e *Engine) userExists(ctx context.Context, users pgdriver.Table, userID string) (bool, error) {
	query, args, err := e.sb.Select("count(*)").From(users.Quoted()).Where(sq.Eq{"id": userID}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build user lookup: %w", err)
	}
	var n int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, faults.Driver("lookup user", "", err)
	}
	return n > 0, nil
}
