// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
orchestrator.go - Restore Orchestrator

Every restore runs fetch, verify, decode and load in that order. The archive is
fully verified before the first statement touches a schema, and working files
are removed on every exit path.
*/

//nolint:staticcheck // File documentation, not package doc
package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/notify"
	"github.com/tomtom215/tenantvault/internal/objectstore"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
	"github.com/tomtom215/tenantvault/internal/validation"
)

// Driver is the SQL surface a restore needs. All calls of one restore must run
// on a single session, see pgdriver.Driver.Pinned.
type Driver interface {
	RestoreFromFile(ctx context.Context, path string) error
	DropSchema(ctx context.Context, schema pgdriver.Schema) error
	Tables(ctx context.Context, schema pgdriver.Schema) ([]pgdriver.Table, error)
	TableExists(ctx context.Context, table pgdriver.Table) (bool, error)
	CountRows(ctx context.Context, table pgdriver.Table) (int64, error)
	RenameTable(ctx context.Context, table pgdriver.Table, newName string) (pgdriver.Table, error)
	CloneTable(ctx context.Context, src, dst pgdriver.Table) error
	CopyRows(ctx context.Context, src, dst pgdriver.Table) (int64, error)
	ReattachSequences(ctx context.Context, staged, live pgdriver.Table) ([]string, error)
}

// Decoder reverses the archive codec.
type Decoder interface {
	Decode(data []byte, checksum string, encrypted bool) ([]byte, error)
}

// Store reads artifacts and records restore operations.
type Store interface {
	GetArtifact(ctx context.Context, id string) (*models.BackupArtifact, error)
	SaveRestore(ctx context.Context, op *models.RestoreOperation) error
	ListRestores(ctx context.Context, tenantID string) ([]models.RestoreOperation, error)
}

// Options controls one restore.
type Options struct {
	// DropExistingSchema drops the live schema before a full restore.
	DropExistingSchema bool
	// ValidateAfterRestore counts rows of every restored table. Partial
	// restores always validate the requested tables.
	ValidateAfterRestore bool
}

// Config configures an Orchestrator.
type Config struct {
	// TempDir holds decoded scripts while they load. Empty uses os.TempDir.
	TempDir string
	// Registry restricts partial restores to known tables. Nil allows any
	// valid identifier.
	Registry *pgdriver.Registry
}

// Result is the persisted operation plus the events awaiting dispatch.
type Result struct {
	*models.RestoreOperation
	Events []notify.Event
}

// Orchestrator runs restores.
type Orchestrator struct {
	driver   Driver
	decoder  Decoder
	remote   objectstore.Store
	store    Store
	locker   Locker
	registry *pgdriver.Registry
	tempDir  string
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator. remote may be nil when artifacts
// are only kept locally. locker defaults to a LocalLocker.
func NewOrchestrator(driver Driver, decoder Decoder, remote objectstore.Store, store Store, locker Locker, cfg Config) *Orchestrator {
	if locker == nil {
		locker = NewLocalLocker()
	}
	reg := cfg.Registry
	if reg == nil {
		reg, _ = pgdriver.NewRegistry() //nolint:errcheck // Empty registry cannot fail
	}
	return &Orchestrator{
		driver:   driver,
		decoder:  decoder,
		remote:   remote,
		store:    store,
		locker:   locker,
		registry: reg,
		tempDir:  cfg.TempDir,
		now:      time.Now,
	}
}

type fullRequest struct {
	TenantID string `validate:"required,identifier"`
	BackupID string `validate:"required"`
}

// RestoreFull restores an artifact into the tenant's live schema.
// The returned Result is non-nil whenever the request was valid.
func (o *Orchestrator) RestoreFull(ctx context.Context, tenantID, backupID string, opts Options) (*Result, error) {
	if verr := validation.ValidateStruct(&fullRequest{TenantID: tenantID, BackupID: backupID}); verr != nil {
		return nil, verr
	}
	schema, err := pgdriver.TenantSchema(tenantID)
	if err != nil {
		return nil, err
	}

	ctx = logging.ContextWithTenant(ctx, tenantID)
	op := o.newOperation(tenantID, backupID, models.RestoreFull, nil)

	release, err := o.locker.Acquire(ctx, tenantID)
	if err != nil {
		return o.finish(ctx, op, err)
	}
	defer release()

	err = o.restoreFull(ctx, op, schema, opts)
	return o.finish(ctx, op, err)
}

func (o *Orchestrator) restoreFull(ctx context.Context, op *models.RestoreOperation, schema pgdriver.Schema, opts Options) error {
	script, err := o.fetchScript(ctx, op.TenantID, op.BackupID)
	if err != nil {
		return err
	}

	if opts.DropExistingSchema {
		if err := o.driver.DropSchema(ctx, schema); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
	}

	if err := o.load(ctx, op.TenantID, script); err != nil {
		return err
	}

	if !opts.ValidateAfterRestore {
		return nil
	}

	tables, err := o.driver.Tables(ctx, schema)
	if err != nil {
		return fmt.Errorf("enumerate restored tables: %w", err)
	}
	op.ValidationResults = o.validate(ctx, tables)
	return validationError(op.ValidationResults)
}

// fetchScript downloads, verifies and decodes the artifact. Nothing is
// written anywhere until this succeeds.
func (o *Orchestrator) fetchScript(ctx context.Context, tenantID, backupID string) ([]byte, error) {
	artifact, err := o.store.GetArtifact(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if artifact.TenantID != tenantID {
		return nil, faults.NotFound("backup", backupID)
	}
	if artifact.Status != models.BackupCompleted {
		return nil, fmt.Errorf("backup %s is %s, not %s", backupID, artifact.Status, models.BackupCompleted)
	}

	data, err := o.download(ctx, artifact)
	if err != nil {
		return nil, err
	}

	script, err := o.decoder.Decode(data, artifact.Checksum, artifact.Encrypted)
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Debug().
		Str("backup_id", backupID).
		Int("archive_bytes", len(data)).
		Int("script_bytes", len(script)).
		Msg("Backup archive verified")
	return script, nil
}

func (o *Orchestrator) download(ctx context.Context, a *models.BackupArtifact) ([]byte, error) {
	if a.RemoteLocation != "" && o.remote != nil {
		data, err := o.remote.Get(ctx, a.RemoteLocation)
		if err != nil {
			metrics.RecordObjectStoreError("get")
			return nil, err
		}
		return data, nil
	}
	if a.LocalPath == "" {
		return nil, faults.NotFound("backup file", a.ID)
	}
	data, err := os.ReadFile(a.LocalPath) //nolint:gosec // G304: path comes from the artifact ledger
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, faults.NotFound("backup file", a.LocalPath)
		}
		return nil, fmt.Errorf("read backup file: %w", err)
	}
	return data, nil
}

// load writes script to a private temp dir and runs it.
func (o *Orchestrator) load(ctx context.Context, tenantID string, script []byte) error {
	dir, err := os.MkdirTemp(o.tempDir, "restore-"+tenantID+"-")
	if err != nil {
		return fmt.Errorf("create restore temp dir: %w", err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck // Best effort cleanup

	path := filepath.Join(dir, "restore.sql")
	if err := os.WriteFile(path, script, 0o600); err != nil {
		return fmt.Errorf("write restore script: %w", err)
	}
	if err := o.driver.RestoreFromFile(ctx, path); err != nil {
		return fmt.Errorf("load restore script: %w", err)
	}
	return nil
}

func (o *Orchestrator) validate(ctx context.Context, tables []pgdriver.Table) []models.ValidationResult {
	results := make([]models.ValidationResult, 0, len(tables))
	for _, t := range tables {
		results = append(results, o.validateTable(ctx, t))
	}
	return results
}

func (o *Orchestrator) validateTable(ctx context.Context, t pgdriver.Table) models.ValidationResult {
	res := models.ValidationResult{Table: t.Name()}

	exists, err := o.driver.TableExists(ctx, t)
	switch {
	case err != nil:
		res.Error = err.Error()
		return res
	case !exists:
		res.Error = "table does not exist"
		return res
	}

	n, err := o.driver.CountRows(ctx, t)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.RecordCount = n
	res.Valid = true
	return res
}

// validationError returns a ValidationFailure naming every invalid table, or
// nil when all results are valid. An empty result set is a failure.
func validationError(results []models.ValidationResult) error {
	if models.AllValid(results) {
		return nil
	}
	var failed []string
	for _, r := range results {
		if !r.Valid {
			failed = append(failed, r.Table)
		}
	}
	if len(results) == 0 {
		failed = []string{"(no tables restored)"}
	}
	return &faults.ValidationFailure{Tables: failed}
}

func (o *Orchestrator) newOperation(tenantID, backupID string, mode models.RestoreMode, tables []string) *models.RestoreOperation {
	return &models.RestoreOperation{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		BackupID:  backupID,
		Mode:      mode,
		Tables:    tables,
		StartedAt: o.now().UTC(),
	}
}

// checkpoint persists an in-flight operation.
func (o *Orchestrator) checkpoint(ctx context.Context, op *models.RestoreOperation) {
	if err := o.store.SaveRestore(ctx, op); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("restore_id", op.ID).Msg("Failed to checkpoint restore")
	}
}

// finish records the terminal state of op and builds the result.
func (o *Orchestrator) finish(ctx context.Context, op *models.RestoreOperation, cause error) (*Result, error) {
	finished := o.now().UTC()
	op.FinishedAt = finished
	op.DurationSeconds = finished.Sub(op.StartedAt).Seconds()
	op.Success = cause == nil
	if cause != nil {
		op.ErrorMessage = cause.Error()
	}

	log := logging.Ctx(ctx)
	if err := o.store.SaveRestore(ctx, op); err != nil {
		log.Error().Err(err).Str("restore_id", op.ID).Msg("Failed to persist restore operation")
		cause = errors.Join(cause, fmt.Errorf("persist restore: %w", err))
	}

	metrics.RecordRestore(string(op.Mode), op.Success, finished.Sub(op.StartedAt))

	evt := log.Info()
	if !op.Success {
		evt = log.Error().Err(cause)
	}
	evt.Str("restore_id", op.ID).
		Str("backup_id", op.BackupID).
		Str("mode", string(op.Mode)).
		Int("tables_validated", len(op.ValidationResults)).
		Float64("duration_seconds", op.DurationSeconds).
		Msg("Restore finished")

	res := &Result{
		RestoreOperation: op,
		Events:           []notify.Event{notify.RestoreFinished(op.TenantID, op.BackupID, string(op.Mode), op.Success, op.ErrorMessage)},
	}
	return res, cause
}
