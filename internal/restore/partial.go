// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package restore

import (
	"context"
	"fmt"

	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
	"github.com/tomtom215/tenantvault/internal/validation"
)

// BackupTableLayout is the timestamp suffix of renamed live tables.
const BackupTableLayout = "20060102150405"

type partialRequest struct {
	TenantID string   `validate:"required,identifier"`
	BackupID string   `validate:"required"`
	Tables   []string `validate:"required,min=1,dive,identifier"`
}

// RestorePartial restores only tables from an artifact, leaving every other
// table of the tenant untouched. Live tables are renamed, never dropped.
func (o *Orchestrator) RestorePartial(ctx context.Context, tenantID, backupID string, tables []string, opts Options) (*Result, error) {
	if verr := validation.ValidateStruct(&partialRequest{TenantID: tenantID, BackupID: backupID, Tables: tables}); verr != nil {
		return nil, verr
	}

	resolved := make([]pgdriver.Table, 0, len(tables))
	seen := make(map[string]bool, len(tables))
	for _, name := range tables {
		if seen[name] {
			continue
		}
		seen[name] = true
		t, err := o.registry.Resolve(tenantID, name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, t)
	}
	schema := resolved[0].Schema()

	ctx = logging.ContextWithTenant(ctx, tenantID)
	op := o.newOperation(tenantID, backupID, models.RestorePartial, tables)

	release, err := o.locker.Acquire(ctx, tenantID)
	if err != nil {
		return o.finish(ctx, op, err)
	}
	defer release()

	err = o.restorePartial(ctx, op, schema, resolved)
	return o.finish(ctx, op, err)
}

func (o *Orchestrator) restorePartial(ctx context.Context, op *models.RestoreOperation, schema pgdriver.Schema, tables []pgdriver.Table) error {
	log := logging.Ctx(ctx)

	script, err := o.fetchScript(ctx, op.TenantID, op.BackupID)
	if err != nil {
		return err
	}

	started := o.now().UTC()
	staging, err := schema.Derived(fmt.Sprintf("restore_%d", started.Unix()))
	if err != nil {
		return err
	}

	dropped := false
	dropStaging := func() {
		if dropped {
			return
		}
		dropped = true
		if err := o.driver.DropSchema(context.WithoutCancel(ctx), staging); err != nil {
			log.Warn().Err(err).Str("schema", staging.Name()).Msg("Failed to drop staging schema")
		}
	}
	defer dropStaging()

	if err := o.load(ctx, op.TenantID, pgdriver.RetargetScript(script, schema, staging)); err != nil {
		return fmt.Errorf("load staging schema: %w", err)
	}

	staged := make([]pgdriver.Table, len(tables))
	for i, t := range tables {
		staged[i] = t.In(staging)
	}
	if results := o.validate(ctx, staged); validationError(results) != nil {
		op.ValidationResults = results
		return fmt.Errorf("staging validation: %w", validationError(results))
	}

	prior := o.priorMigrations(ctx, op)
	suffix := "_backup_" + started.Format(BackupTableLayout)

	var migrateErr error
	for i, live := range tables {
		m, err := o.migrateTable(ctx, live, staged[i], prior[live.Name()], suffix)
		op.Migrations = append(op.Migrations, m)
		o.checkpoint(ctx, op)
		if err != nil {
			migrateErr = fmt.Errorf("migrate %s: %w", live.Name(), err)
			break
		}
	}

	dropStaging()

	op.ValidationResults = o.validate(ctx, tables)
	if migrateErr != nil {
		return migrateErr
	}
	return validationError(op.ValidationResults)
}

// migrateTable swaps one staged table into the live schema. A prior entry
// is the interrupted table of the previous attempt: its rename already
// happened, so an empty live table is refilled instead of renamed again.
func (o *Orchestrator) migrateTable(ctx context.Context, live, staged pgdriver.Table, prior *models.TableMigration, suffix string) (models.TableMigration, error) {
	m := models.TableMigration{Table: live.Name()}
	log := logging.Ctx(ctx).With().Str("table", live.String()).Logger()

	if prior != nil && prior.BackupName != "" {
		backup, err := live.Renamed(prior.BackupName)
		if err != nil {
			return o.migrationFailed(m, err)
		}
		exists, err := o.driver.TableExists(ctx, backup)
		if err != nil {
			return o.migrationFailed(m, err)
		}
		if exists {
			m.Resumed = true
			m.BackupName = backup.Name()
		}
	}

	liveExists, err := o.driver.TableExists(ctx, live)
	if err != nil {
		return o.migrationFailed(m, err)
	}

	if m.Resumed && liveExists {
		n, err := o.driver.CountRows(ctx, live)
		if err != nil {
			return o.migrationFailed(m, err)
		}
		if n > 0 {
			log.Warn().Int64("rows", n).Str("backup_table", m.BackupName).Msg("Live table written since the interrupted attempt, setting it aside")
			m.Resumed = false
			m.BackupName = ""
		}
	}

	if !m.Resumed && liveExists {
		backup, err := o.driver.RenameTable(ctx, live, live.Name()+suffix)
		if err != nil {
			return o.migrationFailed(m, err)
		}
		m.BackupName = backup.Name()
		liveExists = false
		log.Info().Str("backup_table", backup.Name()).Msg("Live table renamed")
	}

	if !liveExists {
		if err := o.driver.CloneTable(ctx, staged, live); err != nil {
			return o.migrationFailed(m, err)
		}
	}

	n, err := o.driver.CopyRows(ctx, staged, live)
	if err != nil {
		return o.migrationFailed(m, err)
	}
	m.RowsCopied = n

	cols, err := o.driver.ReattachSequences(ctx, staged, live)
	if err != nil {
		return o.migrationFailed(m, err)
	}
	log.Info().Int64("rows", n).Bool("resumed", m.Resumed).Strs("sequences", cols).Msg("Table migrated")
	return m, nil
}

func (o *Orchestrator) migrationFailed(m models.TableMigration, err error) (models.TableMigration, error) {
	m.Error = err.Error()
	return m, err
}

// priorMigrations returns the interrupted table of the tenant's most recent
// restore, keyed by table name. Only a failed partial restore of the same
// backup qualifies, and only if no other restore has started since. Tables
// that attempt finished are not returned and get migrated again.
func (o *Orchestrator) priorMigrations(ctx context.Context, op *models.RestoreOperation) map[string]*models.TableMigration {
	ops, err := o.store.ListRestores(ctx, op.TenantID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Could not read restore history, not resuming")
		return nil
	}

	for i := range ops {
		prev := &ops[i]
		if prev.ID == op.ID {
			continue
		}
		sameBackup := prev.Mode == models.RestorePartial && prev.BackupID == op.BackupID
		if sameBackup && !prev.Success && len(prev.Migrations) == 0 {
			// Failed before touching any live table.
			continue
		}
		if !sameBackup || prev.Success {
			return nil
		}
		out := make(map[string]*models.TableMigration, 1)
		for j := range prev.Migrations {
			if prev.Migrations[j].Error != "" {
				out[prev.Migrations[j].Table] = &prev.Migrations[j]
			}
		}
		if len(out) == 0 {
			return nil
		}
		logging.Ctx(ctx).Info().Str("previous_restore_id", prev.ID).Int("tables", len(out)).Msg("Resuming earlier partial restore")
		return out
	}
	return nil
}
