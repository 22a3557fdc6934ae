// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tenantvault/internal/backup"
	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/models"
)

type backupFlags struct {
	Type    string `flag:"type" validate:"required,backuptype"`
	Tenant  string `flag:"tenant" validate:"omitempty,identifier"`
	Plan    string `flag:"plan" validate:"omitempty,oneof=free standard premium"`
	DryRun  bool
	Cleanup bool
}

// tenantSource resolves backup targets from the tenant registry.
type tenantSource interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	ListTenants(ctx context.Context, plan string) ([]models.Tenant, error)
}

// selectTenants returns the single named tenant, or every active tenant on
// plan. A named tenant missing from the registry is still backed up.
func selectTenants(ctx context.Context, src tenantSource, tenantID, plan string) ([]backup.Tenant, error) {
	if tenantID != "" {
		t, err := src.GetTenant(ctx, tenantID)
		switch {
		case errors.Is(err, faults.ErrNotFound):
			logging.Warn().Str("tenant_id", tenantID).Msg("Tenant not in registry; backing up anyway")
			return []backup.Tenant{{ID: tenantID, Plan: plan}}, nil
		case err != nil:
			return nil, err
		}
		return []backup.Tenant{{ID: t.ID, Plan: t.Plan}}, nil
	}

	rows, err := src.ListTenants(ctx, plan)
	if err != nil {
		return nil, err
	}
	tenants := make([]backup.Tenant, 0, len(rows))
	for _, r := range rows {
		tenants = append(tenants, backup.Tenant{ID: r.ID, Plan: r.Plan})
	}
	return tenants, nil
}

func newBackupCmd(a *app) *cobra.Command {
	var f backupFlags

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up one tenant or every tenant on a plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBackup(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", "full", "backup type: full, incremental or snapshot")
	cmd.Flags().StringVar(&f.Tenant, "tenant", "", "tenant ID (default: all tenants matching --plan)")
	cmd.Flags().StringVar(&f.Plan, "plan", "", "tenant plan filter: free, standard or premium")
	cmd.Flags().BoolVar(&f.DryRun, "dryRun", false, "log intended actions without side effects")
	cmd.Flags().BoolVar(&f.Cleanup, "cleanup", false, "run the retention sweep after the backup")
	return cmd
}

func (a *app) runBackup(ctx context.Context, f backupFlags) error {
	if err := usageCheck(&f); err != nil {
		return err
	}
	ctx = logging.ContextWithNewCorrelationID(ctx)

	meta, err := a.metadata()
	if err != nil {
		return err
	}
	tenants, err := selectTenants(ctx, meta, f.Tenant, f.Plan)
	if err != nil {
		return fmt.Errorf("select tenants: %w", err)
	}
	if len(tenants) == 0 {
		logging.Warn().Str("plan", f.Plan).Msg("No tenants matched; nothing to back up")
		return nil
	}

	driver, _, err := a.database(ctx)
	if err != nil {
		return err
	}
	codec, err := a.archiveCodec()
	if err != nil {
		return err
	}
	remote, err := a.objectStore(ctx)
	if err != nil {
		return err
	}

	orch := backup.NewOrchestrator(driver, codec, remote, meta, backup.Options{
		Dir:         a.cfg.Backup.Dir,
		MaxParallel: a.cfg.Backup.MaxParallel,
		DryRun:      f.DryRun,
	})
	result := orch.BackupMany(ctx, tenants, models.BackupType(f.Type))
	writeBackupSummary(a.stdout, result)
	if !f.DryRun {
		a.dispatch(ctx, result.Events)
	}

	if f.Cleanup {
		sweep, err := backup.NewSweeper(meta, remote, a.cfg.Backup.Retention, f.DryRun).Sweep(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("Retention sweep failed")
		} else {
			writeSweepSummary(a.stdout, sweep)
		}
	}

	if !f.DryRun {
		a.flushMetrics()
	}
	if result.HasFailures() {
		return errPartialFailure
	}
	return nil
}

func writeBackupSummary(w io.Writer, r *backup.Result) {
	ok := 0
	for _, art := range r.Artifacts {
		if art.Status == models.BackupFailed {
			continue
		}
		ok++
		_, _ = fmt.Fprintf(w, "%-8s %-24s %-10s %s\n", "ok", art.TenantID, art.Status, art.FileName)
	}
	for _, id := range r.Failed {
		_, _ = fmt.Fprintf(w, "%-8s %-24s %s\n", "failed", id, r.Errors[id])
	}
	_, _ = fmt.Fprintf(w, "%d succeeded, %d failed\n", ok, len(r.Failed))
}
