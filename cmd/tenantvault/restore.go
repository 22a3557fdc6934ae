// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
	"github.com/tomtom215/tenantvault/internal/restore"
)

type restoreFlags struct {
	Tenant     string   `flag:"tenant" validate:"required,identifier"`
	Backup     string   `flag:"backup" validate:"required,max=64"`
	Tables     []string `flag:"tables" validate:"omitempty,dive,identifier"`
	DropSchema bool
	Validate   bool
}

func newRestoreCmd(a *app) *cobra.Command {
	var f restoreFlags

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a tenant schema, or selected tables, from a backup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRestore(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.Tenant, "tenant", "", "tenant ID")
	cmd.Flags().StringVar(&f.Backup, "backup", "", "backup artifact ID")
	cmd.Flags().StringSliceVar(&f.Tables, "tables", nil, "restore only these tables (comma-separated)")
	cmd.Flags().BoolVar(&f.DropSchema, "drop-schema", false, "drop the live schema before a full restore")
	cmd.Flags().BoolVar(&f.Validate, "validate", true, "count rows of every restored table")
	return cmd
}

func (a *app) runRestore(ctx context.Context, f restoreFlags) error {
	if err := usageCheck(&f); err != nil {
		return err
	}
	ctx = logging.ContextWithTenant(logging.ContextWithNewCorrelationID(ctx), f.Tenant)

	registry, err := pgdriver.NewRegistry(a.cfg.Restore.Tables...)
	if err != nil {
		return usagef("restore.tables: %w", err)
	}

	meta, err := a.metadata()
	if err != nil {
		return err
	}
	driver, _, err := a.database(ctx)
	if err != nil {
		return err
	}
	// Partial restores issue several statements that must share one session.
	pinned, release, err := driver.Pinned(ctx)
	if err != nil {
		return err
	}
	a.onClose(release)

	codec, err := a.archiveCodec()
	if err != nil {
		return err
	}
	remote, err := a.objectStore(ctx)
	if err != nil {
		return err
	}
	locker, closeLock, err := restore.NewLocker(ctx, a.cfg.Restore.Lock)
	if err != nil {
		return err
	}
	a.onClose(closeLock)

	orch := restore.NewOrchestrator(pinned, codec, remote, meta, locker, restore.Config{
		TempDir:  a.cfg.Restore.TempDir,
		Registry: registry,
	})
	opts := restore.Options{
		DropExistingSchema:   f.DropSchema,
		ValidateAfterRestore: f.Validate,
	}

	var result *restore.Result
	if len(f.Tables) > 0 {
		result, err = orch.RestorePartial(ctx, f.Tenant, f.Backup, f.Tables, opts)
	} else {
		result, err = orch.RestoreFull(ctx, f.Tenant, f.Backup, opts)
	}
	if result != nil {
		writeRestoreSummary(a.stdout, result)
		a.dispatch(ctx, result.Events)
	}
	a.flushMetrics()
	return err
}

func writeRestoreSummary(w io.Writer, r *restore.Result) {
	if r.RestoreOperation == nil {
		return
	}
	for _, v := range r.ValidationResults {
		status := "valid"
		if !v.Valid {
			status = "invalid " + v.Error
		}
		_, _ = fmt.Fprintf(w, "%-32s %10d  %s\n", v.Table, v.RecordCount, status)
	}
	outcome := "succeeded"
	if !r.Success {
		outcome = "failed: " + r.ErrorMessage
	}
	_, _ = fmt.Fprintf(w, "restore %s (%s) %s in %.1fs\n", r.ID, r.Mode, outcome, r.DurationSeconds)
}
