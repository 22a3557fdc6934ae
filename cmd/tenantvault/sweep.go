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

	"github.com/tomtom215/tenantvault/internal/backup"
)

func newSweepCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete backup artifacts older than their retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSweep(cmd.Context(), dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dryRun", false, "list expired artifacts without deleting them")
	return cmd
}

func (a *app) runSweep(ctx context.Context, dryRun bool) error {
	sweeper, err := a.sweeper(ctx, dryRun)
	if err != nil {
		return err
	}
	result, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	writeSweepSummary(a.stdout, result)
	if !dryRun {
		a.flushMetrics()
	}
	if len(result.Errors) > 0 {
		return errPartialFailure
	}
	return nil
}

func (a *app) sweeper(ctx context.Context, dryRun bool) (*backup.Sweeper, error) {
	meta, err := a.metadata()
	if err != nil {
		return nil, err
	}
	remote, err := a.objectStore(ctx)
	if err != nil {
		return nil, err
	}
	return backup.NewSweeper(meta, remote, a.cfg.Backup.Retention, dryRun), nil
}

func writeSweepSummary(w io.Writer, r *backup.SweepResult) {
	for _, id := range r.WouldDelete {
		_, _ = fmt.Fprintf(w, "would delete %s\n", id)
	}
	for _, e := range r.Errors {
		_, _ = fmt.Fprintf(w, "error: %s\n", e)
	}
	_, _ = fmt.Fprintf(w, "sweep: %d expired, %d deleted (%d local files, %d remote objects)\n",
		r.Expired, r.Deleted, r.LocalRemoved, r.RemoteRemoved)
}
