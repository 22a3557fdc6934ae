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
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tomtom215/tenantvault/internal/gdpr"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/validation"
)

func newGDPRCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gdpr",
		Short: "Right-to-erasure requests",
	}
	cmd.AddCommand(newGDPRDeleteCmd(a), newGDPRPurgeCmd(a))
	return cmd
}

func newGDPRDeleteCmd(a *app) *cobra.Command {
	var (
		userID, tenantID, deletionType string
		opts                           gdpr.Options
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete, soft-delete or anonymize one user's data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Type = models.DeletionType(deletionType)
			return a.runGDPRDelete(cmd.Context(), userID, tenantID, opts)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	cmd.Flags().StringVar(&deletionType, "type", string(models.DeletionSoft), "deletion type: hard, soft or anonymize")
	cmd.Flags().IntVar(&opts.RetentionPeriodDays, "retention-days", 0, "soft-delete grace period in days (default from config)")
	cmd.Flags().BoolVar(&opts.ExportBeforeDeletion, "export", false, "export the user's data before deleting")
	cmd.Flags().BoolVar(&opts.NotifyUser, "notify-user", false, "notify the user when done")
	cmd.Flags().BoolVar(&opts.NotifyAdmin, "notify-admin", false, "notify administrators when done")
	return cmd
}

func (a *app) runGDPRDelete(ctx context.Context, userID, tenantID string, opts gdpr.Options) error {
	ctx = logging.ContextWithTenant(logging.ContextWithNewCorrelationID(ctx), tenantID)

	engine, err := a.gdprEngine(ctx)
	if err != nil {
		return err
	}
	result, err := engine.DeleteUserData(ctx, userID, tenantID, opts)
	if result != nil {
		writeDeletionSummary(a.stdout, result)
		a.dispatch(ctx, result.Events)
	}
	a.flushMetrics()

	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		return &usageError{err: verr}
	}
	return err
}

func newGDPRPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Hard-delete soft-deleted users whose grace period has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGDPRPurge(cmd.Context())
		},
	}
}

func (a *app) runGDPRPurge(ctx context.Context) error {
	engine, err := a.gdprEngine(ctx)
	if err != nil {
		return err
	}
	result, err := engine.ProcessPendingDeletions(logging.ContextWithNewCorrelationID(ctx))
	if result != nil {
		_, _ = fmt.Fprintf(a.stdout, "purge: %d purged, %d failed\n", len(result.Purged), len(result.Failed))
		for id, msg := range result.Failed {
			_, _ = fmt.Fprintf(a.stdout, "  %s: %s\n", id, msg)
		}
		a.dispatch(ctx, result.Events)
	}
	a.flushMetrics()
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return errPartialFailure
	}
	return nil
}

func writeDeletionSummary(w io.Writer, r *gdpr.DeletionResult) {
	req := r.Request
	_, _ = fmt.Fprintf(w, "request %s: %s %s for user %s in tenant %s\n",
		req.ID, req.DeletionType, req.Status, req.UserID, req.TenantID)
	if req.ScheduledPurgeDate != nil {
		_, _ = fmt.Fprintf(w, "purge scheduled for %s\n", req.ScheduledPurgeDate.Format("2006-01-02 15:04 MST"))
	}
	if req.ErrorMessage != "" {
		_, _ = fmt.Fprintf(w, "error: %s\n", req.ErrorMessage)
	}
	if len(r.Affected) == 0 && len(r.Skipped) == 0 {
		return
	}

	tables := make([]string, 0, len(r.Affected)+len(r.Skipped))
	for t := range r.Affected {
		tables = append(tables, t)
	}
	for t := range r.Skipped {
		if _, ok := r.Affected[t]; !ok {
			tables = append(tables, t)
		}
	}
	sort.Strings(tables)

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Table", "Rows", "Skipped"})
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	for _, t := range tables {
		tw.Append([]string{t, strconv.FormatInt(r.Affected[t], 10), r.Skipped[t]})
	}
	tw.Render()
}
