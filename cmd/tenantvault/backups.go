// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tomtom215/tenantvault/internal/models"
)

func newBackupsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Inspect backup artifacts",
	}

	var (
		tenantID string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's backup artifacts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := usageCheck(&struct {
				Tenant string `flag:"tenant" validate:"required,identifier"`
				Limit  int    `flag:"limit" validate:"min=0,max=10000"`
			}{tenantID, limit}); err != nil {
				return err
			}
			meta, err := a.metadata()
			if err != nil {
				return err
			}
			artifacts, err := meta.ListArtifacts(cmd.Context(), tenantID, limit)
			if err != nil {
				return fmt.Errorf("list backups: %w", err)
			}
			writeArtifactTable(a.stdout, artifacts)
			return nil
		},
	}
	list.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows (0 for all)")

	cmd.AddCommand(list)
	return cmd
}

func writeArtifactTable(w io.Writer, artifacts []models.BackupArtifact) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"ID", "Type", "Status", "Created", "Size", "Encrypted", "Location"})
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	for _, a := range artifacts {
		location := a.RemoteLocation
		if location == "" {
			location = a.LocalPath
		}
		tw.Append([]string{
			a.ID,
			string(a.Type),
			string(a.Status),
			a.CreatedAt.UTC().Format(time.RFC3339),
			humanBytes(a.CompressedSize),
			strconv.FormatBool(a.Encrypted),
			location,
		})
	}
	tw.Render()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
