// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tenantvault/internal/export"
	"github.com/tomtom215/tenantvault/internal/logging"
)

type exportFlags struct {
	Tenant    string            `flag:"tenant" validate:"required,identifier"`
	Format    string            `flag:"format" validate:"required,oneof=csv json excel"`
	Tables    []string          `flag:"tables" validate:"omitempty,dive,identifier"`
	Filters   map[string]string `flag:"filter" validate:"omitempty,dive,keys,identifier,endkeys"`
	Out       string            `flag:"out" validate:"required"`
	Anonymize bool
}

func newExportCmd(a *app) *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tenant tables to files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExport(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.Tenant, "tenant", "", "tenant ID")
	cmd.Flags().StringVar(&f.Format, "format", string(export.FormatCSV), "output format: csv, json or excel")
	cmd.Flags().StringSliceVar(&f.Tables, "tables", nil, "tables to export (default: all)")
	cmd.Flags().StringToStringVar(&f.Filters, "filter", nil, "column=value equality filters")
	cmd.Flags().BoolVar(&f.Anonymize, "anonymize", false, "mask personal data columns")
	cmd.Flags().StringVar(&f.Out, "out", ".", "output directory")
	return cmd
}

func (a *app) runExport(ctx context.Context, f exportFlags) error {
	if err := usageCheck(&f); err != nil {
		return err
	}
	ctx = logging.ContextWithTenant(ctx, f.Tenant)

	exp, err := a.exporter(ctx)
	if err != nil {
		return err
	}
	files, err := exp.Export(ctx, f.Tenant, export.Options{
		Format:                export.Format(f.Format),
		Tables:                f.Tables,
		Filters:               f.Filters,
		AnonymizePersonalData: f.Anonymize,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.Out, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(f.Out, name+"."+export.Format(f.Format).Extension())
		if err := os.WriteFile(path, files[name], 0o600); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		_, _ = fmt.Fprintf(a.stdout, "%s (%d bytes)\n", path, len(files[name]))
	}
	return nil
}
