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
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/validation"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errPartialFailure marks a run that completed but had failed units.
var errPartialFailure = errors.New("one or more units failed")

// loadConfig is swapped in tests.
var loadConfig = config.Load

func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		logging.Warn().Err(cerr).Msg("Failed to release resources")
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errPartialFailure):
		return exitFailure
	case isUsageError(err):
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return exitFailure
	}
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func isUsageError(err error) bool {
	var u *usageError
	return errors.As(err, &u)
}

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// usageCheck validates a flag struct and reports failures as usage errors.
func usageCheck(flags any) error {
	if verr := validation.ValidateStruct(flags); verr != nil {
		return &usageError{err: verr}
	}
	return nil
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout}
	var configPath string

	root := &cobra.Command{
		Use:           "tenantvault",
		Short:         "Tenant data protection: backups, restores and GDPR erasure",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return &usageError{err: err}
			}
			a.cfg = cfg
			logging.Init(logging.Config{
				Level:     cfg.Logging.Level,
				Format:    cfg.Logging.Format,
				Caller:    cfg.Logging.Caller,
				Timestamp: true,
				Command:   strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" "),
				Secrets:   cfg.Secrets(),
				Output:    stderr,
			})
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newBackupCmd(a),
		newRestoreCmd(a),
		newSweepCmd(a),
		newGDPRCmd(a),
		newBackupsCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root, a
}
