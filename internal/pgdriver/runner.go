// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package pgdriver

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tomtom215/tenantvault/internal/faults"
)

// Command describes one subprocess invocation.
type Command struct {
	Path string
	Args []string
	// Env entries are appended to the inherited environment.
	Env []string
}

// Runner executes a Command and returns its stdout.
// Implementations return a *faults.DriverError carrying stderr on failure.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	//nolint:gosec // G204: binary paths come from operator configuration, args are built from validated identifiers
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, faults.Driver(filepath.Base(c.Path), stderr.String(), err)
	}
	return stdout.Bytes(), nil
}
