// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kind sentinels. Typed errors report Is(kind) == true for their own kind.
var (
	ErrTransfer   = errors.New("transfer error")
	ErrIntegrity  = errors.New("integrity error")
	ErrDriver     = errors.New("driver error")
	ErrValidation = errors.New("validation failure")
	ErrNotFound   = errors.New("not found")
)

// TransferError reports an object store failure.
type TransferError struct {
	Op       string // put, get, delete
	Location string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is matches ErrTransfer.
func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

// IntegrityError reports a checksum mismatch or an undecryptable archive.
type IntegrityError struct {
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("integrity check failed: %s: %v", e.Reason, e.Err)
	}
	return "integrity check failed: " + e.Reason
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Is matches ErrIntegrity.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// DriverError reports a dump/restore subprocess or SQL execution failure.
type DriverError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *DriverError) Error() string {
	msg := fmt.Sprintf("driver %s: %v", e.Op, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *DriverError) Unwrap() error { return e.Err }

// Is matches ErrDriver.
func (e *DriverError) Is(target error) bool { return target == ErrDriver }

// ValidationFailure reports tables that failed post-restore checks.
type ValidationFailure struct {
	Tables []string
}

func (e *ValidationFailure) Error() string {
	return "validation failed for tables: " + strings.Join(e.Tables, ", ")
}

// Is matches ErrValidation.
func (e *ValidationFailure) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Transfer wraps err as a TransferError.
func Transfer(op, location string, err error) error {
	return &TransferError{Op: op, Location: location, Err: err}
}

// Integrity builds an IntegrityError.
func Integrity(reason string, err error) error {
	return &IntegrityError{Reason: reason, Err: err}
}

// Driver wraps err as a DriverError with captured stderr.
func Driver(op, stderr string, err error) error {
	return &DriverError{Op: op, Stderr: stderr, Err: err}
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}
