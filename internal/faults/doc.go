// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package faults defines the error taxonomy shared by the pipeline.
//
//	TransferError     - object store unreachable or rejected the request
//	IntegrityError    - checksum mismatch or decryption failure
//	DriverError       - dump/restore tool or SQL failure, with captured stderr
//	ValidationFailure - post-restore table check failed
//	NotFoundError     - referenced backup, tenant or request is absent
//
// Every typed error unwraps to its cause and also matches its kind sentinel,
// so callers can use either form:
//
//	var ie *faults.IntegrityError
//	if errors.As(err, &ie) { ... }
//	if errors.Is(err, faults.ErrIntegrity) { ... }
package faults
