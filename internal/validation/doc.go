// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package validation provides struct validation using go-playground/validator v10.
//
// Option structs for restores, deletions, exports and CLI flags carry
// `validate` tags and are checked with ValidateStruct before any work starts.
// The validator is a thread-safe singleton that caches struct information.
//
// # Custom Tags
//
//   - identifier: letters, digits and underscores, at most 63 characters
//     (tenant IDs, table names, columns)
//   - backuptype: full, incremental or snapshot
//   - deletiontype: hard, soft or anonymize
//
// # Example
//
//	type partialRequest struct {
//	    TenantID string   `validate:"required,identifier"`
//	    Tables   []string `validate:"required,min=1,dive,identifier"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    return verr
//	}
//
// # Field Names
//
// Messages name fields the way the caller spelled them: a `flag:"tenant"` tag
// reports as --tenant, a `json:"limit"` tag as limit, anything else by its Go
// field name.
//
// RequestValidationError.ToAPIError converts failures to the VALIDATION_ERROR
// payload of the HTTP API envelope.
package validation
