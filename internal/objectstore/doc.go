// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package objectstore uploads and downloads archive blobs.
//
// Keys follow a deterministic layout:
//
//	backups/{backupType}/{yyyy/MM/dd}/{tenantId}/{filename}
//
// Put returns a fully-qualified location (scheme://bucket/key). Callers store
// that string verbatim and hand it back to Get or Delete; the store never
// rebuilds a location from the current configuration, so an artifact stays
// reachable after the configured bucket changes.
//
// Backends:
//
//	BlobStore - gocloud.dev/blob (s3://, gs://, file://, mem://)
//	FTPStore  - github.com/jlaffaye/ftp (ftp://)
//
// Every backend failure is returned as a *faults.TransferError.
package objectstore
