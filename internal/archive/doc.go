// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package archive implements the backup artifact codec.
//
// # Format
//
// Encoding is a fixed chain with no I/O:
//
//	raw dump bytes -> gzip -> [AES-256-CBC] -> archive bytes
//	                     \-> SHA-256 checksum (hex)
//
// The checksum covers the compressed, pre-encryption bytes. It is stored in
// the artifact metadata, not inside the archive.
//
// When a secret is configured the AES key is SHA-256(secret), each archive gets
// a fresh random 16-byte IV, plaintext is PKCS#7 padded, and the archive layout
// is IV || ciphertext. Without a secret the archive is the gzip stream itself.
//
// Decode never guesses: the caller passes the encrypted flag recorded on the
// artifact. Any checksum mismatch, padding error or gzip error is reported as a
// faults.IntegrityError and no bytes are returned.
package archive
