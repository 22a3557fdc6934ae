// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tomtom215/tenantvault/internal/config"
)

// Store is implemented by every backend.
type Store interface {
	// Put uploads data under key and returns its location.
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) (string, error)
	// Get downloads the object at a location previously returned by Put.
	Get(ctx context.Context, location string) ([]byte, error)
	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, location string) error
	// Close releases backend resources.
	Close() error
}

// ObjectKey builds the remote key for an artifact.
func ObjectKey(backupType string, createdAt time.Time, tenantID, filename string) string {
	return path.Join("backups", backupType, createdAt.UTC().Format("2006/01/02"), tenantID, filename)
}

// ExportKey builds the remote key for a pre-deletion data export.
func ExportKey(tenantID, userID, filename string) string {
	return path.Join("exports", tenantID, userID, filename)
}

// Location is a parsed scheme://bucket/key locator.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

// String formats the location.
func (l Location) String() string {
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Key)
}

// ParseLocation splits a stored location into its parts.
func ParseLocation(loc string) (Location, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location %q: %w", loc, err)
	}
	if u.Scheme == "" {
		return Location{}, fmt.Errorf("location %q has no scheme", loc)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return Location{}, fmt.Errorf("location %q has no key", loc)
	}
	return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
}

// Open selects a backend from cfg.URL. It returns nil, nil when remote storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid storage url: %w", err)
	}

	if u.Scheme == "ftp" {
		return NewFTPStore(FTPOptions{
			Addr:     u.Host,
			Root:     u.Path,
			User:     cfg.FTPUser,
			Password: cfg.FTPPassword,
			Timeout:  cfg.Timeout,
		}), nil
	}
	return OpenBlobStore(ctx, cfg.URL)
}
