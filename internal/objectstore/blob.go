// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// URLs
	_ "gocloud.dev/blob/gcsblob"  // gs:// URLs
	_ "gocloud.dev/blob/memblob"  // mem:// URLs
	_ "gocloud.dev/blob/s3blob"   // s3:// URLs
	"gocloud.dev/gcerrors"

	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/logging"
)

// BlobStore stores archives in a gocloud.dev bucket.
//
// Locations written by another bucket of the same scheme (for example after
// the configured S3 bucket was renamed) are opened on demand with the
// configured query parameters, so region and endpoint settings carry over.
type BlobStore struct {
	prefix string // scheme://bucket/
	scheme string
	query  string
	bucket *blob.Bucket

	mu     sync.Mutex
	others map[string]*blob.Bucket
	open   func(ctx context.Context, urlstr string) (*blob.Bucket, error)
}

// OpenBlobStore opens the bucket URL, for example s3://school-backups?region=eu-central-1.
func OpenBlobStore(ctx context.Context, rawURL string) (*BlobStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bucket url: %w", err)
	}

	b, err := blob.OpenBucket(ctx, rawURL)
	if err != nil {
		return nil, faults.Transfer("open", rawURL, err)
	}

	s := NewBlobStore(b, u.Scheme, bucketLabel(u))
	s.query = u.RawQuery
	return s, nil
}

// NewBlobStore wraps an already opened bucket. name is the bucket part of locations.
func NewBlobStore(b *blob.Bucket, scheme, name string) *BlobStore {
	return &BlobStore{
		prefix: fmt.Sprintf("%s://%s/", scheme, name),
		scheme: scheme,
		bucket: b,
		others: make(map[string]*blob.Bucket),
		open:   blob.OpenBucket,
	}
}

// bucketLabel is the host for network buckets and the directory for file://.
func bucketLabel(u *url.URL) string {
	if u.Scheme == "file" {
		return strings.TrimSuffix(u.Path, "/")
	}
	return u.Host
}

// Put uploads data and returns scheme://bucket/key.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) (string, error) {
	loc := s.prefix + key
	opts := &blob.WriterOptions{
		ContentType: "application/octet-stream",
		Metadata:    metadata,
	}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return "", faults.Transfer("put", loc, err)
	}
	logging.Ctx(ctx).Debug().Str("location", loc).Int("bytes", len(data)).Msg("Uploaded object")
	return loc, nil
}

// Get downloads the object at loc.
func (s *BlobStore) Get(ctx context.Context, loc string) ([]byte, error) {
	b, key, err := s.resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	data, err := b.ReadAll(ctx, key)
	if err != nil {
		return nil, faults.Transfer("get", loc, err)
	}
	return data, nil
}

// Delete removes the object at loc.
func (s *BlobStore) Delete(ctx context.Context, loc string) error {
	b, key, err := s.resolve(ctx, loc)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return faults.Transfer("delete", loc, err)
	}
	return nil
}

// Close closes every opened bucket.
func (s *BlobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	firstErr := s.bucket.Close()
	for _, b := range s.others {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *BlobStore) resolve(ctx context.Context, loc string) (*blob.Bucket, string, error) {
	if key, ok := strings.CutPrefix(loc, s.prefix); ok && key != "" {
		return s.bucket, key, nil
	}

	parsed, err := ParseLocation(loc)
	if err != nil {
		return nil, "", faults.Transfer("resolve", loc, err)
	}
	if parsed.Scheme != s.scheme || parsed.Scheme == "file" || parsed.Scheme == "mem" {
		return nil, "", faults.Transfer("resolve", loc, fmt.Errorf("location is not served by %s", s.prefix))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucketURL := parsed.Scheme + "://" + parsed.Bucket
	if b, ok := s.others[bucketURL]; ok {
		return b, parsed.Key, nil
	}

	urlstr := bucketURL
	if s.query != "" {
		urlstr += "?" + s.query
	}
	b, err := s.open(ctx, urlstr)
	if err != nil {
		return nil, "", faults.Transfer("open", bucketURL, err)
	}
	s.others[bucketURL] = b
	return b, parsed.Key, nil
}
