// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tomtom215/tenantvault/internal/faults"
)

// FTPOptions configures an FTPStore.
type FTPOptions struct {
	Addr     string // host:port
	Root     string // base directory on the server
	User     string
	Password string
	Timeout  time.Duration
}

// ftpConn is the subset of *ftp.ServerConn used by the store.
type ftpConn interface {
	Stor(path string, r io.Reader) error
	Fetch(path string) ([]byte, error)
	Delete(path string) error
	MakeDir(path string) error
	Quit() error
}

type dialFunc func(ctx context.Context, opts FTPOptions) (ftpConn, error)

// FTPStore stores archives on an FTP server. Each call uses its own control connection.
type FTPStore struct {
	opts FTPOptions
	dial dialFunc
}

// NewFTPStore creates an FTP backend.
func NewFTPStore(opts FTPOptions) *FTPStore {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Root == "" {
		opts.Root = "/"
	}
	return &FTPStore{opts: opts, dial: dialServer}
}

func dialServer(ctx context.Context, opts FTPOptions) (ftpConn, error) {
	c, err := ftp.Dial(opts.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(opts.Timeout))
	if err != nil {
		return nil, err
	}
	if err := c.Login(opts.User, opts.Password); err != nil {
		c.Quit() //nolint:errcheck // Best effort cleanup
		return nil, err
	}
	return &serverConn{c}, nil
}

type serverConn struct {
	*ftp.ServerConn
}

func (s *serverConn) Fetch(p string) ([]byte, error) {
	r, err := s.Retr(p)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck // Read errors are reported by ReadAll
	return io.ReadAll(r)
}

func (s *FTPStore) location(remotePath string) string {
	return "ftp://" + s.opts.Addr + "/" + strings.TrimPrefix(remotePath, "/")
}

// Put uploads data to Root/key, creating parent directories.
func (s *FTPStore) Put(ctx context.Context, key string, data []byte, _ map[string]string) (string, error) {
	remote := path.Join(s.opts.Root, key)
	loc := s.location(remote)

	conn, err := s.dial(ctx, s.opts)
	if err != nil {
		return "", faults.Transfer("put", loc, err)
	}
	defer conn.Quit() //nolint:errcheck // Best effort cleanup

	if err := makeDirs(conn, path.Dir(remote)); err != nil {
		return "", faults.Transfer("put", loc, err)
	}
	if err := conn.Stor(remote, bytes.NewReader(data)); err != nil {
		return "", faults.Transfer("put", loc, err)
	}
	return loc, nil
}

// Get downloads the file named by loc.
func (s *FTPStore) Get(ctx context.Context, loc string) ([]byte, error) {
	remote, err := s.remotePath(loc)
	if err != nil {
		return nil, err
	}

	conn, err := s.dial(ctx, s.opts)
	if err != nil {
		return nil, faults.Transfer("get", loc, err)
	}
	defer conn.Quit() //nolint:errcheck // Best effort cleanup

	data, err := conn.Fetch(remote)
	if err != nil {
		return nil, faults.Transfer("get", loc, err)
	}
	return data, nil
}

// Delete removes the file named by loc.
func (s *FTPStore) Delete(ctx context.Context, loc string) error {
	remote, err := s.remotePath(loc)
	if err != nil {
		return err
	}

	conn, err := s.dial(ctx, s.opts)
	if err != nil {
		return faults.Transfer("delete", loc, err)
	}
	defer conn.Quit() //nolint:errcheck // Best effort cleanup

	if err := conn.Delete(remote); err != nil && !isFileUnavailable(err) {
		return faults.Transfer("delete", loc, err)
	}
	return nil
}

// Close is a no-op; connections are per call.
func (s *FTPStore) Close() error { return nil }

func (s *FTPStore) remotePath(loc string) (string, error) {
	parsed, err := ParseLocation(loc)
	if err != nil {
		return "", faults.Transfer("resolve", loc, err)
	}
	if parsed.Scheme != "ftp" || parsed.Bucket != s.opts.Addr {
		return "", faults.Transfer("resolve", loc, fmt.Errorf("location is not served by ftp://%s", s.opts.Addr))
	}
	return "/" + parsed.Key, nil
}

// makeDirs creates every directory on the way to dir; existing ones are ignored.
func makeDirs(conn ftpConn, dir string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		if err := conn.MakeDir(current); err != nil && !isFileUnavailable(err) {
			return fmt.Errorf("mkdir %s: %w", current, err)
		}
	}
	return nil
}

// isFileUnavailable matches reply 550, used both for "exists" on MKD and "missing" on DELE.
func isFileUnavailable(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}
