// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/tenantvault/internal/archive"
	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

// mockDumper returns a fixed script per schema and tracks concurrency.
type mockDumper struct {
	delay    time.Duration
	failFor  map[string]error
	inflight atomic.Int32
	maxSeen  atomic.Int32

	mu    sync.Mutex
	calls []dumpCall
}

type dumpCall struct {
	schema      string
	incremental bool
	start, end  time.Time
}

func (m *mockDumper) Dump(_ context.Context, schema pgdriver.Schema, opts pgdriver.DumpOptions) ([]byte, error) {
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	start := time.Now()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.calls = append(m.calls, dumpCall{schema: schema.Name(), incremental: opts.Incremental, start: start, end: time.Now()})
	m.mu.Unlock()

	if err := m.failFor[schema.Name()]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("CREATE SCHEMA %s;\nCREATE TABLE %s.users (id int);\n", schema.Name(), schema.Name())), nil
}

func (m *mockDumper) call(schema string) (dumpCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c.schema == schema {
			return c, true
		}
	}
	return dumpCall{}, false
}

// mockArtifactStore is an in-memory ArtifactStore and ExpiryStore.
type mockArtifactStore struct {
	mu        sync.Mutex
	artifacts map[string]models.BackupArtifact
	saveErr   error
	deleteErr map[string]error
}

func newMockArtifactStore() *mockArtifactStore {
	return &mockArtifactStore{artifacts: make(map[string]models.BackupArtifact)}
}

func (s *mockArtifactStore) SaveArtifact(_ context.Context, a *models.BackupArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.artifacts[a.ID] = *a
	return nil
}

func (s *mockArtifactStore) ListExpired(_ context.Context, t models.BackupType, cutoff time.Time) ([]models.BackupArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BackupArtifact
	for _, a := range s.artifacts {
		if a.Type == t && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *mockArtifactStore) DeleteArtifact(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[id]; err != nil {
		return err
	}
	delete(s.artifacts, id)
	return nil
}

func (s *mockArtifactStore) byTenant(tenantID string) []models.BackupArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BackupArtifact
	for _, a := range s.artifacts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out
}

// mockRemote is an in-memory objectstore.Store.
type mockRemote struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newMockRemote() *mockRemote {
	return &mockRemote{objects: make(map[string][]byte)}
}

func (r *mockRemote) Put(_ context.Context, key string, data []byte, _ map[string]string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc := "mem://backups/" + key
	if r.putErr != nil {
		return "", faults.Transfer("put", loc, r.putErr)
	}
	r.objects[loc] = append([]byte(nil), data...)
	return loc, nil
}

func (r *mockRemote) Get(_ context.Context, loc string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.objects[loc]
	if !ok {
		return nil, faults.Transfer("get", loc, errors.New("not found"))
	}
	return data, nil
}

func (r *mockRemote) Delete(_ context.Context, loc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, loc)
	r.deleted = append(r.deleted, loc)
	return nil
}

func (r *mockRemote) Close() error { return nil }

func newTestCodec(t *testing.T, secret string) *archive.Codec {
	t.Helper()
	c, err := archive.New(archive.Options{Secret: secret})
	if err != nil {
		t.Fatal(err)
	}
	return c
}
