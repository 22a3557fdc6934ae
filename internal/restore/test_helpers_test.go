// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package restore

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gocloud.dev/blob/memblob"

	"github.com/tomtom215/tenantvault/internal/archive"
	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/objectstore"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

var (
	createSchemaRe = regexp.MustCompile(`(?m)^CREATE SCHEMA (\w+);`)
	createTableRe  = regexp.MustCompile(`(?m)^CREATE TABLE (\w+)\.(\w+) \(.*\); -- rows=(\d+)$`)
)

// mockDriver models schemas as table name to row count. RestoreFromFile
// understands the tiny script dialect produced by dumpScript.
type mockDriver struct {
	mu       sync.Mutex
	schemas  map[string]map[string]int64
	scripts  []string
	dropped  []string
	loadErr  error
	copyErr  map[string]error
	restored int
	// reattached lists live tables whose sequences were reattached, in order.
	reattached []string
}

func newMockDriver() *mockDriver {
	return &mockDriver{schemas: make(map[string]map[string]int64), copyErr: make(map[string]error)}
}

func (d *mockDriver) seed(schema string, tables map[string]int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemas[schema] = make(map[string]int64)
	for t, n := range tables {
		d.schemas[schema][t] = n
	}
}

func (d *mockDriver) rows(schema, table string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.schemas[schema][table]
	return n, ok
}

func (d *mockDriver) tableNames(schema string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for t := range d.schemas[schema] {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

func (d *mockDriver) RestoreFromFile(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, path)
	if d.loadErr != nil {
		return d.loadErr
	}
	data, err := os.ReadFile(path) //nolint:gosec // test fixture
	if err != nil {
		return err
	}
	for _, m := range createSchemaRe.FindAllStringSubmatch(string(data), -1) {
		if _, ok := d.schemas[m[1]]; ok {
			return faults.Driver("psql", fmt.Sprintf("schema %q already exists", m[1]), fmt.Errorf("exit status 3"))
		}
		d.schemas[m[1]] = make(map[string]int64)
	}
	for _, m := range createTableRe.FindAllStringSubmatch(string(data), -1) {
		n, _ := strconv.ParseInt(m[3], 10, 64)
		if d.schemas[m[1]] == nil {
			d.schemas[m[1]] = make(map[string]int64)
		}
		d.schemas[m[1]][m[2]] = n
	}
	d.restored++
	return nil
}

func (d *mockDriver) DropSchema(_ context.Context, s pgdriver.Schema) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.schemas, s.Name())
	d.dropped = append(d.dropped, s.Name())
	return nil
}

func (d *mockDriver) Tables(_ context.Context, s pgdriver.Schema) ([]pgdriver.Table, error) {
	var out []pgdriver.Table
	for _, name := range d.tableNames(s.Name()) {
		t, err := s.Table(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (d *mockDriver) TableExists(_ context.Context, t pgdriver.Table) (bool, error) {
	_, ok := d.rows(t.Schema().Name(), t.Name())
	return ok, nil
}

func (d *mockDriver) CountRows(_ context.Context, t pgdriver.Table) (int64, error) {
	n, ok := d.rows(t.Schema().Name(), t.Name())
	if !ok {
		return 0, faults.Driver("count rows", `relation does not exist`, fmt.Errorf("%s", t))
	}
	return n, nil
}

func (d *mockDriver) RenameTable(_ context.Context, t pgdriver.Table, newName string) (pgdriver.Table, error) {
	renamed, err := t.Renamed(newName)
	if err != nil {
		return pgdriver.Table{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	tables := d.schemas[t.Schema().Name()]
	n, ok := tables[t.Name()]
	if !ok {
		return pgdriver.Table{}, faults.Driver("rename table", "relation does not exist", fmt.Errorf("%s", t))
	}
	delete(tables, t.Name())
	tables[newName] = n
	return renamed, nil
}

func (d *mockDriver) CloneTable(_ context.Context, src, dst pgdriver.Table) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.schemas[src.Schema().Name()][src.Name()]; !ok {
		return faults.Driver("clone table", "relation does not exist", fmt.Errorf("%s", src))
	}
	if _, ok := d.schemas[dst.Schema().Name()][dst.Name()]; !ok {
		d.schemas[dst.Schema().Name()][dst.Name()] = 0
	}
	return nil
}

func (d *mockDriver) CopyRows(_ context.Context, src, dst pgdriver.Table) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.copyErr[dst.Name()]; err != nil {
		return 0, err
	}
	n := d.schemas[src.Schema().Name()][src.Name()]
	d.schemas[dst.Schema().Name()][dst.Name()] += n
	return n, nil
}

func (d *mockDriver) ReattachSequences(_ context.Context, staged, live pgdriver.Table) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.schemas[staged.Schema().Name()][staged.Name()]; !ok {
		return nil, faults.Driver("reattach sequence", "staging table is gone", fmt.Errorf("%s", staged))
	}
	d.reattached = append(d.reattached, live.String())
	return []string{"id"}, nil
}

// mockStore keeps artifacts and restore operations in memory.
type mockStore struct {
	mu        sync.Mutex
	artifacts map[string]models.BackupArtifact
	restores  map[string]models.RestoreOperation
}

func newMockStore() *mockStore {
	return &mockStore{artifacts: make(map[string]models.BackupArtifact), restores: make(map[string]models.RestoreOperation)}
}

func (s *mockStore) GetArtifact(_ context.Context, id string) (*models.BackupArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, faults.NotFound("backup", id)
	}
	return &a, nil
}

func (s *mockStore) SaveRestore(_ context.Context, op *models.RestoreOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *op
	cp.Migrations = append([]models.TableMigration(nil), op.Migrations...)
	s.restores[op.ID] = cp
	return nil
}

func (s *mockStore) ListRestores(_ context.Context, tenantID string) ([]models.RestoreOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RestoreOperation
	for _, op := range s.restores {
		if op.TenantID == tenantID {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

type testEnv struct {
	driver  *mockDriver
	store   *mockStore
	remote  *objectstore.BlobStore
	codec   *archive.Codec
	tempDir string
	orch    *Orchestrator
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codec, err := archive.New(archive.Options{Secret: "restore-secret"})
	if err != nil {
		t.Fatal(err)
	}
	remote := objectstore.NewBlobStore(memblob.OpenBucket(nil), "mem", "backups")
	t.Cleanup(func() { remote.Close() })

	env := &testEnv{
		driver:  newMockDriver(),
		store:   newMockStore(),
		remote:  remote,
		codec:   codec,
		tempDir: t.TempDir(),
		now:     time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
	}
	env.orch = NewOrchestrator(env.driver, codec, remote, env.store, NewLocalLocker(), Config{TempDir: env.tempDir})
	env.orch.now = func() time.Time { return env.now }
	return env
}

// dumpScript renders a schema the way mockDriver.RestoreFromFile reads it.
func dumpScript(schema string, tables map[string]int64) []byte {
	names := make([]string, 0, len(tables))
	for t := range tables {
		names = append(names, t)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE SCHEMA %s;\n", schema)
	for _, t := range names {
		fmt.Fprintf(&b, "CREATE TABLE %s.%s (id int); -- rows=%d\n", schema, t, tables[t])
	}
	return []byte(b.String())
}

// addArtifact encodes a dump, uploads it and records a completed artifact.
func (e *testEnv) addArtifact(t *testing.T, id, tenantID string, tables map[string]int64) models.BackupArtifact {
	t.Helper()

	res, err := e.codec.Encode(dumpScript("tenant_"+tenantID, tables))
	if err != nil {
		t.Fatal(err)
	}
	loc, err := e.remote.Put(context.Background(), "backups/full/2026/10/13/"+tenantID+"/"+id+".sql.gz.enc", res.Data, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := models.BackupArtifact{
		ID:             id,
		TenantID:       tenantID,
		Type:           models.BackupFull,
		Status:         models.BackupCompleted,
		Checksum:       res.Checksum,
		Encrypted:      res.Encrypted,
		RemoteLocation: loc,
		CreatedAt:      e.now.Add(-24 * time.Hour),
	}
	e.store.artifacts[id] = a
	return a
}

func (e *testEnv) assertTempDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned up: %d entries left", len(entries))
	}
}
