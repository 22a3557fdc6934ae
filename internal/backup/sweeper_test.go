// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/models"
)

func defaultRetention() config.RetentionConfig {
	return config.RetentionConfig{FullDays: 30, IncrementalDays: 7, SnapshotDays: 90}
}

func TestSweep_RetentionBoundaries(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	store := newMockArtifactStore()

	add := func(id string, typ models.BackupType, ageDays int) string {
		path := filepath.Join(dir, id+".sql.gz")
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		store.artifacts[id] = models.BackupArtifact{
			ID: id, TenantID: "t1", Type: typ, Status: models.BackupCompleted,
			LocalPath: path, RemoteLocation: "mem://backups/" + id,
			CreatedAt: now.AddDate(0, 0, -ageDays),
		}
		return path
	}

	oldFull := add("full-31", models.BackupFull, 31)
	youngFull := add("full-29", models.BackupFull, 29)
	add("incr-8", models.BackupIncremental, 8)
	add("incr-6", models.BackupIncremental, 6)
	add("snap-91", models.BackupSnapshot, 91)
	add("snap-89", models.BackupSnapshot, 89)

	remote := newMockRemote()
	s := NewSweeper(store, remote, defaultRetention(), false)
	s.now = func() time.Time { return now }

	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Deleted != 3 || res.LocalRemoved != 3 {
		t.Errorf("result = %+v", res)
	}
	for _, id := range []string{"full-29", "incr-6", "snap-89"} {
		if _, ok := store.artifacts[id]; !ok {
			t.Errorf("%s should be kept", id)
		}
	}
	for _, id := range []string{"full-31", "incr-8", "snap-91"} {
		if _, ok := store.artifacts[id]; ok {
			t.Errorf("%s should be swept", id)
		}
	}
	if _, err := os.Stat(oldFull); !os.IsNotExist(err) {
		t.Error("expired local file not removed")
	}
	if _, err := os.Stat(youngFull); err != nil {
		t.Error("retained local file removed")
	}
	if len(remote.deleted) != 0 || res.RemoteRemoved != 0 {
		t.Error("remote objects must be kept unless DeleteRemote is set")
	}
}

func TestSweep_DeleteRemoteOptIn(t *testing.T) {
	now := time.Now()
	store := newMockArtifactStore()
	store.artifacts["a"] = models.BackupArtifact{ID: "a", Type: models.BackupFull, RemoteLocation: "mem://backups/a", CreatedAt: now.AddDate(0, 0, -60)}

	retention := defaultRetention()
	retention.DeleteRemote = true
	remote := newMockRemote()
	s := NewSweeper(store, remote, retention, false)

	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.RemoteRemoved != 1 || len(remote.deleted) != 1 || remote.deleted[0] != "mem://backups/a" {
		t.Errorf("remote deletions = %v", remote.deleted)
	}
}

func TestSweep_BestEffort(t *testing.T) {
	now := time.Now()
	store := newMockArtifactStore()
	store.artifacts["gone"] = models.BackupArtifact{ID: "gone", Type: models.BackupFull, LocalPath: "/nonexistent/file.sql.gz", CreatedAt: now.AddDate(0, 0, -40)}
	store.artifacts["stuck"] = models.BackupArtifact{ID: "stuck", Type: models.BackupFull, CreatedAt: now.AddDate(0, 0, -41)}
	store.deleteErr = map[string]error{"stuck": errors.New("db locked")}

	res, err := NewSweeper(store, nil, defaultRetention(), false).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Deleted != 1 || len(res.Errors) != 1 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := store.artifacts["gone"]; ok {
		t.Error("missing local file must not block metadata deletion")
	}
}

func TestSweep_DryRun(t *testing.T) {
	store := newMockArtifactStore()
	store.artifacts["a"] = models.BackupArtifact{ID: "a", Type: models.BackupIncremental, CreatedAt: time.Now().AddDate(0, 0, -10)}

	res, err := NewSweeper(store, nil, defaultRetention(), true).Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.WouldDelete) != 1 || res.Deleted != 0 || len(store.artifacts) != 1 {
		t.Errorf("dry run result = %+v", res)
	}
}
