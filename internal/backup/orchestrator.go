// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
orchestrator.go - Backup Orchestrator

BackupOne runs the sequential dump, encode, write, upload, persist chain for a
single tenant. BackupMany bounds concurrency by processing fixed-size chunks.

Terminal outcomes, completed or failed, are persisted before BackupOne returns.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tomtom215/tenantvault/internal/archive"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/notify"
	"github.com/tomtom215/tenantvault/internal/objectstore"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

// DefaultMaxParallel is the chunk size used when Options.MaxParallel is unset.
const DefaultMaxParallel = 3

// Dumper produces a plain SQL dump of one schema.
type Dumper interface {
	Dump(ctx context.Context, schema pgdriver.Schema, opts pgdriver.DumpOptions) ([]byte, error)
}

// Encoder turns a dump into archive bytes.
type Encoder interface {
	Encode(raw []byte) (*archive.Result, error)
}

// ArtifactStore persists artifact metadata.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, a *models.BackupArtifact) error
}

// Tenant identifies a backup target.
type Tenant struct {
	ID   string
	Plan string
}

// Options configures an Orchestrator.
type Options struct {
	// Dir receives the local artifact files.
	Dir string
	// MaxParallel is the chunk size of BackupMany.
	MaxParallel int
	// DryRun logs intended actions and returns pending artifacts without
	// dumping, writing or uploading anything.
	DryRun bool
}

// Orchestrator sequences backups.
type Orchestrator struct {
	dumper  Dumper
	encoder Encoder
	remote  objectstore.Store
	store   ArtifactStore
	opts    Options
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator. remote may be nil, in which case
// artifacts are complete once the local file is written.
func NewOrchestrator(dumper Dumper, encoder Encoder, remote objectstore.Store, store ArtifactStore, opts Options) *Orchestrator {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	return &Orchestrator{
		dumper:  dumper,
		encoder: encoder,
		remote:  remote,
		store:   store,
		opts:    opts,
		now:     time.Now,
	}
}

// Result is the outcome of a batch.
type Result struct {
	Artifacts []*models.BackupArtifact
	// Failed lists tenant IDs in input order.
	Failed []string
	Errors map[string]string
	// Events awaits delivery by a notify.Dispatcher.
	Events []notify.Event
}

// HasFailures reports whether any tenant failed.
func (r *Result) HasFailures() bool { return len(r.Failed) > 0 }

// BackupOne backs up one tenant. The returned artifact is non-nil whenever the
// tenant ID was valid, also on failure, and reflects the persisted state.
func (o *Orchestrator) BackupOne(ctx context.Context, tenant Tenant, backupType models.BackupType) (*models.BackupArtifact, error) {
	if !backupType.Valid() {
		return nil, fmt.Errorf("unknown backup type %q", backupType)
	}
	schema, err := pgdriver.TenantSchema(tenant.ID)
	if err != nil {
		return nil, err
	}

	ctx = logging.ContextWithTenant(ctx, tenant.ID)
	log := logging.Ctx(ctx)
	start := o.now()

	createdAt := start.UTC()
	artifact := &models.BackupArtifact{
		ID:        ulid.Make().String(),
		TenantID:  tenant.ID,
		Plan:      tenant.Plan,
		Type:      backupType,
		Status:    models.BackupPending,
		CreatedAt: createdAt,
	}

	if o.opts.DryRun {
		artifact.FileName = FileName(tenant.ID, backupType, createdAt, true, false)
		log.Info().
			Str("schema", schema.Name()).
			Str("backup_type", string(backupType)).
			Str("file", artifact.FileName).
			Bool("upload", o.remote != nil).
			Msg("Dry run: would back up tenant")
		return artifact, nil
	}

	raw, err := o.dumper.Dump(ctx, schema, pgdriver.DumpOptions{Incremental: backupType == models.BackupIncremental})
	if err != nil {
		return o.fail(ctx, artifact, start, fmt.Errorf("dump: %w", err))
	}
	artifact.OriginalSize = int64(len(raw))

	res, err := o.encoder.Encode(raw)
	if err != nil {
		return o.fail(ctx, artifact, start, fmt.Errorf("encode: %w", err))
	}

	artifact.FileName = FileName(tenant.ID, backupType, createdAt, true, res.Encrypted)
	artifact.CompressedSize = res.CompressedSize
	artifact.Checksum = res.Checksum
	artifact.Encrypted = res.Encrypted

	localPath, err := o.writeLocal(artifact.FileName, res.Data)
	if err != nil {
		return o.fail(ctx, artifact, start, err)
	}
	artifact.LocalPath = localPath

	if o.remote != nil {
		key := objectstore.ObjectKey(string(backupType), createdAt, tenant.ID, artifact.FileName)
		loc, err := o.remote.Put(ctx, key, res.Data, map[string]string{
			"tenant_id":   tenant.ID,
			"backup_type": string(backupType),
			"checksum":    res.Checksum,
		})
		if err != nil {
			metrics.RecordObjectStoreError("put")
			return o.fail(ctx, artifact, start, err)
		}
		artifact.RemoteLocation = loc
	}

	completed := o.now().UTC()
	artifact.Status = models.BackupCompleted
	artifact.CompletedAt = &completed

	if err := o.store.SaveArtifact(ctx, artifact); err != nil {
		artifact.Status = models.BackupFailed
		artifact.ErrorMessage = err.Error()
		metrics.RecordBackup(string(backupType), string(models.BackupFailed), o.now().Sub(start), artifact.OriginalSize, artifact.CompressedSize)
		return artifact, fmt.Errorf("persist artifact: %w", err)
	}

	metrics.RecordBackup(string(backupType), string(artifact.Status), o.now().Sub(start), artifact.OriginalSize, artifact.CompressedSize)
	log.Info().
		Str("backup_id", artifact.ID).
		Str("backup_type", string(backupType)).
		Int64("original_bytes", artifact.OriginalSize).
		Int64("compressed_bytes", artifact.CompressedSize).
		Bool("encrypted", artifact.Encrypted).
		Str("location", artifact.RemoteLocation).
		Msg("Backup completed")
	return artifact, nil
}

// fail marks the artifact failed, persists it and returns cause.
func (o *Orchestrator) fail(ctx context.Context, artifact *models.BackupArtifact, start time.Time, cause error) (*models.BackupArtifact, error) {
	artifact.Status = models.BackupFailed
	artifact.ErrorMessage = cause.Error()

	logging.Ctx(ctx).Error().Err(cause).
		Str("backup_id", artifact.ID).
		Str("backup_type", string(artifact.Type)).
		Msg("Backup failed")

	metrics.RecordBackup(string(artifact.Type), string(models.BackupFailed), o.now().Sub(start), artifact.OriginalSize, artifact.CompressedSize)

	if err := o.store.SaveArtifact(ctx, artifact); err != nil {
		return artifact, errors.Join(cause, fmt.Errorf("persist failed artifact: %w", err))
	}
	return artifact, cause
}

func (o *Orchestrator) writeLocal(name string, data []byte) (string, error) {
	if err := os.MkdirAll(o.opts.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	path := filepath.Join(o.opts.Dir, name)
	tmp := path + ".tmp-" + ulid.Make().String()

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		os.Remove(tmp) //nolint:errcheck,gosec // Best effort cleanup
		return "", fmt.Errorf("write backup file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck,gosec // Best effort cleanup
		return "", fmt.Errorf("finalize backup file: %w", err)
	}
	return path, nil
}

// BackupMany backs up tenants in sequential chunks of MaxParallel.
func (o *Orchestrator) BackupMany(ctx context.Context, tenants []Tenant, backupType models.BackupType) *Result {
	result := &Result{
		Artifacts: make([]*models.BackupArtifact, 0, len(tenants)),
		Errors:    make(map[string]string),
	}
	failedAt := make([]bool, len(tenants))
	artifacts := make([]*models.BackupArtifact, len(tenants))

	chunk := o.opts.MaxParallel
	for startIdx := 0; startIdx < len(tenants); startIdx += chunk {
		end := startIdx + chunk
		if end > len(tenants) {
			end = len(tenants)
		}

		if err := ctx.Err(); err != nil {
			for i := startIdx; i < len(tenants); i++ {
				failedAt[i] = true
				result.Errors[tenants[i].ID] = err.Error()
			}
			break
		}

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for i := startIdx; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, err := o.BackupOne(ctx, tenants[i], backupType)
				mu.Lock()
				defer mu.Unlock()
				artifacts[i] = a
				if err != nil {
					failedAt[i] = true
					result.Errors[tenants[i].ID] = err.Error()
				}
			}(i)
		}
		wg.Wait()
	}

	for i, t := range tenants {
		if artifacts[i] != nil {
			result.Artifacts = append(result.Artifacts, artifacts[i])
		}
		if failedAt[i] {
			result.Failed = append(result.Failed, t.ID)
		}
	}

	switch {
	case o.opts.DryRun:
	case result.HasFailures():
		result.Events = append(result.Events, notify.BackupBatchFailed(string(backupType), result.Failed, result.Errors))
	case len(tenants) > 0:
		result.Events = append(result.Events, notify.BackupBatchCompleted(string(backupType), len(tenants)))
	}

	logging.Info().
		Str("backup_type", string(backupType)).
		Int("tenants", len(tenants)).
		Int("failed", len(result.Failed)).
		Int("max_parallel", chunk).
		Bool("dry_run", o.opts.DryRun).
		Msg("Backup batch finished")
	return result
}
