// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/objectstore"
)

// ExpiryStore lists and deletes artifact metadata.
type ExpiryStore interface {
	ListExpired(ctx context.Context, backupType models.BackupType, cutoff time.Time) ([]models.BackupArtifact, error)
	DeleteArtifact(ctx context.Context, id string) error
}

// SweepResult summarizes one retention pass.
type SweepResult struct {
	Expired       int
	Deleted       int
	LocalRemoved  int
	RemoteRemoved int
	Errors        []string
	WouldDelete   []string
}

// Sweeper deletes expired artifacts.
type Sweeper struct {
	store     ExpiryStore
	remote    objectstore.Store
	retention config.RetentionConfig
	dryRun    bool
	now       func() time.Time
}

// NewSweeper creates a Sweeper. remote is used only when retention.DeleteRemote is set.
func NewSweeper(store ExpiryStore, remote objectstore.Store, retention config.RetentionConfig, dryRun bool) *Sweeper {
	return &Sweeper{
		store:     store,
		remote:    remote,
		retention: retention,
		dryRun:    dryRun,
		now:       time.Now,
	}
}

// Sweep removes every artifact older than its type's retention window.
// Per-artifact failures are collected in the result; only a failure to list
// expired artifacts aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	now := s.now().UTC()

	for _, backupType := range models.BackupTypes {
		days, err := s.retention.RetentionDays(string(backupType))
		if err != nil {
			return result, err
		}
		if days <= 0 {
			continue
		}
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

		expired, err := s.store.ListExpired(ctx, backupType, cutoff)
		if err != nil {
			return result, fmt.Errorf("list expired %s backups: %w", backupType, err)
		}
		result.Expired += len(expired)

		for i := range expired {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			s.sweepOne(ctx, &expired[i], result)
		}
	}

	logging.Info().
		Int("expired", result.Expired).
		Int("deleted", result.Deleted).
		Int("local_removed", result.LocalRemoved).
		Int("remote_removed", result.RemoteRemoved).
		Int("errors", len(result.Errors)).
		Bool("dry_run", s.dryRun).
		Msg("Retention sweep finished")
	return result, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, a *models.BackupArtifact, result *SweepResult) {
	log := logging.Ctx(logging.ContextWithTenant(ctx, a.TenantID))

	if s.dryRun {
		log.Info().Str("backup_id", a.ID).Str("backup_type", string(a.Type)).Time("created_at", a.CreatedAt).Msg("Dry run: would delete expired backup")
		result.WouldDelete = append(result.WouldDelete, a.ID)
		return
	}

	if a.LocalPath != "" {
		err := os.Remove(a.LocalPath)
		switch {
		case err == nil:
			result.LocalRemoved++
			metrics.RecordRetentionDeletion(string(a.Type), "local")
		case errors.Is(err, os.ErrNotExist):
		default:
			log.Warn().Err(err).Str("backup_id", a.ID).Str("path", a.LocalPath).Msg("Failed to remove expired backup file")
		}
	}

	if s.retention.DeleteRemote && s.remote != nil && a.RemoteLocation != "" {
		if err := s.remote.Delete(ctx, a.RemoteLocation); err != nil {
			metrics.RecordObjectStoreError("delete")
			log.Warn().Err(err).Str("backup_id", a.ID).Str("location", a.RemoteLocation).Msg("Failed to delete expired remote backup")
		} else {
			result.RemoteRemoved++
			metrics.RecordRetentionDeletion(string(a.Type), "remote")
		}
	}

	if err := s.store.DeleteArtifact(ctx, a.ID); err != nil {
		log.Error().Err(err).Str("backup_id", a.ID).Msg("Failed to delete expired backup metadata")
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", a.ID, err))
		return
	}
	result.Deleted++
	metrics.RecordRetentionDeletion(string(a.Type), "metadata")
	log.Debug().Str("backup_id", a.ID).Str("backup_type", string(a.Type)).Msg("Expired backup deleted")
}
