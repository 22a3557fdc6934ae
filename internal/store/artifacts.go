// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/tenantvault/internal/models"
)

// SaveArtifact inserts or updates a backup artifact.
func (s *Store) SaveArtifact(ctx context.Context, a *models.BackupArtifact) error {
	if a.ID == "" {
		return errors.New("artifact ID is required")
	}
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("save artifact %s: %w", a.ID, err)
	}
	return nil
}

// GetArtifact loads one artifact or returns a NotFoundError.
func (s *Store) GetArtifact(ctx context.Context, id string) (*models.BackupArtifact, error) {
	var a models.BackupArtifact
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, notFound(err, "backup", id)
	}
	return &a, nil
}

// ListArtifacts returns a tenant's artifacts, newest first. limit <= 0 means no limit.
func (s *Store) ListArtifacts(ctx context.Context, tenantID string, limit int) ([]models.BackupArtifact, error) {
	var out []models.BackupArtifact
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list artifacts for tenant %s: %w", tenantID, err)
	}
	return out, nil
}

// ListExpired returns artifacts of backupType created before cutoff, oldest first.
func (s *Store) ListExpired(ctx context.Context, backupType models.BackupType, cutoff time.Time) ([]models.BackupArtifact, error) {
	var out []models.BackupArtifact
	if err := s.db.WithContext(ctx).
		Where("type = ? AND created_at < ?", backupType, cutoff.UTC()).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list expired %s artifacts: %w", backupType, err)
	}
	return out, nil
}

// DeleteArtifact removes an artifact's metadata row.
func (s *Store) DeleteArtifact(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.BackupArtifact{}).Error; err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	return nil
}
