// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/models"
)

// CreateDeletionRequest inserts a new ledger row. It fails if the ID exists.
func (s *Store) CreateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create deletion request %s: %w", r.ID, err)
	}
	return nil
}

// UpdateDeletionRequest writes the status columns of an existing ledger row.
func (s *Store) UpdateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error {
	res := s.db.WithContext(ctx).
		Model(&models.DeletionRequest{}).
		Where("id = ?", r.ID).
		Updates(map[string]interface{}{
			"status":               r.Status,
			"scheduled_purge_date": r.ScheduledPurgeDate,
			"export_location":      r.ExportLocation,
			"error_message":        r.ErrorMessage,
			"completed_at":         r.CompletedAt,
			"purged_at":            r.PurgedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update deletion request %s: %w", r.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return faults.NotFound("deletion request", r.ID)
	}
	return nil
}

// GetDeletionRequest loads one ledger row.
func (s *Store) GetDeletionRequest(ctx context.Context, id string) (*models.DeletionRequest, error) {
	var r models.DeletionRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&r).Error; err != nil {
		return nil, notFound(err, "deletion request", id)
	}
	return &r, nil
}

// ListPendingPurges returns completed soft deletions whose purge date has passed.
func (s *Store) ListPendingPurges(ctx context.Context, now time.Time) ([]models.DeletionRequest, error) {
	var out []models.DeletionRequest
	if err := s.db.WithContext(ctx).
		Where("deletion_type = ? AND status = ? AND scheduled_purge_date < ? AND purged_at IS NULL",
			models.DeletionSoft, models.DeletionCompleted, now.UTC()).
		Order("scheduled_purge_date ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list pending purges: %w", err)
	}
	return out, nil
}
