// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package store

import (
	"context"
	"fmt"

	"github.com/tomtom215/tenantvault/internal/models"
)

// SaveRestore inserts or updates a restore operation.
func (s *Store) SaveRestore(ctx context.Context, op *models.RestoreOperation) error {
	if err := s.db.WithContext(ctx).Save(op).Error; err != nil {
		return fmt.Errorf("save restore %s: %w", op.ID, err)
	}
	return nil
}

// ListRestores returns a tenant's restore attempts, newest first.
func (s *Store) ListRestores(ctx context.Context, tenantID string) ([]models.RestoreOperation, error) {
	var out []models.RestoreOperation
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("started_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list restores for tenant %s: %w", tenantID, err)
	}
	return out, nil
}
