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

// ListTenants returns active tenants, optionally restricted to one plan.
func (s *Store) ListTenants(ctx context.Context, plan string) ([]models.Tenant, error) {
	var out []models.Tenant
	q := s.db.WithContext(ctx).Where("active = ?", true)
	if plan != "" {
		q = q.Where("plan = ?", plan)
	}
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return out, nil
}

// GetTenant loads one tenant.
func (s *Store) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&t).Error; err != nil {
		return nil, notFound(err, "tenant", id)
	}
	return &t, nil
}

// SaveTenant inserts or updates a registry entry.
func (s *Store) SaveTenant(ctx context.Context, t *models.Tenant) error {
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return fmt.Errorf("save tenant %s: %w", t.ID, err)
	}
	return nil
}
