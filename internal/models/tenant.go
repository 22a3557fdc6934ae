// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package models

import "time"

// Tenant is a registry entry. Each tenant owns the schema tenant_<ID>.
type Tenant struct {
	ID        string    `gorm:"primaryKey;size:63" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Plan      string    `gorm:"size:32;index" json:"plan"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName implements gorm's tabler.
func (Tenant) TableName() string { return "tenants" }
