// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package gdpr

import (
	"context"
	"fmt"

	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/notify"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

// PurgeResult summarizes one run of ProcessPendingDeletions.
type PurgeResult struct {
	Purged []string
	// Failed maps request IDs to errors; those requests are retried next run.
	Failed map[string]string
	Events []notify.Event
}

// ProcessPendingDeletions hard-deletes users whose soft-delete grace period
// has passed and marks their requests purged. Requests are independent: one
// failure never stops the batch.
func (e *Engine) ProcessPendingDeletions(ctx context.Context) (*PurgeResult, error) {
	now := e.now().UTC()
	pending, err := e.ledger.ListPendingPurges(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list pending purges: %w", err)
	}

	result := &PurgeResult{Failed: make(map[string]string)}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		req := &pending[i]
		if err := e.purgeOne(ctx, req); err != nil {
			result.Failed[req.ID] = err.Error()
			continue
		}
		result.Purged = append(result.Purged, req.ID)
	}

	if len(pending) > 0 {
		result.Events = append(result.Events, notify.PurgeCompleted(len(result.Purged), len(result.Failed)))
	}
	logging.Info().
		Int("pending", len(pending)).
		Int("purged", len(result.Purged)).
		Int("failed", len(result.Failed)).
		Msg("Purge run finished")
	return result, nil
}

func (e *Engine) purgeOne(ctx context.Context, req *models.DeletionRequest) error {
	ctx = logging.ContextWithTenant(ctx, req.TenantID)
	log := logging.Ctx(ctx)

	schema, err := pgdriver.TenantSchema(req.TenantID)
	if err != nil {
		return err
	}

	res := &DeletionResult{Request: req, Affected: make(map[string]int64), Skipped: make(map[string]string)}
	if err := e.hardDelete(ctx, schema, req.UserID, true, res); err != nil {
		metrics.RecordGDPRPurge(false)
		log.Error().Err(err).Str("request_id", req.ID).Str("user_id", req.UserID).Msg("Purge failed")
		req.ErrorMessage = "purge: " + err.Error()
		if uerr := e.ledger.UpdateDeletionRequest(ctx, req); uerr != nil {
			log.Warn().Err(uerr).Str("request_id", req.ID).Msg("Failed to record purge failure")
		}
		return err
	}

	purgedAt := e.now().UTC()
	req.Status = models.DeletionPurged
	req.PurgedAt = &purgedAt
	req.ErrorMessage = ""
	if err := e.ledger.UpdateDeletionRequest(ctx, req); err != nil {
		metrics.RecordGDPRPurge(false)
		return fmt.Errorf("mark request purged: %w", err)
	}

	metrics.RecordGDPRPurge(true)
	log.Info().
		Str("request_id", req.ID).
		Str("user_id", req.UserID).
		Int("tables_skipped", len(res.Skipped)).
		Msg("Soft-deleted user purged")
	return nil
}
