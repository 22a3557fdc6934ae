// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package gdpr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tomtom215/tenantvault/internal/export"
	"github.com/tomtom215/tenantvault/internal/faults"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

// Placeholder values written by anonymization.
const (
	AnonymizedFirstName = "Deleted"
	AnonymizedLastName  = "User"
)

// hardDelete removes the user's rows. With resume set, a users row that is
// already gone is accepted so an interrupted purge can finish.
func (e *Engine) hardDelete(ctx context.Context, schema pgdriver.Schema, userID string, resume bool, res *DeletionResult) error {
	tables, owners, err := e.ownedTables(schema)
	if err != nil {
		return err
	}
	for i, t := range tables {
		n, err := e.exec(ctx, "delete "+t.Name(), e.sb.Delete(t.Quoted()).Where(sq.Eq{owners[i]: userID}))
		if err != nil {
			e.skip(ctx, res, t, err)
			continue
		}
		res.Affected[t.Name()] = n
	}

	users, err := schema.Table(export.UsersTable)
	if err != nil {
		return err
	}
	n, err := e.exec(ctx, "delete user", e.sb.Delete(users.Quoted()).Where(sq.Eq{"id": userID}))
	if err != nil {
		return err
	}
	if n == 0 && !resume {
		return faults.NotFound("user", userID)
	}
	res.Affected[users.Name()] = n

	if err := e.requireIdentity(); err != nil {
		return err
	}
	return e.identity.DeleteUser(ctx, userID)
}

func (e *Engine) softDelete(ctx context.Context, schema pgdriver.Schema, userID string, purgeAt time.Time, res *DeletionResult) error {
	now := e.now().UTC()

	tables, owners, err := e.ownedTables(schema)
	if err != nil {
		return err
	}
	for i, t := range tables {
		n, err := e.exec(ctx, "soft delete "+t.Name(), e.sb.Update(t.Quoted()).
			Set("deleted_at", now).
			Set("scheduled_purge_date", purgeAt).
			Where(sq.Eq{owners[i]: userID, "deleted_at": nil}))
		if err != nil {
			e.skip(ctx, res, t, err)
			continue
		}
		res.Affected[t.Name()] = n
	}

	users, err := schema.Table(export.UsersTable)
	if err != nil {
		return err
	}
	n, err := e.exec(ctx, "deactivate user", e.sb.Update(users.Quoted()).
		Set("is_active", false).
		Set("deleted_at", now).
		Set("scheduled_purge_date", purgeAt).
		Where(sq.Eq{"id": userID, "deleted_at": nil}))
	if err != nil {
		return err
	}
	if n == 0 {
		exists, err := e.userExists(ctx, users, userID)
		if err != nil {
			return err
		}
		if !exists {
			return faults.NotFound("user", userID)
		}
		logging.Ctx(ctx).Info().Str("user_id", userID).Msg("User already soft-deleted")
	}
	res.Affected[users.Name()] = n

	if err := e.requireIdentity(); err != nil {
		return err
	}
	return e.identity.BanUser(ctx, userID, PermanentBan)
}

func (e *Engine) anonymize(ctx context.Context, schema pgdriver.Schema, userID string, res *DeletionResult) error {
	users, err := schema.Table(export.UsersTable)
	if err != nil {
		return err
	}

	query, args, err := e.sb.Select("email").From(users.Quoted()).Where(sq.Eq{"id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("build email lookup: %w", err)
	}
	var email sql.NullString
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return faults.NotFound("user", userID)
		}
		return faults.Driver("lookup user email", "", err)
	}

	anonymous := AnonymousEmail(userID)
	update := e.sb.Update(users.Quoted()).
		Set("first_name", AnonymizedFirstName).
		Set("last_name", AnonymizedLastName).
		Set("email", anonymous).
		Set("phone", nil).
		Set("birth_date", nil).
		Set("photo_url", nil).
		Set("anonymized_at", e.now().UTC()).
		Where(sq.Eq{"id": userID})
	// A repeated request must not replace the hash with the hash of the placeholder.
	if email.Valid && email.String != anonymous {
		update = update.Set("original_email_hash", e.hasher.Hash(email.String))
	}

	n, err := e.exec(ctx, "anonymize user", update)
	if err != nil {
		return err
	}
	res.Affected[users.Name()] = n

	if err := e.requireIdentity(); err != nil {
		return err
	}
	return e.identity.UpdateEmail(ctx, userID, anonymous)
}

func (e *Engine) requireIdentity() error {
	if e.identity == nil {
		return errors.New("no identity provider configured")
	}
	return nil
}
