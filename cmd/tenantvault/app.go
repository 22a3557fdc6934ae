// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/tenantvault/internal/archive"
	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/export"
	"github.com/tomtom215/tenantvault/internal/gdpr"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
	"github.com/tomtom215/tenantvault/internal/notify"
	"github.com/tomtom215/tenantvault/internal/objectstore"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
	"github.com/tomtom215/tenantvault/internal/store"
)

// app owns the resources shared by subcommands. Each is opened on first use
// and released by close in reverse order.
type app struct {
	stdout io.Writer
	cfg    *config.Config

	meta       *store.Store
	db         *sql.DB
	driver     *pgdriver.Driver
	remote     objectstore.Store
	remoteOpen bool
	codec      *archive.Codec
	dispatcher *notify.Dispatcher

	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) metadata() (*store.Store, error) {
	if a.meta != nil {
		return a.meta, nil
	}
	s, err := store.Open(a.cfg.Metadata.Driver, a.cfg.MetadataDSN())
	if err != nil {
		return nil, err
	}
	a.meta = s
	a.onClose(s.Close)
	return s, nil
}

func (a *app) database(ctx context.Context) (*pgdriver.Driver, *sql.DB, error) {
	if a.driver != nil {
		return a.driver, a.db, nil
	}
	db, err := pgdriver.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	a.db = db
	a.driver = pgdriver.New(db, pgdriver.ExecRunner{}, a.cfg.Database)
	a.onClose(db.Close)
	return a.driver, db, nil
}

// objectStore returns nil when no remote storage is configured.
func (a *app) objectStore(ctx context.Context) (objectstore.Store, error) {
	if a.remoteOpen {
		return a.remote, nil
	}
	s, err := objectstore.Open(ctx, a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.remote = s
	a.remoteOpen = true
	if s != nil {
		a.onClose(s.Close)
	}
	return s, nil
}

func (a *app) archiveCodec() (*archive.Codec, error) {
	if a.codec != nil {
		return a.codec, nil
	}
	c, err := archive.New(archive.Options{
		Secret: a.cfg.Backup.EncryptionKey,
		Level:  a.cfg.Backup.CompressionLevel,
	})
	if err != nil {
		return nil, err
	}
	a.codec = c
	return c, nil
}

func (a *app) notifier() (*notify.Dispatcher, error) {
	if a.dispatcher != nil {
		return a.dispatcher, nil
	}
	d, closeFn, err := notify.FromConfig(a.cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("notifications: %w", err)
	}
	a.dispatcher = d
	a.onClose(closeFn)
	return d, nil
}

// dispatch delivers events when a notifier can be built. Delivery problems
// never change the outcome of the run.
func (a *app) dispatch(ctx context.Context, events []notify.Event) {
	if len(events) == 0 {
		return
	}
	d, err := a.notifier()
	if err != nil {
		logging.Warn().Err(err).Int("events", len(events)).Msg("Dropping notifications")
		return
	}
	d.Dispatch(ctx, events...)
}

// exporter builds the export collaborator over the tenant database.
func (a *app) exporter(ctx context.Context) (*export.Exporter, error) {
	driver, db, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := a.objectStore(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := export.ParseUserTables(a.cfg.GDPR.UserTables)
	if err != nil {
		return nil, err
	}
	return export.New(db, driver, remote, tables), nil
}

func (a *app) gdprEngine(ctx context.Context) (*gdpr.Engine, error) {
	ledger, err := a.metadata()
	if err != nil {
		return nil, err
	}
	exp, err := a.exporter(ctx)
	if err != nil {
		return nil, err
	}
	hasher, err := gdpr.NewEmailHasher(a.cfg.GDPR.HashSecret)
	if err != nil {
		return nil, err
	}
	tables, err := export.ParseUserTables(a.cfg.GDPR.UserTables)
	if err != nil {
		return nil, err
	}

	var identity gdpr.IdentityProvider
	if a.cfg.Identity.URL != "" {
		identity = gdpr.NewAdminClient(a.cfg.Identity)
	} else {
		logging.Warn().Msg("No identity provider configured; deletions will fail at the identity step")
	}

	return gdpr.NewEngine(a.db, ledger, identity, exp, hasher, gdpr.Config{
		Tables:               tables,
		DefaultRetentionDays: a.cfg.GDPR.DefaultRetentionDays,
	}), nil
}

// flushMetrics writes the textfile for node-exporter when configured.
func (a *app) flushMetrics() {
	if a.cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
		logging.Warn().Err(err).Str("path", a.cfg.Metrics.TextfilePath).Msg("Failed to write metrics textfile")
	}
}
