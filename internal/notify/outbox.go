// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tenantvault/internal/logging"
)

const (
	prefixPending = "pending:"

	// MaxOutboxAttempts is how often an entry is retried before it is dropped.
	MaxOutboxAttempts = 20

	// outboxTTL expires entries nobody drained.
	outboxTTL = 7 * 24 * time.Hour
)

// ErrOutboxEntryNotFound is returned for unknown entry IDs.
var ErrOutboxEntryNotFound = errors.New("outbox entry not found")

// OutboxEntry is an event awaiting redelivery to one sink.
type OutboxEntry struct {
	ID        string    `json:"id"`
	Sink      string    `json:"sink"`
	Event     Event     `json:"event"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Outbox stores undelivered events in BadgerDB.
type Outbox struct {
	db *badger.DB
}

// OpenOutbox opens or creates the outbox at path.
func OpenOutbox(path string) (*Outbox, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.Logger = nil
	return openOutbox(opts)
}

func openOutbox(opts badger.Options) (*Outbox, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	return &Outbox{db: db}, nil
}

// Enqueue stores e for later delivery to sink.
func (o *Outbox) Enqueue(sink string, e Event, cause error) error {
	entry := OutboxEntry{
		ID:        uuid.New().String(),
		Sink:      sink,
		Event:     e,
		Attempts:  1,
		CreatedAt: time.Now().UTC(),
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}
	return o.put(&entry)
}

func (o *Outbox) put(entry *OutboxEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal outbox entry: %w", err)
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(prefixPending+entry.ID), data).WithTTL(outboxTTL))
	})
}

// Pending lists stored entries in key order.
func (o *Outbox) Pending(ctx context.Context) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	err := o.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry OutboxEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable outbox entry")
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// Ack removes a delivered entry.
func (o *Outbox) Ack(id string) error {
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixPending + id))
	})
}

// RecordFailure bumps the attempt count of an entry, dropping it once
// MaxOutboxAttempts is reached.
func (o *Outbox) RecordFailure(id string, cause error) error {
	var entry OutboxEntry
	err := o.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixPending + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrOutboxEntryNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) })
	})
	if err != nil {
		return err
	}

	entry.Attempts++
	if cause != nil {
		entry.LastError = cause.Error()
	}
	if entry.Attempts >= MaxOutboxAttempts {
		logging.Error().
			Str("entry_id", id).
			Str("sink", entry.Sink).
			Str("event_id", entry.Event.ID).
			Int("attempts", entry.Attempts).
			Str("last_error", entry.LastError).
			Msg("Dropping notification after repeated delivery failures")
		return o.Ack(id)
	}
	return o.put(&entry)
}

// Close closes the underlying database.
func (o *Outbox) Close() error {
	return o.db.Close()
}
