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

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/metrics"
)

// Sink accepts events for delivery.
type Sink interface {
	Name() string
	Notify(ctx context.Context, e Event) error
}

// DefaultSinkTimeout bounds one delivery attempt.
const DefaultSinkTimeout = 10 * time.Second

// Dispatcher fans events out to sinks.
type Dispatcher struct {
	sinks   []Sink
	byName  map[string]Sink
	outbox  *Outbox
	timeout time.Duration
}

// NewDispatcher creates a dispatcher. outbox may be nil.
func NewDispatcher(outbox *Outbox, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		byName:  make(map[string]Sink, len(sinks)),
		outbox:  outbox,
		timeout: DefaultSinkTimeout,
	}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		d.sinks = append(d.sinks, s)
		d.byName[s.Name()] = s
	}
	return d
}

// FromConfig builds the sinks and outbox named in cfg. The returned close
// function releases connections and the outbox.
func FromConfig(cfg config.NotifyConfig) (*Dispatcher, func() error, error) {
	var (
		sinks   []Sink
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, WebhookOptions{Rate: cfg.RateLimit, Burst: cfg.Burst}))
	}
	if cfg.NATSURL != "" {
		ns, err := DialNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, ns)
		closers = append(closers, ns.Close)
	}

	var outbox *Outbox
	if cfg.OutboxPath != "" {
		ob, err := OpenOutbox(cfg.OutboxPath)
		if err != nil {
			closeAll() //nolint:errcheck // Best effort cleanup
			return nil, nil, err
		}
		outbox = ob
		closers = append(closers, ob.Close)
	}

	return NewDispatcher(outbox, sinks...), closeAll, nil
}

// Enabled reports whether any sink is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.sinks) > 0
}

// Dispatch delivers every event to every sink. It never fails; undeliverable
// events are logged and, with an outbox, stored for a later Drain.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) {
	if !d.Enabled() {
		return
	}
	for _, e := range events {
		for _, s := range d.sinks {
			err := d.deliver(ctx, s, e)
			if err == nil {
				continue
			}
			logging.Ctx(ctx).Warn().Err(err).
				Str("sink", s.Name()).
				Str("event_id", e.ID).
				Str("kind", string(e.Kind)).
				Msg("Notification delivery failed")

			if d.outbox != nil {
				if oerr := d.outbox.Enqueue(s.Name(), e, err); oerr != nil {
					logging.Ctx(ctx).Error().Err(oerr).Str("event_id", e.ID).Msg("Failed to store notification in outbox")
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := s.Notify(ctx, e)
	metrics.RecordNotification(s.Name(), err)
	return err
}

// Drain retries events stored in the outbox and returns how many were delivered.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	if d == nil || d.outbox == nil {
		return 0, nil
	}

	entries, err := d.outbox.Pending(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}

		s, ok := d.byName[entry.Sink]
		if !ok {
			logging.Ctx(ctx).Warn().Str("sink", entry.Sink).Str("entry_id", entry.ID).Msg("Dropping outbox entry for unconfigured sink")
			if err := d.outbox.Ack(entry.ID); err != nil {
				return delivered, err
			}
			continue
		}

		if derr := d.deliver(ctx, s, entry.Event); derr != nil {
			if err := d.outbox.RecordFailure(entry.ID, derr); err != nil {
				return delivered, fmt.Errorf("record outbox failure: %w", err)
			}
			continue
		}
		if err := d.outbox.Ack(entry.ID); err != nil {
			return delivered, err
		}
		delivered++
	}

	if delivered > 0 {
		logging.Ctx(ctx).Info().Int("delivered", delivered).Int("pending", len(entries)-delivered).Msg("Outbox drained")
	}
	return delivered, nil
}
