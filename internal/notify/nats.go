// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/tenantvault/internal/logging"
)

// NATSSink publishes events to a subject. The event kind is appended to the
// subject so consumers can subscribe selectively, e.g. tenantvault.events.backup.failed.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// DialNATS connects to url and returns a sink for subject.
func DialNATS(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("tenantvault"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSSink(conn, subject), nil
}

// NewNATSSink wraps an existing connection.
func NewNATSSink(conn *nats.Conn, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

// Name implements Sink.
func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject an event is published on.
func (s *NATSSink) Subject(e Event) string {
	if e.Kind == "" {
		return s.subject
	}
	return s.subject + "." + string(e.Kind)
}

// Notify implements Sink. The publish is flushed so that a dead connection is
// reported here rather than lost in the client buffer.
func (s *NATSSink) Notify(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(s.Subject(e))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, e.ID)
	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush NATS: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
