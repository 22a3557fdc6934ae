// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package notify delivers pipeline events to external systems.

Orchestrators never call a sink. They return Events in their results and the
caller hands them to a Dispatcher, which fans each event out to every
configured Sink. Delivery is fire-and-forget: a failing sink is logged and
counted, and never surfaces as an error to the pipeline.

Sinks:

  - WebhookSink: HTTP POST of the JSON event, 10s timeout, client-side rate limit
  - NATSSink: publish of the JSON event to a subject

When an Outbox is attached, events a sink failed to accept are stored in
BadgerDB and retried by Dispatcher.Drain, which serve mode runs periodically.
*/
package notify
