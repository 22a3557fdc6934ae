// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package models

import "time"

// APIResponse is the JSON envelope of every serve-mode endpoint.
//
// Example:
//
//	{
//	  "status": "success",
//	  "data": [{"id": "01J...", "tenant_id": "t1", "status": "completed"}],
//	  "metadata": {"timestamp": "2026-10-14T12:00:00Z", "query_time_ms": 3}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata describes the response.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms"`
	Count       int       `json:"count,omitempty"`
}

// APIError is the error payload of a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
