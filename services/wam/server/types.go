// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

// ConsultRequest is the body of POST /v1/wam/consult.
type ConsultRequest struct {
	// Source is the listing text.
	Source string `json:"source" binding:"required"`

	// Name labels the listing in logs. Optional.
	Name string `json:"name,omitempty"`
}

// ConsultResponse reports a successful consult.
type ConsultResponse struct {
	Instructions int `json:"instructions"`
	CodeSize     int `json:"code_size"`
}

// QueryRequest is the body of POST /v1/wam/query. Text is one clause,
// directive, or query.
type QueryRequest struct {
	Text string `json:"text" binding:"required"`
}

// QueryResponse reports the outcome of a packet.
type QueryResponse struct {
	// Kind is "success" or "query".
	Kind string `json:"kind"`

	// QueryID identifies a submitted query.
	QueryID string `json:"query_id,omitempty"`

	// Code is the compiled query, one line per entry.
	Code []string `json:"code,omitempty"`

	// Bindings maps query variables to their registers.
	Bindings map[string]string `json:"bindings,omitempty"`
}

// HealthResponse is returned by GET /v1/wam/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	CodeSize int    `json:"code_size"`
	Modules  int    `json:"modules"`
}

// SaveResponse is returned by POST /v1/wam/image.
type SaveResponse struct {
	Instructions int `json:"instructions"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}
