// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package upstream contains the client adapters for the four intelligence
// API families: news search, web search, the conversational agent, and the
// deep-research agent.
//
// # Description
//
// Each adapter encapsulates one family's endpoint, auth scheme, timeout,
// and response shape. Failures are classified at the adapter boundary into
// tagged Failure values rather than raw errors, so retry eligibility is a
// checked decision instead of an exception-catching afterthought.
//
// Auth schemes (never mixed within an adapter):
//   - news, search: static X-API-Key header
//   - chat, research: Authorization Bearer token
//
// # Thread Safety
//
// Adapters are stateless apart from their rate limiter and are safe for
// concurrent use.
package upstream

import (
	"context"
	"fmt"
	"time"
)

// Family identifies one of the four upstream API families.
type Family string

const (
	// FamilyNews is the news-search API family.
	FamilyNews Family = "news"

	// FamilySearch is the web-search API family.
	FamilySearch Family = "search"

	// FamilyChat is the conversational/agent API family.
	FamilyChat Family = "chat"

	// FamilyResearch is the deep-research agent API family.
	FamilyResearch Family = "research"
)

// Families returns all four families in a stable order.
func Families() []Family {
	return []Family{FamilyNews, FamilySearch, FamilyChat, FamilyResearch}
}

// ParseFamily converts a string to a Family.
func ParseFamily(s string) (Family, error) {
	switch Family(s) {
	case FamilyNews, FamilySearch, FamilyChat, FamilyResearch:
		return Family(s), nil
	}
	return "", fmt.Errorf("unknown upstream family: %q", s)
}

// FailureKind classifies an upstream call failure.
type FailureKind string

const (
	// KindAuth indicates a 401/403 response. Implies misconfiguration,
	// never retried.
	KindAuth FailureKind = "auth_error"

	// KindRateLimited indicates a 429 response.
	KindRateLimited FailureKind = "rate_limited"

	// KindTimeout indicates the request deadline elapsed.
	KindTimeout FailureKind = "timeout"

	// KindServer indicates a 5xx response.
	KindServer FailureKind = "server_error"

	// KindNetwork indicates a transport-level failure.
	KindNetwork FailureKind = "network_error"

	// KindParse indicates the response body did not match the expected
	// shape. A malformed response will not fix itself on retry.
	KindParse FailureKind = "parse_error"
)

// Retryable reports whether this failure kind is transient by default.
func (k FailureKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindServer, KindNetwork:
		return true
	}
	return false
}

// Failure describes a classified upstream call failure.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f == nil {
		return "upstream failure"
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Reason returns a short human-readable description for report sections,
// e.g. "rate limited" for KindRateLimited.
func (f *Failure) Reason() string {
	switch f.Kind {
	case KindAuth:
		return "authentication failed"
	case KindRateLimited:
		return "rate limited"
	case KindTimeout:
		return "timed out"
	case KindServer:
		return "upstream server error"
	case KindNetwork:
		return "network error"
	case KindParse:
		return "malformed upstream response"
	}
	return string(f.Kind)
}

// newFailure builds a Failure with the kind's default retry eligibility.
func newFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Retryable: kind.Retryable(),
	}
}

// Item is one normalized result entry from the news or search families.
type Item struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet,omitempty"`
	Source      string `json:"source,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Payload is the normalized response shape shared by all four families.
// News and search populate Items; chat and research populate Summary
// (and optionally Citations).
type Payload struct {
	Family    Family   `json:"family"`
	Summary   string   `json:"summary,omitempty"`
	Items     []Item   `json:"items,omitempty"`
	Citations []string `json:"citations,omitempty"`
}

// Result is the tagged outcome of a single upstream call: exactly one of
// Payload or Failure is set.
type Result struct {
	Payload *Payload
	Failure *Failure
	Latency time.Duration
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Failure == nil && r.Payload != nil
}

// succeed builds a success Result.
func succeed(p *Payload, latency time.Duration) Result {
	return Result{Payload: p, Latency: latency}
}

// fail builds a failure Result.
func fail(f *Failure, latency time.Duration) Result {
	return Result{Failure: f, Latency: latency}
}

// Request is one logical upstream request. Query is the family query
// template already applied to the subject; Params carries any extra
// family parameters and participates in the cache fingerprint.
type Request struct {
	Subject string
	Query   string
	Params  map[string]any
}

// Client is the adapter contract. Implementations are stateless and safe
// to invoke concurrently; they perform no side effects beyond the network
// call itself.
type Client interface {
	// Family returns the adapter's API family.
	Family() Family

	// Fetch performs one upstream call and classifies the outcome.
	// It never returns a Go error: failures are carried in the Result.
	Fetch(ctx context.Context, req Request) Result
}
