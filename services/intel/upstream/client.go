// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Options configures one adapter.
type Options struct {
	// BaseURL is the family endpoint root, e.g. "https://intel.example.com".
	BaseURL string

	// Credential is the API key or bearer token for this family.
	Credential string

	// Timeout bounds a single attempt. Zero uses the family default.
	Timeout time.Duration

	// RateLimit is the client-side request rate in requests/second.
	// Zero disables client-side limiting.
	RateLimit float64

	// RateBurst is the limiter burst size. Defaults to 1 when RateLimit
	// is set.
	RateBurst int

	// MaxResults caps the number of items requested from the news and
	// search families. Zero uses the family default.
	MaxResults int
}

// httpAdapter holds the plumbing shared by all four adapters: base URL,
// auth header injection, per-attempt timeout, and client-side rate
// limiting.
type httpAdapter struct {
	family  Family
	baseURL string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	auth    func(*http.Request)
}

func newHTTPAdapter(family Family, opts Options, defaultTimeout time.Duration, auth func(*http.Request)) (httpAdapter, error) {
	if opts.BaseURL == "" {
		return httpAdapter{}, fmt.Errorf("%s adapter: base URL is required", family)
	}
	if opts.Credential == "" {
		return httpAdapter{}, fmt.Errorf("%s adapter: credential is required", family)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return httpAdapter{
		family:  family,
		baseURL: opts.BaseURL,
		timeout: timeout,
		// The http.Client carries no timeout of its own; each attempt is
		// bounded by the context deadline set in do().
		client:  &http.Client{},
		limiter: limiter,
		auth:    auth,
	}, nil
}

// apiKeyAuth sets the static X-API-Key header (news and search families).
func apiKeyAuth(key string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("X-API-Key", key)
	}
}

// bearerAuth sets the Authorization bearer header (chat and research
// families).
func bearerAuth(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// do performs one HTTP attempt against the family endpoint and decodes the
// JSON response into out. The returned Failure is nil on success.
func (a *httpAdapter) do(ctx context.Context, method, path string, query url.Values, body any, out any) *Failure {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return classifyTransportError(err)
		}
	}

	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return newFailure(KindParse, "encode request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return newFailure(KindNetwork, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	a.auth(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	if f := classifyStatus(resp.StatusCode, raw); f != nil {
		return f
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return newFailure(KindParse, "decode %s response: %v", a.family, err)
	}
	return nil
}

// classifyStatus maps a non-2xx HTTP status to a Failure: 401/403 are auth
// errors, 429 is rate limiting, 5xx is a server error. Remaining 4xx
// statuses are reported as server errors but marked non-retryable since
// the request itself is at fault.
func classifyStatus(status int, body []byte) *Failure {
	if status >= 200 && status < 300 {
		return nil
	}

	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newFailure(KindAuth, "status %d: %s", status, snippet)
	case status == http.StatusTooManyRequests:
		return newFailure(KindRateLimited, "status %d: %s", status, snippet)
	case status >= 500:
		return newFailure(KindServer, "status %d: %s", status, snippet)
	default:
		f := newFailure(KindServer, "status %d: %s", status, snippet)
		f.Retryable = false
		return f
	}
}

// classifyTransportError maps transport-level errors: deadline expiry is a
// timeout, everything else is a network error. Caller cancellation is also
// reported as a network error so it is never retried against a caller that
// has already gone away.
func classifyTransportError(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return newFailure(KindTimeout, "request timed out: %v", err)
	}
	if errors.Is(err, context.Canceled) {
		f := newFailure(KindNetwork, "request cancelled: %v", err)
		f.Retryable = false
		return f
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newFailure(KindTimeout, "request timed out: %v", err)
	}
	return newFailure(KindNetwork, "transport error: %v", err)
}
