// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultSearchTimeout bounds a single web-search attempt.
const DefaultSearchTimeout = 10 * time.Second

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// SearchClient adapts the web-search family. Auth: static API key header.
type SearchClient struct {
	httpAdapter
	maxResults int
}

// NewSearchClient creates a web-search adapter.
func NewSearchClient(opts Options) (*SearchClient, error) {
	a, err := newHTTPAdapter(FamilySearch, opts, DefaultSearchTimeout, apiKeyAuth(opts.Credential))
	if err != nil {
		return nil, err
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &SearchClient{httpAdapter: a, maxResults: maxResults}, nil
}

// Family returns FamilySearch.
func (c *SearchClient) Family() Family { return FamilySearch }

// Fetch runs one web search and normalizes the hit list.
func (c *SearchClient) Fetch(ctx context.Context, req Request) Result {
	start := time.Now()

	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("num_results", strconv.Itoa(c.maxResults))

	var body searchResponse
	if f := c.do(ctx, http.MethodGet, "/v1/search", q, nil, &body); f != nil {
		return fail(f, time.Since(start))
	}

	payload := &Payload{Family: FamilySearch}
	for _, r := range body.Results {
		payload.Items = append(payload.Items, Item{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
		})
	}
	return succeed(payload, time.Since(start))
}
