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

// DefaultNewsTimeout bounds a single news-search attempt. News is a fast,
// index-backed endpoint.
const DefaultNewsTimeout = 10 * time.Second

const defaultMaxResults = 10

type newsResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Source      string `json:"source"`
		PublishedAt string `json:"published_at"`
	} `json:"articles"`
}

// NewsClient adapts the news-search family. Auth: static API key header.
type NewsClient struct {
	httpAdapter
	maxResults int
}

// NewNewsClient creates a news-search adapter.
func NewNewsClient(opts Options) (*NewsClient, error) {
	a, err := newHTTPAdapter(FamilyNews, opts, DefaultNewsTimeout, apiKeyAuth(opts.Credential))
	if err != nil {
		return nil, err
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &NewsClient{httpAdapter: a, maxResults: maxResults}, nil
}

// Family returns FamilyNews.
func (c *NewsClient) Family() Family { return FamilyNews }

// Fetch runs one news search and normalizes the article list.
func (c *NewsClient) Fetch(ctx context.Context, req Request) Result {
	start := time.Now()

	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("count", strconv.Itoa(c.maxResults))

	var body newsResponse
	if f := c.do(ctx, http.MethodGet, "/v1/news/search", q, nil, &body); f != nil {
		return fail(f, time.Since(start))
	}

	payload := &Payload{Family: FamilyNews}
	for _, a := range body.Articles {
		payload.Items = append(payload.Items, Item{
			Title:       a.Title,
			URL:         a.URL,
			Snippet:     a.Description,
			Source:      a.Source,
			PublishedAt: a.PublishedAt,
		})
	}
	return succeed(payload, time.Since(start))
}
