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
	"time"
)

// DefaultResearchTimeout bounds a single deep-research attempt. Research
// reports are generated by a long-running agent; the default allows for
// multi-minute inference.
const DefaultResearchTimeout = 300 * time.Second

type researchRequest struct {
	Query string `json:"query"`
	Depth string `json:"depth,omitempty"`
}

type researchResponse struct {
	Report  string   `json:"report"`
	Sources []string `json:"sources"`
}

// ResearchClient adapts the deep-research agent family. Auth: bearer token.
type ResearchClient struct {
	httpAdapter
}

// NewResearchClient creates a deep-research adapter.
func NewResearchClient(opts Options) (*ResearchClient, error) {
	a, err := newHTTPAdapter(FamilyResearch, opts, DefaultResearchTimeout, bearerAuth(opts.Credential))
	if err != nil {
		return nil, err
	}
	return &ResearchClient{httpAdapter: a}, nil
}

// Family returns FamilyResearch.
func (c *ResearchClient) Family() Family { return FamilyResearch }

// Fetch requests one research report and normalizes it.
func (c *ResearchClient) Fetch(ctx context.Context, req Request) Result {
	start := time.Now()

	payload := researchRequest{Query: req.Query}
	if v, ok := req.Params["depth"].(string); ok {
		payload.Depth = v
	}

	var body researchResponse
	if f := c.do(ctx, http.MethodPost, "/v1/agent/research", nil, payload, &body); f != nil {
		return fail(f, time.Since(start))
	}
	if body.Report == "" {
		return fail(newFailure(KindParse, "research response contained no report"), time.Since(start))
	}

	out := &Payload{Family: FamilyResearch, Summary: body.Report, Citations: body.Sources}
	return succeed(out, time.Since(start))
}
