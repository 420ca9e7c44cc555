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

// DefaultChatTimeout bounds a single agent-chat attempt. The chat family
// runs model inference, so it is far slower than the search families.
const DefaultChatTimeout = 60 * time.Second

type chatRequest struct {
	Query        string `json:"query"`
	Instructions string `json:"instructions,omitempty"`
}

type chatResponse struct {
	Answer    string `json:"answer"`
	Citations []struct {
		URL string `json:"url"`
	} `json:"citations"`
}

// ChatClient adapts the conversational/agent family. Auth: bearer token.
type ChatClient struct {
	httpAdapter
}

// NewChatClient creates an agent-chat adapter.
func NewChatClient(opts Options) (*ChatClient, error) {
	a, err := newHTTPAdapter(FamilyChat, opts, DefaultChatTimeout, bearerAuth(opts.Credential))
	if err != nil {
		return nil, err
	}
	return &ChatClient{httpAdapter: a}, nil
}

// Family returns FamilyChat.
func (c *ChatClient) Family() Family { return FamilyChat }

// Fetch asks the agent one question and normalizes the answer.
func (c *ChatClient) Fetch(ctx context.Context, req Request) Result {
	start := time.Now()

	payload := chatRequest{Query: req.Query}
	if v, ok := req.Params["instructions"].(string); ok {
		payload.Instructions = v
	}

	var body chatResponse
	if f := c.do(ctx, http.MethodPost, "/v1/agent/chat", nil, payload, &body); f != nil {
		return fail(f, time.Since(start))
	}
	if body.Answer == "" {
		return fail(newFailure(KindParse, "chat response contained no answer"), time.Since(start))
	}

	out := &Payload{Family: FamilyChat, Summary: body.Answer}
	for _, cit := range body.Citations {
		out.Citations = append(out.Citations, cit.URL)
	}
	return succeed(out, time.Since(start))
}
