// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-intel/sightline/services/intel/cache"
	"github.com/sightline-intel/sightline/services/intel/handlers"
	"github.com/sightline-intel/sightline/services/intel/report"
	"github.com/sightline-intel/sightline/services/intel/resilience"
	"github.com/sightline-intel/sightline/services/intel/routes"
	"github.com/sightline-intel/sightline/services/intel/upstream"
)

type stubClient struct {
	family upstream.Family
	result upstream.Result
}

func (s *stubClient) Family() upstream.Family { return s.family }

func (s *stubClient) Fetch(context.Context, upstream.Request) upstream.Result {
	return s.result
}

func testRouter(t *testing.T) (*gin.Engine, *resilience.BreakerSet, cache.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clients := make(map[upstream.Family]upstream.Client, 4)
	for _, f := range upstream.Families() {
		clients[f] = &stubClient{family: f, result: upstream.Result{
			Payload: &upstream.Payload{Family: f, Summary: "ok"},
			Latency: time.Millisecond,
		}}
	}

	store := cache.NewMemoryStore(0)
	breakers := resilience.NewBreakerSet(resilience.DefaultBreakerConfig(), nil)
	builder := report.NewBuilder(report.BuilderOptions{
		Clients:  clients,
		Store:    store,
		Breakers: breakers,
		Tunables: func() report.Tunables {
			families := make(map[upstream.Family]report.FamilySettings, 4)
			for _, f := range upstream.Families() {
				families[f] = report.FamilySettings{TTL: time.Minute, Timeout: time.Second, CostUnits: 1}
			}
			return report.Tunables{Retry: resilience.DefaultRetryConfig(), Families: families}
		},
	})

	h := handlers.New(builder, breakers, store, nil, nil)
	return routes.Setup(h, "sightline-test"), breakers, store
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateReport(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(router, http.MethodPost, "/v1/reports", gin.H{"subject": "Acme Corp"})
	require.Equal(t, http.StatusOK, w.Code)

	var rep report.ImpactReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.True(t, rep.Complete)
	assert.Equal(t, "Acme Corp", rep.Subject)
	assert.Len(t, rep.Sections, 4)
}

func TestCreateReportValidation(t *testing.T) {
	router, _, _ := testRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing subject", gin.H{}},
		{"blank subject", gin.H{"subject": "   "}},
		{"wrong type", gin.H{"subject": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/v1/reports", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListCircuits(t *testing.T) {
	router, breakers, _ := testRouter(t)
	breakers.Get(upstream.FamilyNews).RecordFailure()

	w := doJSON(router, http.MethodGet, "/v1/circuits", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Circuits map[string]resilience.Status `json:"circuits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Circuits, 4)
	assert.Equal(t, resilience.StateClosed, body.Circuits["news"].State)
	assert.Equal(t, 1, body.Circuits["news"].FailureCount)
}

func TestGetCircuit(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(router, http.MethodGet, "/v1/circuits/chat", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/v1/circuits/weather", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetCircuit(t *testing.T) {
	router, breakers, _ := testRouter(t)

	b := breakers.Get(upstream.FamilySearch)
	for i := 0; i < 10; i++ {
		b.RecordFailure()
	}
	require.Equal(t, resilience.StateOpen, b.Status().State)

	w := doJSON(router, http.MethodPost, "/v1/circuits/search/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resilience.StateClosed, b.Status().State)
}

func TestResetCache(t *testing.T) {
	router, _, store := testRouter(t)

	require.NoError(t, store.Put(context.Background(), "fp", &upstream.Payload{Family: upstream.FamilyNews}, time.Minute))

	w := doJSON(router, http.MethodPost, "/v1/cache/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, ok, err := store.Get(context.Background(), "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealth(t *testing.T) {
	router, breakers, _ := testRouter(t)

	w := doJSON(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	for i := 0; i < 10; i++ {
		breakers.Get(upstream.FamilyResearch).RecordFailure()
	}
	w = doJSON(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := testRouter(t)

	w := doJSON(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
