// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/innovationmech/bundlepress/internal/bundlepress/config"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openGate returns a gate that admits everything.
func openGate(t *testing.T) *resilience.Gate {
	t.Helper()
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 1000
	cb, err := resilience.NewCircuitBreaker(cfg)
	require.NoError(t, err)
	return resilience.NewGate(cb, resilience.NewRateLimiter(1000, time.Minute), nil)
}

func newHubnetAgainst(t *testing.T, srv *httptest.Server) *Hubnet {
	t.Helper()
	return NewHubnet(config.ProviderConfig{BaseURL: srv.URL, APIKey: "test-key"}, openGate(t), srv.Client())
}

func TestHubnetCreateOrderSuccess(t *testing.T) {
	var captured hubnetOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","message":"order placed","order_id":98765}`))
	}))
	defer srv.Close()

	h := newHubnetAgainst(t, srv)
	resp := h.CreateOrder(context.Background(), model.OrderRequest{
		Recipient: "0551234567",
		Network:   model.NetworkMTN,
		SizeGB:    5,
	})

	assert.True(t, resp.Success)
	assert.Equal(t, "98765", resp.ExternalID, "numeric id normalized to string")
	assert.Equal(t, ProviderHubnet, resp.Provider)
	assert.NotEmpty(t, resp.TraceID)
	assert.Empty(t, resp.ErrorKind)

	assert.Equal(t, "0551234567", captured.Phone)
	assert.Equal(t, "mtn", captured.Network)
	assert.Equal(t, 5, captured.Volume)
	assert.NotEmpty(t, captured.Reference)
}

func TestHubnetCreateOrderRoundsSize(t *testing.T) {
	var captured hubnetOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"status":"success","order_id":"1"}`))
	}))
	defer srv.Close()

	h := newHubnetAgainst(t, srv)
	resp := h.CreateOrder(context.Background(), model.OrderRequest{
		Recipient: "0551234567",
		Network:   model.NetworkMTN,
		SizeGB:    4.6,
	})

	require.True(t, resp.Success)
	assert.Equal(t, 5, captured.Volume, "sizes round to the nearest integer GB")
}

func TestHubnetCreateOrderValidationSkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	h := newHubnetAgainst(t, srv)

	tests := []struct {
		name string
		req  model.OrderRequest
	}{
		{name: "malformed_phone", req: model.OrderRequest{Recipient: "12", Network: model.NetworkMTN, SizeGB: 1}},
		{name: "network_mismatch", req: model.OrderRequest{Recipient: "0201234567", Network: model.NetworkMTN, SizeGB: 1}},
		{name: "zero_size", req: model.OrderRequest{Recipient: "0551234567", Network: model.NetworkMTN, SizeGB: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.CreateOrder(context.Background(), tt.req)
			assert.False(t, resp.Success)
			assert.Equal(t, model.ErrorKindValidation, resp.ErrorKind)
		})
	}
	assert.Equal(t, 0, calls, "validation failures must not reach the network")
}

func TestHubnetCreateOrderAPIRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"insufficient balance"}`))
	}))
	defer srv.Close()

	h := newHubnetAgainst(t, srv)
	resp := h.CreateOrder(context.Background(), model.OrderRequest{
		Recipient: "0551234567", Network: model.NetworkMTN, SizeGB: 1,
	})

	assert.False(t, resp.Success)
	assert.Equal(t, model.ErrorKindAPIError, resp.ErrorKind)
	assert.Equal(t, "insufficient balance", resp.Message)
}

func TestHubnetCreateOrderTransportFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	h := NewHubnet(config.ProviderConfig{BaseURL: srv.URL}, openGate(t), &http.Client{Timeout: time.Second})
	resp := h.CreateOrder(context.Background(), model.OrderRequest{
		Recipient: "0551234567", Network: model.NetworkMTN, SizeGB: 1,
	})

	assert.False(t, resp.Success)
	assert.Equal(t, model.ErrorKindNetworkError, resp.ErrorKind)
}

func TestHubnetCreateOrderCircuitBreakerRejection(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 5
	cb, err := resilience.NewCircuitBreaker(cfg)
	require.NoError(t, err)
	gate := resilience.NewGate(cb, resilience.NewRateLimiter(1000, time.Minute), nil)

	h := NewHubnet(config.ProviderConfig{BaseURL: srv.URL}, gate, srv.Client())
	req := model.OrderRequest{Recipient: "0551234567", Network: model.NetworkMTN, SizeGB: 1}

	for i := 0; i < 5; i++ {
		resp := h.CreateOrder(context.Background(), req)
		require.Equal(t, model.ErrorKindAPIError, resp.ErrorKind)
	}

	// The 6th attempt is rejected without an outbound call.
	resp := h.CreateOrder(context.Background(), req)
	assert.Equal(t, model.ErrorKindCircuitBreaker, resp.ErrorKind)
	assert.Equal(t, 5, calls)
}

func TestHubnetCheckOrderStatusLocatesInListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		w.Write([]byte(`{"orders":[
			{"order_id":"100","status":"pending"},
			{"order_id":200,"status":"delivered","message":"done and dusted"},
			{"order_id":"300","status":"failed"}
		]}`))
	}))
	defer srv.Close()

	h := newHubnetAgainst(t, srv)

	// Numeric id in the listing, string id in the query.
	result, err := h.CheckOrderStatus(context.Background(), "200")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, "delivered", result.RawStatus)
	assert.Equal(t, "done and dusted", result.Message)
	assert.NotEmpty(t, result.Raw)

	_, err = h.CheckOrderStatus(context.Background(), "999")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestHubnetNormalizeStatus(t *testing.T) {
	h := &Hubnet{}
	tests := []struct {
		raw  string
		want model.OrderStatus
	}{
		{raw: "delivered", want: model.StatusCompleted},
		{raw: "SUCCESS", want: model.StatusCompleted},
		{raw: "done", want: model.StatusCompleted},
		{raw: "failed", want: model.StatusFailed},
		{raw: "refunded", want: model.StatusFailed},
		{raw: "pending", want: model.StatusPending},
		{raw: "queued", want: model.StatusProcessing},
		{raw: "something-new", want: model.StatusProcessing},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.NormalizeStatus(tt.raw), "raw %q", tt.raw)
	}
}

func TestHubnetCheckBalance(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *float64
	}{
		{name: "numeric", body: `{"balance":250.5}`, want: ptr(250.5)},
		{name: "string", body: `{"balance":"120"}`, want: ptr(120.0)},
		{name: "unparseable", body: `{"balance":"n/a"}`, want: nil},
		{name: "missing", body: `{}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h := newHubnetAgainst(t, srv)
			got := h.CheckBalance(context.Background())
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func ptr(f float64) *float64 { return &f }
