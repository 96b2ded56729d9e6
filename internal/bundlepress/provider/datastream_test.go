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

	"github.com/innovationmech/bundlepress/internal/bundlepress/config"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDatastreamAgainst(t *testing.T, srv *httptest.Server) *Datastream {
	t.Helper()
	return NewDatastream(config.ProviderConfig{BaseURL: srv.URL, APIKey: "ds-key"}, openGate(t), srv.Client())
}

func TestDatastreamCreateOrderSuccess(t *testing.T) {
	var captured datastreamPurchaseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/purchase", r.URL.Path)
		assert.Equal(t, "Bearer ds-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"code":200,"message":"accepted","data":{"transaction_id":"DS-555"}}`))
	}))
	defer srv.Close()

	d := newDatastreamAgainst(t, srv)
	resp := d.CreateOrder(context.Background(), model.OrderRequest{
		Recipient: "+233551234567",
		Network:   model.NetworkMTN,
		SizeGB:    2,
		TraceID:   "trace-1",
	})

	assert.True(t, resp.Success)
	assert.Equal(t, "DS-555", resp.ExternalID)
	assert.Equal(t, "trace-1", resp.TraceID, "caller trace id is echoed")
	assert.Equal(t, ProviderDatastream, resp.Provider)

	assert.Equal(t, "0551234567", captured.RecipientMSISDN, "international form folds to local")
	assert.Equal(t, 1, captured.NetworkID, "MTN encodes as numeric id 1")
	assert.Equal(t, 2048, captured.DataMB, "gigabytes convert to megabytes")
	assert.NotEmpty(t, captured.ClientRef)
}

func TestDatastreamCreateOrderEnvelopeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":422,"message":"recipient blacklisted","data":{}}`))
	}))
	defer srv.Close()

	d := newDatastreamAgainst(t, srv)
	resp := d.CreateOrder(context.Background(), model.OrderRequest{
		Recipient: "0551234567", Network: model.NetworkMTN, SizeGB: 1,
	})

	assert.False(t, resp.Success)
	assert.Equal(t, model.ErrorKindAPIError, resp.ErrorKind)
	assert.Equal(t, "recipient blacklisted", resp.Message)
}

func TestDatastreamCheckOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/transactions/DS-555", r.URL.Path)
		w.Write([]byte(`{"code":200,"data":{"transaction_id":"DS-555","status":"IN_PROGRESS","remarks":"crediting"}}`))
	}))
	defer srv.Close()

	d := newDatastreamAgainst(t, srv)
	result, err := d.CheckOrderStatus(context.Background(), "DS-555")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, result.Status)
	assert.Equal(t, "IN_PROGRESS", result.RawStatus)
	assert.Equal(t, "crediting", result.Message)
}

func TestDatastreamCheckOrderStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":404,"message":"no such transaction"}`))
	}))
	defer srv.Close()

	d := newDatastreamAgainst(t, srv)
	_, err := d.CheckOrderStatus(context.Background(), "DS-999")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestDatastreamNormalizeStatus(t *testing.T) {
	d := &Datastream{}
	tests := []struct {
		raw  string
		want model.OrderStatus
	}{
		{raw: "COMPLETED", want: model.StatusCompleted},
		{raw: "successful", want: model.StatusCompleted},
		{raw: "REVERSED", want: model.StatusFailed},
		{raw: "RECEIVED", want: model.StatusPending},
		{raw: "QUEUED", want: model.StatusProcessing},
		{raw: "WEIRD_STATE", want: model.StatusProcessing},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.NormalizeStatus(tt.raw), "raw %q", tt.raw)
	}
}

func TestDatastreamCheckBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/wallet", r.URL.Path)
		w.Write([]byte(`{"code":200,"data":{"wallet_balance":"88.25"}}`))
	}))
	defer srv.Close()

	d := newDatastreamAgainst(t, srv)
	got := d.CheckBalance(context.Background())
	require.NotNil(t, got)
	assert.Equal(t, 88.25, *got)
}

func TestDatastreamCheckBalanceUnparseable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"wallet_balance":{"amount":1}}}`))
	}))
	defer srv.Close()

	d := newDatastreamAgainst(t, srv)
	assert.Nil(t, d.CheckBalance(context.Background()))
}
