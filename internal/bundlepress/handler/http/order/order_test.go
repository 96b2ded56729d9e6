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

package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubmitter struct {
	resp       model.OrderResponse
	enqueueErr error
	submitted  []model.OrderRequest
	enqueued   []model.OrderRequest
}

func (s *stubSubmitter) Submit(ctx context.Context, req model.OrderRequest) model.OrderResponse {
	s.submitted = append(s.submitted, req)
	return s.resp
}

func (s *stubSubmitter) Enqueue(ctx context.Context, req model.OrderRequest) (string, error) {
	if s.enqueueErr != nil {
		return "", s.enqueueErr
	}
	s.enqueued = append(s.enqueued, req)
	return "trace-1", nil
}

func newOrderRouter(t *testing.T, submitter *stubSubmitter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	require.NoError(t, NewRouteRegistrar(NewController(submitter)).RegisterRoutes(&engine.RouterGroup))
	return engine
}

func postOrder(engine *gin.Engine, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func validBody() CreateOrderRequest {
	return CreateOrderRequest{
		Recipient: "0241234567",
		Network:   "mtn",
		SizeGB:    5,
		OwnerType: "shop",
		OwnerID:   "shop-1",
	}
}

func TestCreateOrderSynchronous(t *testing.T) {
	submitter := &stubSubmitter{resp: model.OrderResponse{
		Success: true, ExternalID: "EXT-1", Provider: "hubnet", TraceID: "t-1",
	}}
	engine := newOrderRouter(t, submitter)

	w := postOrder(engine, validBody())

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, submitter.submitted, 1)
	assert.Equal(t, model.NetworkMTN, submitter.submitted[0].Network, "network is parsed case-insensitively")
	assert.Equal(t, model.OwnerTypeShop, submitter.submitted[0].OwnerType)
	assert.Empty(t, submitter.enqueued)
}

func TestCreateOrderAsync(t *testing.T) {
	submitter := &stubSubmitter{}
	engine := newOrderRouter(t, submitter)

	body := validBody()
	body.Async = true
	w := postOrder(engine, body)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, submitter.submitted)
	require.Len(t, submitter.enqueued, 1)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "trace-1", resp["trace_id"])
}

func TestCreateOrderAsyncQueueFailure(t *testing.T) {
	submitter := &stubSubmitter{enqueueErr: errors.New("redis down")}
	engine := newOrderRouter(t, submitter)

	body := validBody()
	body.Async = true
	w := postOrder(engine, body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateOrderRejectsBadBody(t *testing.T) {
	engine := newOrderRouter(t, &stubSubmitter{})

	tests := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{name: "missing recipient", mutate: func(r *CreateOrderRequest) { r.Recipient = "" }},
		{name: "zero size", mutate: func(r *CreateOrderRequest) { r.SizeGB = 0 }},
		{name: "unknown network", mutate: func(r *CreateOrderRequest) { r.Network = "vodacom" }},
		{name: "missing owner", mutate: func(r *CreateOrderRequest) { r.OwnerID = "" }},
		{name: "unknown owner type", mutate: func(r *CreateOrderRequest) { r.OwnerType = "vendor" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBody()
			tt.mutate(&body)
			w := postOrder(engine, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateOrderFailureStatusMapping(t *testing.T) {
	tests := []struct {
		kind model.ErrorKind
		want int
	}{
		{kind: model.ErrorKindValidation, want: http.StatusBadRequest},
		{kind: model.ErrorKindCircuitBreaker, want: http.StatusServiceUnavailable},
		{kind: model.ErrorKindRateLimit, want: http.StatusServiceUnavailable},
		{kind: model.ErrorKindAPIError, want: http.StatusBadGateway},
		{kind: model.ErrorKindNetworkError, want: http.StatusBadGateway},
		{kind: model.ErrorKindSystemError, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			submitter := &stubSubmitter{resp: model.OrderResponse{
				Success: false, ErrorKind: tt.kind, Message: "nope",
			}}
			engine := newOrderRouter(t, submitter)

			w := postOrder(engine, validBody())
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
