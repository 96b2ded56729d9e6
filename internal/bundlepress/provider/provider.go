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

// Package provider translates canonical bundle orders into the HTTP
// contracts of the external telecom fulfillment providers and maps their
// heterogeneous responses back into the canonical types. Callers only ever
// see the four-state status enum and the structured OrderResponse.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/pkg/resilience"
)

// requestTimeout bounds every outbound provider call.
const requestTimeout = 30 * time.Second

// StatusResult is the canonicalized answer of a provider status lookup.
type StatusResult struct {
	Status    model.OrderStatus
	RawStatus string
	Message   string
	Raw       json.RawMessage
}

// Provider is the strategy interface every fulfillment adapter implements.
// Adapters are stateless aside from the shared resilience gate, so
// constructing one per call is cheap.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req model.OrderRequest) model.OrderResponse
	CheckOrderStatus(ctx context.Context, externalID string) (*StatusResult, error)
	// CheckBalance is advisory; it returns nil on any failure instead of
	// an error, since balance never gates a submission.
	CheckBalance(ctx context.Context) *float64
	NormalizeStatus(raw string) model.OrderStatus
}

// ErrOrderNotFound is returned when a status lookup cannot locate the
// external id at the provider.
var ErrOrderNotFound = errors.New("order not found at provider")

// apiError marks a response the provider returned but rejected, as opposed
// to a transport fault.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("provider rejected request (HTTP %d): %s", e.status, e.message)
	}
	return fmt.Sprintf("provider rejected request: %s", e.message)
}

// newAPIError wraps a provider-side rejection.
func newAPIError(status int, message string) error {
	return &apiError{status: status, message: message}
}

// kindForError classifies an error from a gate-guarded call into the
// canonical error kinds. Anything that is neither a gate rejection nor an
// explicit provider rejection is a transport fault.
func kindForError(err error) model.ErrorKind {
	var api *apiError
	switch {
	case errors.Is(err, resilience.ErrOpenState), errors.Is(err, resilience.ErrTooManyRequests):
		return model.ErrorKindCircuitBreaker
	case errors.Is(err, resilience.ErrRateLimited):
		return model.ErrorKindRateLimit
	case errors.As(err, &api):
		return model.ErrorKindAPIError
	default:
		return model.ErrorKindNetworkError
	}
}

// failure builds a canonical failed OrderResponse.
func failure(provider, traceID string, kind model.ErrorKind, message string) model.OrderResponse {
	return model.OrderResponse{
		Success:   false,
		Message:   message,
		ErrorKind: kind,
		TraceID:   traceID,
		Provider:  provider,
	}
}

// newReference issues the idempotency token sent along with every order.
func newReference() string {
	return "BP-" + uuid.NewString()
}

// ensureTraceID returns the request's trace id, minting one when absent.
func ensureTraceID(req model.OrderRequest) string {
	if req.TraceID != "" {
		return req.TraceID
	}
	return uuid.NewString()
}

// newHTTPClient builds the shared client with the fixed request timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// doJSON performs an HTTP exchange with a JSON body and decodes the response
// into out. Non-2xx statuses become apiErrors carrying the response body;
// transport failures pass through untouched so they classify as network
// errors. The raw response body is returned for snapshotting.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body, out any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, newAPIError(resp.StatusCode, string(raw))
	}

	if out != nil {
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(out); err != nil {
			return raw, newAPIError(resp.StatusCode, fmt.Sprintf("undecodable response body: %v", err))
		}
	}
	return raw, nil
}

// parseNumber parses a number a provider may send as a JSON number or a
// string. Returns nil when the value cannot be interpreted.
func parseNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
