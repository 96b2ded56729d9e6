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

package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Network identifies the target mobile network of a bundle.
type Network string

const (
	NetworkMTN     Network = "MTN"
	NetworkTelecel Network = "TELECEL"
	NetworkAT      Network = "AT"
)

// ParseNetwork maps a raw network string to a Network value.
func ParseNetwork(s string) (Network, error) {
	switch Network(strings.ToUpper(strings.TrimSpace(s))) {
	case NetworkMTN:
		return NetworkMTN, nil
	case NetworkTelecel:
		return NetworkTelecel, nil
	case NetworkAT:
		return NetworkAT, nil
	default:
		return "", fmt.Errorf("unknown network: %q", s)
	}
}

// OwnerType names the aggregate a fulfillment belongs to.
type OwnerType string

const (
	OwnerTypeShop OwnerType = "shop"
	OwnerTypeBulk OwnerType = "bulk"
)

// ErrorKind classifies a fulfillment failure for the caller.
type ErrorKind string

const (
	// ErrorKindValidation marks malformed input; never retried automatically.
	ErrorKindValidation ErrorKind = "VALIDATION"
	// ErrorKindCircuitBreaker marks a call rejected because the provider is
	// presumed down.
	ErrorKindCircuitBreaker ErrorKind = "CIRCUIT_BREAKER"
	// ErrorKindRateLimit marks a call rejected by local throttling.
	ErrorKindRateLimit ErrorKind = "RATE_LIMIT"
	// ErrorKindAPIError marks an explicit provider rejection; retryable.
	ErrorKindAPIError ErrorKind = "API_ERROR"
	// ErrorKindNetworkError marks a transport fault or timeout; retryable.
	ErrorKindNetworkError ErrorKind = "NETWORK_ERROR"
	// ErrorKindSystemError marks an unexpected internal fault.
	ErrorKindSystemError ErrorKind = "SYSTEM_ERROR"
)

// OrderRequest is the canonical bundle purchase request handed to an adapter.
type OrderRequest struct {
	Recipient string    `json:"recipient"`
	Network   Network   `json:"network"`
	SizeGB    float64   `json:"size_gb"`
	TraceID   string    `json:"trace_id,omitempty"`
	OwnerType OwnerType `json:"owner_type"`
	OwnerID   string    `json:"owner_id"`
}

// OrderResponse is the canonical result of a submission attempt. Adapters
// normalize every provider-specific response shape into this type; the
// orchestrator never throws across its boundary.
type OrderResponse struct {
	Success    bool      `json:"success"`
	ExternalID string    `json:"external_id,omitempty"`
	Message    string    `json:"message"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	TraceID    string    `json:"trace_id"`
	Provider   string    `json:"provider"`
}

// FormatExternalID renders a provider-issued order id as a string. Providers
// disagree on whether ids are numbers or strings, so every id is normalized
// before comparison or storage.
func FormatExternalID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return fmt.Sprintf("%v", id)
	}
}
