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
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/innovationmech/bundlepress/internal/bundlepress/config"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"github.com/innovationmech/bundlepress/pkg/resilience"
	"go.uber.org/zap"
)

// Hubnet fulfills bundles through the Hubnet reseller API.
//
// Hubnet speaks symbolic network codes, sizes in whole gigabytes, and only
// exposes a bulk order listing for status lookups, so the adapter filters
// the listing client-side.
type Hubnet struct {
	cfg    config.ProviderConfig
	gate   *resilience.Gate
	client *http.Client
}

// NewHubnet creates a Hubnet adapter sharing the given gate and client.
func NewHubnet(cfg config.ProviderConfig, gate *resilience.Gate, client *http.Client) *Hubnet {
	return &Hubnet{cfg: cfg, gate: gate, client: client}
}

// Name returns the provider identifier.
func (h *Hubnet) Name() string { return ProviderHubnet }

var hubnetNetworkCodes = map[model.Network]string{
	model.NetworkMTN:     "mtn",
	model.NetworkTelecel: "telecel",
	model.NetworkAT:      "at",
}

type hubnetOrderRequest struct {
	Phone     string `json:"phone"`
	Network   string `json:"network"`
	Volume    int    `json:"volume"`
	Reference string `json:"reference"`
}

type hubnetOrderResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	OrderID any    `json:"order_id"`
}

type hubnetOrder struct {
	OrderID any    `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type hubnetOrderList struct {
	Orders []hubnetOrder `json:"orders"`
}

func (h *Hubnet) headers() map[string]string {
	return map[string]string{"X-API-Key": h.cfg.APIKey}
}

// CreateOrder submits a bundle purchase. Input validation fails fast
// without any network call; the gate guards the actual HTTP exchange.
func (h *Hubnet) CreateOrder(ctx context.Context, req model.OrderRequest) model.OrderResponse {
	traceID := ensureTraceID(req)

	phone, err := NormalizePhone(req.Recipient)
	if err != nil {
		return failure(h.Name(), traceID, model.ErrorKindValidation, err.Error())
	}
	if !MatchesNetwork(phone, req.Network) {
		return failure(h.Name(), traceID, model.ErrorKindValidation,
			fmt.Sprintf("phone %s does not belong to network %s", phone, req.Network))
	}
	volume := int(math.Round(req.SizeGB))
	if volume < 1 {
		return failure(h.Name(), traceID, model.ErrorKindValidation,
			fmt.Sprintf("invalid bundle size: %v GB", req.SizeGB))
	}

	body := hubnetOrderRequest{
		Phone:     phone,
		Network:   hubnetNetworkCodes[req.Network],
		Volume:    volume,
		Reference: newReference(),
	}

	var parsed hubnetOrderResponse
	err = h.gate.Execute(ctx, h.Name(), func() error {
		_, callErr := doJSON(ctx, h.client, http.MethodPost, h.cfg.BaseURL+"/api/v1/orders", h.headers(), body, &parsed)
		return callErr
	})
	if err != nil {
		return failure(h.Name(), traceID, kindForError(err), err.Error())
	}

	if !strings.EqualFold(parsed.Status, "success") {
		return failure(h.Name(), traceID, model.ErrorKindAPIError, parsed.Message)
	}

	return model.OrderResponse{
		Success:    true,
		ExternalID: model.FormatExternalID(parsed.OrderID),
		Message:    parsed.Message,
		TraceID:    traceID,
		Provider:   h.Name(),
	}
}

// CheckOrderStatus fetches the full order listing and locates the external
// id client-side, tolerating numeric and string id representations.
func (h *Hubnet) CheckOrderStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	var listing hubnetOrderList
	var raw json.RawMessage
	err := h.gate.Execute(ctx, h.Name(), func() error {
		var callErr error
		raw, callErr = doJSON(ctx, h.client, http.MethodGet, h.cfg.BaseURL+"/api/v1/orders", h.headers(), nil, &listing)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	for _, order := range listing.Orders {
		if model.FormatExternalID(order.OrderID) != externalID {
			continue
		}
		return &StatusResult{
			Status:    h.NormalizeStatus(order.Status),
			RawStatus: order.Status,
			Message:   order.Message,
			Raw:       raw,
		}, nil
	}
	return nil, fmt.Errorf("%w: hubnet order %s", ErrOrderNotFound, externalID)
}

// CheckBalance returns the reseller wallet balance, or nil when the call or
// the parse fails. Balance is advisory only.
func (h *Hubnet) CheckBalance(ctx context.Context) *float64 {
	var parsed struct {
		Balance any `json:"balance"`
	}
	err := h.gate.Execute(ctx, h.Name(), func() error {
		_, callErr := doJSON(ctx, h.client, http.MethodGet, h.cfg.BaseURL+"/api/v1/balance", h.headers(), nil, &parsed)
		return callErr
	})
	if err != nil {
		return nil
	}
	return parseNumber(parsed.Balance)
}

// NormalizeStatus maps Hubnet's status vocabulary onto the canonical enum.
// Unrecognized words map to processing rather than failing closed.
func (h *Hubnet) NormalizeStatus(raw string) model.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivered", "success", "done", "completed":
		return model.StatusCompleted
	case "failed", "error", "cancelled", "canceled", "refunded":
		return model.StatusFailed
	case "pending":
		return model.StatusPending
	case "processing", "queued", "accepted", "in_progress":
		return model.StatusProcessing
	default:
		logger.GetLogger().Warn("unrecognized hubnet status",
			zap.String("provider", h.Name()),
			zap.String("status", raw))
		return model.StatusProcessing
	}
}
