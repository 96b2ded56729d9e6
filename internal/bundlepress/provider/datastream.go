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
	"errors"
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

// Datastream fulfills bundles through the Datastream wholesale API.
//
// Datastream encodes networks as numeric ids, takes sizes in megabytes, and
// exposes a per-transaction status endpoint.
type Datastream struct {
	cfg    config.ProviderConfig
	gate   *resilience.Gate
	client *http.Client
}

// NewDatastream creates a Datastream adapter sharing the given gate and client.
func NewDatastream(cfg config.ProviderConfig, gate *resilience.Gate, client *http.Client) *Datastream {
	return &Datastream{cfg: cfg, gate: gate, client: client}
}

// Name returns the provider identifier.
func (d *Datastream) Name() string { return ProviderDatastream }

var datastreamNetworkIDs = map[model.Network]int{
	model.NetworkMTN:     1,
	model.NetworkTelecel: 2,
	model.NetworkAT:      3,
}

type datastreamPurchaseRequest struct {
	RecipientMSISDN string `json:"recipient_msisdn"`
	NetworkID       int    `json:"network_id"`
	DataMB          int    `json:"data_mb"`
	ClientRef       string `json:"client_ref"`
}

type datastreamEnvelope struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    datastreamData `json:"data"`
}

type datastreamData struct {
	TransactionID any    `json:"transaction_id"`
	Status        string `json:"status"`
	Remarks       string `json:"remarks"`
	WalletBalance any    `json:"wallet_balance"`
}

func (d *Datastream) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + d.cfg.APIKey}
}

// CreateOrder submits a bundle purchase, converting whole gigabytes to the
// megabyte units Datastream expects.
func (d *Datastream) CreateOrder(ctx context.Context, req model.OrderRequest) model.OrderResponse {
	traceID := ensureTraceID(req)

	phone, err := NormalizePhone(req.Recipient)
	if err != nil {
		return failure(d.Name(), traceID, model.ErrorKindValidation, err.Error())
	}
	if !MatchesNetwork(phone, req.Network) {
		return failure(d.Name(), traceID, model.ErrorKindValidation,
			fmt.Sprintf("phone %s does not belong to network %s", phone, req.Network))
	}
	volume := int(math.Round(req.SizeGB))
	if volume < 1 {
		return failure(d.Name(), traceID, model.ErrorKindValidation,
			fmt.Sprintf("invalid bundle size: %v GB", req.SizeGB))
	}

	body := datastreamPurchaseRequest{
		RecipientMSISDN: phone,
		NetworkID:       datastreamNetworkIDs[req.Network],
		DataMB:          volume * 1024,
		ClientRef:       newReference(),
	}

	var parsed datastreamEnvelope
	err = d.gate.Execute(ctx, d.Name(), func() error {
		_, callErr := doJSON(ctx, d.client, http.MethodPost, d.cfg.BaseURL+"/v2/purchase", d.headers(), body, &parsed)
		return callErr
	})
	if err != nil {
		return failure(d.Name(), traceID, kindForError(err), err.Error())
	}

	if parsed.Code < 200 || parsed.Code > 299 {
		return failure(d.Name(), traceID, model.ErrorKindAPIError, parsed.Message)
	}

	return model.OrderResponse{
		Success:    true,
		ExternalID: model.FormatExternalID(parsed.Data.TransactionID),
		Message:    parsed.Message,
		TraceID:    traceID,
		Provider:   d.Name(),
	}
}

// CheckOrderStatus queries the per-transaction status endpoint.
func (d *Datastream) CheckOrderStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	var parsed datastreamEnvelope
	var raw []byte
	err := d.gate.Execute(ctx, d.Name(), func() error {
		var callErr error
		raw, callErr = doJSON(ctx, d.client, http.MethodGet,
			d.cfg.BaseURL+"/v2/transactions/"+externalID, d.headers(), nil, &parsed)
		return callErr
	})
	if err != nil {
		var api *apiError
		if errors.As(err, &api) && api.status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: datastream transaction %s", ErrOrderNotFound, externalID)
		}
		return nil, err
	}

	return &StatusResult{
		Status:    d.NormalizeStatus(parsed.Data.Status),
		RawStatus: parsed.Data.Status,
		Message:   parsed.Data.Remarks,
		Raw:       raw,
	}, nil
}

// CheckBalance returns the wallet balance, nil on any failure.
func (d *Datastream) CheckBalance(ctx context.Context) *float64 {
	var parsed datastreamEnvelope
	err := d.gate.Execute(ctx, d.Name(), func() error {
		_, callErr := doJSON(ctx, d.client, http.MethodGet, d.cfg.BaseURL+"/v2/wallet", d.headers(), nil, &parsed)
		return callErr
	})
	if err != nil {
		return nil
	}
	return parseNumber(parsed.Data.WalletBalance)
}

// NormalizeStatus maps Datastream's status vocabulary onto the canonical
// enum. Unrecognized words map to processing rather than failing closed.
func (d *Datastream) NormalizeStatus(raw string) model.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED", "SUCCESSFUL", "DELIVERED":
		return model.StatusCompleted
	case "FAILED", "REJECTED", "REVERSED", "CANCELLED":
		return model.StatusFailed
	case "RECEIVED", "PENDING":
		return model.StatusPending
	case "PROCESSING", "QUEUED", "IN_PROGRESS":
		return model.StatusProcessing
	default:
		logger.GetLogger().Warn("unrecognized datastream status",
			zap.String("provider", d.Name()),
			zap.String("status", raw))
		return model.StatusProcessing
	}
}
