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

// Package webhook receives provider status callbacks. Every payload is
// authenticated with an HMAC signature over the raw body before any of it is
// processed.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/internal/bundlepress/provider"
	"github.com/innovationmech/bundlepress/internal/bundlepress/repository"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"go.uber.org/zap"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body,
// prefixed with the scheme name.
const SignatureHeader = "X-Fulfillment-Signature"

const signaturePrefix = "sha256="

// StatusApplier applies a reported status to a tracking record. Satisfied by
// *reconcile.Reconciler.
type StatusApplier interface {
	Apply(ctx context.Context, record *model.TrackingRecord, newStatus model.OrderStatus, externalStatus, externalMessage string) (bool, error)
}

// ProviderSource hands out adapters by name, used to normalize the
// provider's status vocabulary. Satisfied by *provider.Factory.
type ProviderSource interface {
	ByName(name string) provider.Provider
}

// Controller handles provider webhook callbacks.
type Controller struct {
	repo      repository.TrackingRepository
	providers ProviderSource
	applier   StatusApplier
	secret    []byte
}

// NewController creates a webhook controller.
func NewController(repo repository.TrackingRepository, providers ProviderSource, applier StatusApplier, secret string) *Controller {
	return &Controller{
		repo:      repo,
		providers: providers,
		applier:   applier,
		secret:    []byte(secret),
	}
}

// Receive handles POST /webhooks/:provider. An unverifiable signature is
// rejected before the body is even parsed; a verified payload for an order
// this service never issued is acknowledged but not processed, so the
// provider stops re-sending it.
func (wc *Controller) Receive(c *gin.Context) {
	providerName := strings.ToLower(c.Param("provider"))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if !wc.verifySignature(body, c.GetHeader(SignatureHeader)) {
		logger.GetLogger().Warn("webhook signature verification failed",
			zap.String("provider", providerName),
			zap.String("remote", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload model.WebhookPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	externalID := payload.Order.ExternalID()
	if externalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order id"})
		return
	}

	record, err := wc.repo.GetByExternalID(c.Request.Context(), providerName, externalID)
	if err != nil {
		logger.GetLogger().Warn("webhook for unknown order",
			zap.String("provider", providerName),
			zap.String("external_id", externalID))
		c.JSON(http.StatusOK, gin.H{"applied": false, "message": "unknown order"})
		return
	}

	status := wc.providers.ByName(providerName).NormalizeStatus(payload.Order.Status)
	applied, err := wc.applier.Apply(c.Request.Context(), record, status, payload.Order.Status, payload.Order.Message)
	if err != nil {
		logger.GetLogger().Error("failed to apply webhook status",
			zap.String("tracking_id", record.ID.String()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applied":     applied,
		"tracking_id": record.ID.String(),
		"status":      status,
	})
}

// verifySignature checks the body HMAC in constant time.
func (wc *Controller) verifySignature(body []byte, header string) bool {
	if len(wc.secret) == 0 || header == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, wc.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// RouteRegistrar wires the webhook endpoint into a router group.
type RouteRegistrar struct {
	controller *Controller
}

// NewRouteRegistrar creates a webhook route registrar.
func NewRouteRegistrar(controller *Controller) *RouteRegistrar {
	return &RouteRegistrar{controller: controller}
}

// RegisterRoutes registers the webhook routes.
func (rr *RouteRegistrar) RegisterRoutes(rg *gin.RouterGroup) error {
	rg.POST("/webhooks/:provider", rr.controller.Receive)
	return nil
}

// GetName returns the registrar name.
func (rr *RouteRegistrar) GetName() string {
	return "webhook-api"
}
