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

// Package tracking exposes the read and operator surface over the tracking
// store: record lookup, listing, manual retry and the provider wallet check.
package tracking

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/internal/bundlepress/provider"
	"github.com/innovationmech/bundlepress/internal/bundlepress/repository"
	"github.com/innovationmech/bundlepress/internal/bundlepress/service/retry"
)

// Retrier resubmits a failed record by id. Satisfied by *retry.Scheduler.
type Retrier interface {
	Resubmit(ctx context.Context, recordID string) error
}

// ProviderResolver yields the active provider adapter. Satisfied by
// *provider.Factory.
type ProviderResolver interface {
	Resolve(ctx context.Context) provider.Provider
}

// Controller handles tracking API requests.
type Controller struct {
	repo     repository.TrackingRepository
	retrier  Retrier
	resolver ProviderResolver
}

// NewController creates a tracking controller.
func NewController(repo repository.TrackingRepository, retrier Retrier, resolver ProviderResolver) *Controller {
	return &Controller{repo: repo, retrier: retrier, resolver: resolver}
}

// GetTracking handles GET /trackings/:id.
func (tc *Controller) GetTracking(c *gin.Context) {
	record, err := tc.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tracking record not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListTrackings handles GET /trackings filtered by status or by owner.
func (tc *Controller) ListTrackings(c *gin.Context) {
	status := c.Query("status")
	ownerType := c.Query("owner_type")
	ownerID := c.Query("owner_id")

	switch {
	case status != "":
		s := model.OrderStatus(status)
		if s.Priority() == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		records, err := tc.repo.ListByStatus(c.Request.Context(), s)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trackings": records})
	case ownerType != "" && ownerID != "":
		records, err := tc.repo.ListByOwner(c.Request.Context(), model.OwnerType(ownerType), ownerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trackings": records})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status or owner_type and owner_id required"})
	}
}

// RetryTracking handles POST /trackings/:id/retry.
func (tc *Controller) RetryTracking(c *gin.Context) {
	id := c.Param("id")
	if _, err := tc.repo.GetByID(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tracking record not found"})
		return
	}

	err := tc.retrier.Resubmit(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "order resubmitted"})
	case errors.Is(err, retry.ErrNotRetryable), errors.Is(err, retry.ErrRetriesExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, retry.ErrBackoffPending):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// GetProviderBalance handles GET /providers/balance for the active provider.
func (tc *Controller) GetProviderBalance(c *gin.Context) {
	p := tc.resolver.Resolve(c.Request.Context())
	balance := p.CheckBalance(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"provider":  p.Name(),
		"balance":   balance,
		"available": balance != nil,
	})
}

// RouteRegistrar wires the tracking endpoints into a router group.
type RouteRegistrar struct {
	controller *Controller
}

// NewRouteRegistrar creates a tracking route registrar.
func NewRouteRegistrar(controller *Controller) *RouteRegistrar {
	return &RouteRegistrar{controller: controller}
}

// RegisterRoutes registers the tracking routes.
func (rr *RouteRegistrar) RegisterRoutes(rg *gin.RouterGroup) error {
	trackings := rg.Group("/trackings")
	{
		trackings.GET("", rr.controller.ListTrackings)
		trackings.GET("/:id", rr.controller.GetTracking)
		trackings.POST("/:id/retry", rr.controller.RetryTracking)
	}
	rg.GET("/providers/balance", rr.controller.GetProviderBalance)
	return nil
}

// GetName returns the registrar name.
func (rr *RouteRegistrar) GetName() string {
	return "tracking-api"
}
