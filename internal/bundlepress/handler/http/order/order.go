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

// Package order exposes the bundle order submission endpoint.
package order

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
)

// Submitter is the fulfillment surface the endpoint drives. Satisfied by
// *fulfillment.Service.
type Submitter interface {
	Submit(ctx context.Context, req model.OrderRequest) model.OrderResponse
	Enqueue(ctx context.Context, req model.OrderRequest) (string, error)
}

// CreateOrderRequest is the submission request body.
type CreateOrderRequest struct {
	Recipient string  `json:"recipient" binding:"required"`
	Network   string  `json:"network" binding:"required"`
	SizeGB    float64 `json:"size_gb" binding:"required,gt=0"`
	OwnerType string  `json:"owner_type" binding:"required,oneof=shop bulk"`
	OwnerID   string  `json:"owner_id" binding:"required"`
	Async     bool    `json:"async"`
}

// Controller handles order submission requests.
type Controller struct {
	submitter Submitter
}

// NewController creates an order controller.
func NewController(submitter Submitter) *Controller {
	return &Controller{submitter: submitter}
}

// CreateOrder handles POST /orders. Synchronous submissions answer with the
// provider outcome; async ones are queued and answered with 202 and the
// trace id to follow up on.
func (oc *Controller) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	network, err := model.ParseNetwork(req.Network)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderReq := model.OrderRequest{
		Recipient: req.Recipient,
		Network:   network,
		SizeGB:    req.SizeGB,
		OwnerType: model.OwnerType(req.OwnerType),
		OwnerID:   req.OwnerID,
	}

	if req.Async {
		trace, err := oc.submitter.Enqueue(c.Request.Context(), orderReq)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue order"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"trace_id": trace})
		return
	}

	resp := oc.submitter.Submit(c.Request.Context(), orderReq)
	if !resp.Success {
		c.JSON(statusForErrorKind(resp.ErrorKind), resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// statusForErrorKind maps a submission failure class to an HTTP status.
func statusForErrorKind(kind model.ErrorKind) int {
	switch kind {
	case model.ErrorKindValidation:
		return http.StatusBadRequest
	case model.ErrorKindCircuitBreaker, model.ErrorKindRateLimit:
		return http.StatusServiceUnavailable
	case model.ErrorKindAPIError, model.ErrorKindNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RouteRegistrar wires the order endpoint into a router group.
type RouteRegistrar struct {
	controller *Controller
}

// NewRouteRegistrar creates an order route registrar.
func NewRouteRegistrar(controller *Controller) *RouteRegistrar {
	return &RouteRegistrar{controller: controller}
}

// RegisterRoutes registers the order routes.
func (rr *RouteRegistrar) RegisterRoutes(rg *gin.RouterGroup) error {
	rg.POST("/orders", rr.controller.CreateOrder)
	return nil
}

// GetName returns the registrar name.
func (rr *RouteRegistrar) GetName() string {
	return "order-api"
}
