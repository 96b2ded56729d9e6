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

// Package fulfillment orchestrates bundle order submission: it resolves the
// active provider, guards the call so no provider fault ever crosses the
// service boundary, and records every accepted order in the tracking store.
package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/internal/bundlepress/provider"
	"github.com/innovationmech/bundlepress/internal/bundlepress/queue"
	"github.com/innovationmech/bundlepress/internal/bundlepress/repository"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"go.uber.org/zap"
)

// ProviderResolver yields the adapter new submissions go to. Satisfied by
// *provider.Factory.
type ProviderResolver interface {
	Resolve(ctx context.Context) provider.Provider
}

// JobProducer pushes submission jobs for asynchronous processing. Satisfied
// by *queue.Queue.
type JobProducer interface {
	Enqueue(ctx context.Context, job queue.FulfillmentJob) error
}

// Service is the order submission orchestrator.
type Service struct {
	repo         repository.TrackingRepository
	resolver     ProviderResolver
	jobs         JobProducer
	balanceFloor float64
}

// NewService creates a fulfillment service. jobs may be nil when the caller
// only submits synchronously. balanceFloor <= 0 disables the advisory wallet
// check.
func NewService(repo repository.TrackingRepository, resolver ProviderResolver, jobs JobProducer, balanceFloor float64) *Service {
	return &Service{
		repo:         repo,
		resolver:     resolver,
		jobs:         jobs,
		balanceFloor: balanceFloor,
	}
}

// Submit sends one bundle order to the active provider and, when the
// provider accepts it, persists a pending tracking record carrying raw
// request and response snapshots. A rejected or failed submission returns a
// structured response and persists nothing. Submit never panics and never
// returns a Go error to the caller; every failure mode is expressed through
// the response's ErrorKind.
func (s *Service) Submit(ctx context.Context, req model.OrderRequest) (resp model.OrderResponse) {
	if req.TraceID == "" {
		req.TraceID = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error("panic during order submission",
				zap.Any("panic", r),
				zap.String("trace_id", req.TraceID))
			resp = model.OrderResponse{
				Success:   false,
				Message:   fmt.Sprintf("internal error: %v", r),
				ErrorKind: model.ErrorKindSystemError,
				TraceID:   req.TraceID,
			}
		}
	}()

	p := s.resolver.Resolve(ctx)
	s.warnLowBalance(ctx, p)

	resp = p.CreateOrder(ctx, req)
	if !resp.Success {
		logger.GetLogger().Warn("order submission failed",
			zap.String("provider", resp.Provider),
			zap.String("trace_id", resp.TraceID),
			zap.String("error_kind", string(resp.ErrorKind)),
			zap.String("message", resp.Message))
		return resp
	}

	record := &model.TrackingRecord{
		OwnerType:   req.OwnerType,
		OwnerID:     req.OwnerID,
		Provider:    resp.Provider,
		ExternalID:  resp.ExternalID,
		Status:      model.StatusPending,
		RawRequest:  mustJSON(req),
		RawResponse: mustJSON(resp),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		// The provider already accepted the order; losing the tracking row
		// would orphan it, so this is surfaced as a system error even
		// though the bundle may still deliver.
		logger.GetLogger().Error("failed to persist tracking record for accepted order",
			zap.String("provider", resp.Provider),
			zap.String("external_id", resp.ExternalID),
			zap.String("trace_id", resp.TraceID),
			zap.Error(err))
		return model.OrderResponse{
			Success:   false,
			Message:   "order accepted upstream but tracking persistence failed",
			ErrorKind: model.ErrorKindSystemError,
			TraceID:   resp.TraceID,
			Provider:  resp.Provider,
		}
	}

	logger.GetLogger().Info("order submitted",
		zap.String("provider", resp.Provider),
		zap.String("external_id", resp.ExternalID),
		zap.String("tracking_id", record.ID.String()),
		zap.String("trace_id", resp.TraceID))
	return resp
}

// RecordFailure persists a failed tracking record for a queued submission
// the provider rejected, so the retry scheduler owns further attempts
// instead of the job being replayed blind. Rejections that carry no external
// id use the trace id to keep (provider, external_id) unique.
func (s *Service) RecordFailure(ctx context.Context, req model.OrderRequest, resp model.OrderResponse) error {
	externalID := resp.ExternalID
	if externalID == "" {
		externalID = resp.TraceID
	}
	if externalID == "" {
		externalID = uuid.NewString()
	}
	providerName := resp.Provider
	if providerName == "" {
		providerName = "unknown"
	}
	record := &model.TrackingRecord{
		OwnerType:  req.OwnerType,
		OwnerID:    req.OwnerID,
		Provider:   providerName,
		ExternalID: externalID,
		Status:     model.StatusFailed,
		// Validation failures never retry; a system error may mean the
		// provider accepted the order, so resubmitting could double-fulfil.
		NeedsReview: resp.ErrorKind == model.ErrorKindValidation ||
			resp.ErrorKind == model.ErrorKindSystemError,
		ExternalMessage: resp.Message,
		RawRequest:      mustJSON(req),
		RawResponse:     mustJSON(resp),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return fmt.Errorf("record failed submission: %w", err)
	}
	logger.GetLogger().Info("queued submission failure recorded",
		zap.String("tracking_id", record.ID.String()),
		zap.String("trace_id", resp.TraceID),
		zap.String("error_kind", string(resp.ErrorKind)))
	return nil
}

// Enqueue defers a submission to the background worker. The trace id is
// assigned here so the caller can correlate the eventual outcome.
func (s *Service) Enqueue(ctx context.Context, req model.OrderRequest) (string, error) {
	if s.jobs == nil {
		return "", fmt.Errorf("asynchronous submission is not configured")
	}
	if req.TraceID == "" {
		req.TraceID = uuid.NewString()
	}
	if err := s.jobs.Enqueue(ctx, queue.FulfillmentJob{Request: req}); err != nil {
		return "", err
	}
	logger.GetLogger().Info("order enqueued",
		zap.String("trace_id", req.TraceID),
		zap.String("recipient", req.Recipient))
	return req.TraceID, nil
}

// warnLowBalance logs when the provider wallet sits below the configured
// floor. The check is advisory; the provider itself is the authority on
// whether funds suffice.
func (s *Service) warnLowBalance(ctx context.Context, p provider.Provider) {
	if s.balanceFloor <= 0 {
		return
	}
	if bal := p.CheckBalance(ctx); bal != nil && *bal < s.balanceFloor {
		logger.GetLogger().Warn("provider balance below floor",
			zap.String("provider", p.Name()),
			zap.Float64("balance", *bal),
			zap.Float64("floor", s.balanceFloor))
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
