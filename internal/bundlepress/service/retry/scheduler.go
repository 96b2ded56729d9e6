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

// Package retry resubmits failed fulfillments with escalating backoff. A
// retry reuses the original tracking row, so an order keeps a single history
// no matter how many attempts it takes.
package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/internal/bundlepress/provider"
	"github.com/innovationmech/bundlepress/internal/bundlepress/repository"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"github.com/innovationmech/bundlepress/pkg/resilience"
	"go.uber.org/zap"
)

var (
	// ErrNotRetryable is returned when the record is not in a failed state.
	ErrNotRetryable = errors.New("record is not in a retryable state")
	// ErrRetriesExhausted is returned once the attempt budget is spent; the
	// record is flagged for manual review and left otherwise unchanged.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")
	// ErrBackoffPending is returned while the record's backoff window is
	// still open.
	ErrBackoffPending = errors.New("retry backoff window still open")
)

// ProviderResolver yields the adapter resubmissions go to. Satisfied by
// *provider.Factory. Retries deliberately target the currently active
// provider, which may differ from the one that failed.
type ProviderResolver interface {
	Resolve(ctx context.Context) provider.Provider
}

// Scheduler retries failed fulfillments.
type Scheduler struct {
	repo        repository.TrackingRepository
	resolver    ProviderResolver
	schedule    resilience.Schedule
	maxAttempts int
	now         func() time.Time
}

// NewScheduler creates a retry scheduler.
func NewScheduler(repo repository.TrackingRepository, resolver ProviderResolver, schedule resilience.Schedule, maxAttempts int) *Scheduler {
	if len(schedule) == 0 {
		schedule = resilience.DefaultSchedule()
	}
	return &Scheduler{
		repo:        repo,
		resolver:    resolver,
		schedule:    schedule,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Resubmit retries one failed record by id. On success the same row is
// rewound to pending under the new external id and provider; the retry
// counter and timestamp always advance with the attempt.
func (s *Scheduler) Resubmit(ctx context.Context, recordID string) error {
	record, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("load tracking record: %w", err)
	}
	if record.Status != model.StatusFailed {
		return fmt.Errorf("%w: status is %s", ErrNotRetryable, record.Status)
	}

	if record.RetryCount >= s.maxAttempts {
		if !record.NeedsReview {
			record.NeedsReview = true
			if err := s.repo.Update(ctx, record); err != nil {
				return fmt.Errorf("flag record for review: %w", err)
			}
			logger.GetLogger().Warn("retries exhausted, flagged for review",
				zap.String("tracking_id", recordID),
				zap.Int("attempts", record.RetryCount))
		}
		return ErrRetriesExhausted
	}

	// The window before attempt N is Schedule[N-1], measured from the last
	// retry, or from the failure itself when no retry has happened yet.
	base := record.UpdatedAt
	if record.LastRetryAt != nil {
		base = *record.LastRetryAt
	}
	wait := s.schedule.Delay(record.RetryCount + 1)
	if elapsed := s.now().Sub(base); elapsed < wait {
		return fmt.Errorf("%w: %s remaining", ErrBackoffPending, wait-elapsed)
	}

	var req model.OrderRequest
	if err := json.Unmarshal([]byte(record.RawRequest), &req); err != nil {
		record.NeedsReview = true
		if uerr := s.repo.Update(ctx, record); uerr != nil {
			logger.GetLogger().Error("failed to flag unreplayable record",
				zap.String("tracking_id", recordID), zap.Error(uerr))
		}
		return fmt.Errorf("original request is not replayable: %w", err)
	}

	p := s.resolver.Resolve(ctx)
	resp := p.CreateOrder(ctx, req)

	// Gate rejections do not consume an attempt; the provider was never
	// actually asked.
	if !resp.Success && (resp.ErrorKind == model.ErrorKindCircuitBreaker || resp.ErrorKind == model.ErrorKindRateLimit) {
		return fmt.Errorf("retry deferred (%s): %s", resp.ErrorKind, resp.Message)
	}

	now := s.now()
	record.RetryCount++
	record.LastRetryAt = &now

	if !resp.Success {
		if err := s.repo.Update(ctx, record); err != nil {
			return fmt.Errorf("record failed attempt: %w", err)
		}
		logger.GetLogger().Warn("retry attempt failed",
			zap.String("tracking_id", recordID),
			zap.Int("attempt", record.RetryCount),
			zap.String("error_kind", string(resp.ErrorKind)),
			zap.String("message", resp.Message))
		return fmt.Errorf("retry attempt failed (%s): %s", resp.ErrorKind, resp.Message)
	}

	record.Provider = resp.Provider
	record.ExternalID = resp.ExternalID
	record.Status = model.StatusPending
	record.ExternalStatus = ""
	record.ExternalMessage = ""
	record.NeedsReview = false
	if raw, err := json.Marshal(resp); err == nil {
		record.RawResponse = string(raw)
	}
	if err := s.repo.Update(ctx, record); err != nil {
		return fmt.Errorf("persist retried record: %w", err)
	}

	logger.GetLogger().Info("order resubmitted",
		zap.String("tracking_id", recordID),
		zap.String("provider", resp.Provider),
		zap.String("external_id", resp.ExternalID),
		zap.Int("attempt", record.RetryCount))
	return nil
}

// SweepFailed retries every eligible failed record. Backoff and exhaustion
// are expected outcomes during a sweep and are not treated as errors.
func (s *Scheduler) SweepFailed(ctx context.Context) {
	records, err := s.repo.ListByStatus(ctx, model.StatusFailed)
	if err != nil {
		logger.GetLogger().Error("failed to list failed records for retry sweep", zap.Error(err))
		return
	}

	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		if record.NeedsReview {
			continue
		}
		err := s.Resubmit(ctx, record.ID.String())
		switch {
		case err == nil:
		case errors.Is(err, ErrBackoffPending), errors.Is(err, ErrRetriesExhausted):
		default:
			logger.GetLogger().Warn("retry sweep attempt failed",
				zap.String("tracking_id", record.ID.String()),
				zap.Error(err))
		}
	}
}

// Run sweeps failed records on the given interval until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.GetLogger().Info("retry loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.GetLogger().Info("retry loop stopped")
			return
		case <-ticker.C:
			s.SweepFailed(ctx)
		}
	}
}
