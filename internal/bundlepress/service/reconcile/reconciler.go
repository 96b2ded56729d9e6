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

// Package reconcile converges tracking records with provider-reported order
// statuses. Updates arrive from two directions, webhooks and the polling
// sweep, and both funnel through Apply so the monotonic transition rule and
// the exactly-once terminal propagation hold regardless of source.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/internal/bundlepress/provider"
	"github.com/innovationmech/bundlepress/internal/bundlepress/repository"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"go.uber.org/zap"
)

// ProviderSource hands out adapters by stored provider name. Satisfied by
// *provider.Factory. Reconciliation must reach the provider a record was
// originally submitted to, not whichever one is currently active.
type ProviderSource interface {
	ByName(name string) provider.Provider
}

// OrderAggregator receives the terminal status of a fulfillment exactly once
// so the owning aggregate (shop order, bulk batch) can settle.
type OrderAggregator interface {
	UpdateOrderStatus(ctx context.Context, record *model.TrackingRecord, status model.OrderStatus) error
}

// Notifier is told about applied status changes. Delivery is best-effort and
// asynchronous; a slow or failing notifier never delays reconciliation.
type Notifier interface {
	NotifyStatusChange(record *model.TrackingRecord, status model.OrderStatus)
}

// Reconciler applies status updates and runs the polling sweep.
type Reconciler struct {
	repo       repository.TrackingRepository
	providers  ProviderSource
	aggregator OrderAggregator
	notifier   Notifier
	callDelay  time.Duration

	mu    sync.Mutex
	locks map[string]*recordLock
}

// recordLock serializes updates to one record. refs counts in-flight holders
// so the map entry can be dropped once the last one releases it.
type recordLock struct {
	mu   sync.Mutex
	refs int
}

// NewReconciler creates a reconciler. aggregator and notifier may be nil.
// callDelay spaces out provider calls during a sweep.
func NewReconciler(repo repository.TrackingRepository, providers ProviderSource, aggregator OrderAggregator, notifier Notifier, callDelay time.Duration) *Reconciler {
	return &Reconciler{
		repo:       repo,
		providers:  providers,
		aggregator: aggregator,
		notifier:   notifier,
		callDelay:  callDelay,
		locks:      make(map[string]*recordLock),
	}
}

// lockRecord acquires the mutex serializing updates to one record, so a
// webhook and a sweep racing on the same order apply in sequence. The
// returned func releases the mutex and removes the map entry once no other
// holder remains, keeping the map bounded by in-flight updates.
func (r *Reconciler) lockRecord(id string) (unlock func()) {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &recordLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}

// Apply moves a record to newStatus if the monotonic transition rule allows
// it, and reports whether the row actually changed. On an applied terminal
// transition the owning aggregate is updated and the notifier is told; a
// replayed or out-of-order update is a silent no-op, so neither ever fires
// twice for the same record.
func (r *Reconciler) Apply(ctx context.Context, record *model.TrackingRecord, newStatus model.OrderStatus, externalStatus, externalMessage string) (bool, error) {
	unlock := r.lockRecord(record.ID.String())
	defer unlock()

	if newStatus.Priority() < record.Status.Priority() {
		logger.GetLogger().Info("ignoring status regression",
			zap.String("tracking_id", record.ID.String()),
			zap.String("current", string(record.Status)),
			zap.String("reported", string(newStatus)))
		return false, nil
	}

	applied, err := r.repo.AdvanceStatus(ctx, record.ID.String(), newStatus, externalStatus, externalMessage)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	logger.GetLogger().Info("status advanced",
		zap.String("tracking_id", record.ID.String()),
		zap.String("from", string(record.Status)),
		zap.String("to", string(newStatus)),
		zap.String("external_status", externalStatus))
	record.Status = newStatus
	record.ExternalStatus = externalStatus
	record.ExternalMessage = externalMessage

	if newStatus.IsTerminal() {
		r.propagate(ctx, record, newStatus)
	}
	return true, nil
}

// propagate settles the owning aggregate and notifies listeners for a
// terminal transition. The caller guarantees this runs at most once per
// record.
func (r *Reconciler) propagate(ctx context.Context, record *model.TrackingRecord, status model.OrderStatus) {
	if r.aggregator != nil {
		if err := r.aggregator.UpdateOrderStatus(ctx, record, status); err != nil {
			logger.GetLogger().Error("failed to settle owning order",
				zap.String("tracking_id", record.ID.String()),
				zap.String("owner_type", string(record.OwnerType)),
				zap.String("owner_id", record.OwnerID),
				zap.Error(err))
		}
	}
	if r.notifier != nil {
		notified := *record
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.GetLogger().Error("panic in status notifier", zap.Any("panic", rec))
				}
			}()
			r.notifier.NotifyStatusChange(&notified, status)
		}()
	}
}

// ReconcileRecord polls the record's original provider and applies whatever
// it reports. A provider that no longer knows the order flags the record for
// manual review instead of guessing a status.
func (r *Reconciler) ReconcileRecord(ctx context.Context, record *model.TrackingRecord) error {
	p := r.providers.ByName(record.Provider)
	result, err := p.CheckOrderStatus(ctx, record.ExternalID)
	if err != nil {
		if errors.Is(err, provider.ErrOrderNotFound) {
			logger.GetLogger().Warn("provider no longer knows order, flagging for review",
				zap.String("tracking_id", record.ID.String()),
				zap.String("provider", record.Provider),
				zap.String("external_id", record.ExternalID))
			record.NeedsReview = true
			return r.repo.Update(ctx, record)
		}
		return err
	}

	_, err = r.Apply(ctx, record, result.Status, result.RawStatus, result.Message)
	return err
}

// Sweep reconciles every open record, spacing provider calls by the
// configured delay. Individual failures are logged and skipped so one bad
// record cannot stall the rest.
func (r *Reconciler) Sweep(ctx context.Context) {
	records, err := r.repo.ListByStatus(ctx, model.StatusPending, model.StatusProcessing)
	if err != nil {
		logger.GetLogger().Error("failed to list open records for sweep", zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}
	logger.GetLogger().Info("reconciliation sweep started", zap.Int("records", len(records)))

	for i, record := range records {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && r.callDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.callDelay):
			}
		}
		if err := r.ReconcileRecord(ctx, record); err != nil {
			logger.GetLogger().Warn("failed to reconcile record",
				zap.String("tracking_id", record.ID.String()),
				zap.Error(err))
		}
	}
}

// Run sweeps on the given interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.GetLogger().Info("reconciliation loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.GetLogger().Info("reconciliation loop stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
