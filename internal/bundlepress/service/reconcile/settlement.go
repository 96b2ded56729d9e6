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

package reconcile

import (
	"context"

	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// SettlementLog is the built-in destination for fulfillment outcomes. Each
// terminal order becomes one structured settlement entry plus a counter
// sample keyed by owner type and final status, so outcomes are queryable
// from both the logs and /metrics without an external order system.
//
// It satisfies both OrderAggregator and Notifier.
type SettlementLog struct {
	settlements *prometheus.CounterVec
}

// NewSettlementLog creates the settlement sink and registers its counter on
// the given registerer.
func NewSettlementLog(reg prometheus.Registerer) *SettlementLog {
	return &SettlementLog{
		settlements: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "bundlepress",
			Subsystem: "fulfillment",
			Name:      "settlements_total",
			Help:      "Total number of terminal fulfillment outcomes",
		}, []string{"owner_type", "status"}),
	}
}

// UpdateOrderStatus records the terminal outcome for the owning aggregate.
func (s *SettlementLog) UpdateOrderStatus(ctx context.Context, record *model.TrackingRecord, status model.OrderStatus) error {
	s.settlements.WithLabelValues(string(record.OwnerType), string(status)).Inc()
	logger.GetLogger().Info("fulfillment settled",
		zap.String("tracking_id", record.ID.String()),
		zap.String("owner_type", string(record.OwnerType)),
		zap.String("owner_id", record.OwnerID),
		zap.String("provider", record.Provider),
		zap.String("external_id", record.ExternalID),
		zap.String("status", string(status)))
	return nil
}

// NotifyStatusChange logs an applied status change.
func (s *SettlementLog) NotifyStatusChange(record *model.TrackingRecord, status model.OrderStatus) {
	logger.GetLogger().Info("order status changed",
		zap.String("tracking_id", record.ID.String()),
		zap.String("owner_type", string(record.OwnerType)),
		zap.String("owner_id", record.OwnerID),
		zap.String("status", string(status)))
}
