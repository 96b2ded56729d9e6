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

package repository

import (
	"context"

	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"gorm.io/gorm"
)

// TrackingRepository is the interface for the fulfillment tracking store.
type TrackingRepository interface {
	Create(ctx context.Context, record *model.TrackingRecord) error
	Update(ctx context.Context, record *model.TrackingRecord) error
	GetByID(ctx context.Context, id string) (*model.TrackingRecord, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*model.TrackingRecord, error)
	ListByStatus(ctx context.Context, statuses ...model.OrderStatus) ([]*model.TrackingRecord, error)
	ListByOwner(ctx context.Context, ownerType model.OwnerType, ownerID string) ([]*model.TrackingRecord, error)
	// AdvanceStatus applies the monotonic transition rule as a compare-and-
	// swap: the row moves to the new status only while its current status
	// ranks strictly below a terminal target, or at most equal for
	// non-terminal targets. It reports whether the row was updated, so a
	// stale or replayed update shows up as applied=false.
	AdvanceStatus(ctx context.Context, id string, to model.OrderStatus, externalStatus, externalMessage string) (bool, error)
}

// trackingRepository is the implementation of the TrackingRepository interface.
type trackingRepository struct {
	db *gorm.DB
}

// NewTrackingRepository creates a new tracking repository.
func NewTrackingRepository(db *gorm.DB) TrackingRepository {
	return &trackingRepository{db: db}
}

// Create inserts a new tracking record.
func (t trackingRepository) Create(ctx context.Context, record *model.TrackingRecord) error {
	result := t.db.WithContext(ctx).Create(record)
	return result.Error
}

// Update saves all fields of an existing tracking record.
func (t trackingRepository) Update(ctx context.Context, record *model.TrackingRecord) error {
	result := t.db.WithContext(ctx).Save(record)
	return result.Error
}

// GetByID gets a tracking record by its id.
func (t trackingRepository) GetByID(ctx context.Context, id string) (*model.TrackingRecord, error) {
	var record model.TrackingRecord
	result := t.db.WithContext(ctx).Where("id = ?", id).First(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

// GetByExternalID gets a tracking record by provider and external order id.
func (t trackingRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*model.TrackingRecord, error) {
	var record model.TrackingRecord
	result := t.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

// ListByStatus lists tracking records currently in any of the given statuses.
func (t trackingRepository) ListByStatus(ctx context.Context, statuses ...model.OrderStatus) ([]*model.TrackingRecord, error) {
	var records []*model.TrackingRecord
	result := t.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// ListByOwner lists tracking records belonging to one owning aggregate.
func (t trackingRepository) ListByOwner(ctx context.Context, ownerType model.OwnerType, ownerID string) ([]*model.TrackingRecord, error) {
	var records []*model.TrackingRecord
	result := t.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("created_at ASC").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// AdvanceStatus performs the monotonic status CAS at the row level.
func (t trackingRepository) AdvanceStatus(ctx context.Context, id string, to model.OrderStatus, externalStatus, externalMessage string) (bool, error) {
	allowed := allowedCurrentStatuses(to)
	if len(allowed) == 0 {
		return false, nil
	}

	result := t.db.WithContext(ctx).
		Model(&model.TrackingRecord{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(map[string]interface{}{
			"status":           to,
			"external_status":  externalStatus,
			"external_message": externalMessage,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// allowedCurrentStatuses lists the statuses a row may currently hold for the
// given target to be applied. Terminal targets never overwrite a terminal
// row, which is what makes replayed terminal updates no-ops.
func allowedCurrentStatuses(to model.OrderStatus) []model.OrderStatus {
	switch to {
	case model.StatusPending:
		return []model.OrderStatus{model.StatusPending}
	case model.StatusProcessing:
		return []model.OrderStatus{model.StatusPending, model.StatusProcessing}
	case model.StatusCompleted, model.StatusFailed:
		return []model.OrderStatus{model.StatusPending, model.StatusProcessing}
	default:
		return nil
	}
}
