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

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the canonical four-state fulfillment lifecycle.
//
// Status only ever advances: pending -> processing -> completed|failed.
// The priority ordering backs the monotonic transition rule that keeps
// racing webhook and polling updates from moving a record backward.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusFailed     OrderStatus = "failed"
)

// Priority returns the rank of a status in the monotonic ordering.
// Unknown statuses rank lowest so they can never displace a known one.
func (s OrderStatus) Priority() int {
	switch s {
	case StatusPending:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return 0
	}
}

// IsTerminal reports whether the status ends the lifecycle.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TrackingRecord is the durable row linking an internally-issued order to a
// provider's external order id and current canonical status. Exactly one
// record exists per submitted order; retries mutate the same row in place so
// an order's history stays in a single place.
type TrackingRecord struct {
	ID              uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	OwnerType       OwnerType   `gorm:"type:varchar(16);not null;index:idx_owner" json:"owner_type"`
	OwnerID         string      `gorm:"type:varchar(64);not null;index:idx_owner" json:"owner_id"`
	Provider        string      `gorm:"type:varchar(32);not null;uniqueIndex:idx_provider_external" json:"provider"`
	ExternalID      string      `gorm:"type:varchar(128);not null;uniqueIndex:idx_provider_external" json:"external_id"`
	Status          OrderStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	RetryCount      int         `gorm:"not null;default:0" json:"retry_count"`
	LastRetryAt     *time.Time  `json:"last_retry_at,omitempty"`
	NeedsReview     bool        `gorm:"not null;default:false" json:"needs_review"`
	RawRequest      string      `gorm:"type:text" json:"raw_request,omitempty"`
	RawResponse     string      `gorm:"type:text" json:"raw_response,omitempty"`
	ExternalStatus  string      `gorm:"type:varchar(64)" json:"external_status,omitempty"`
	ExternalMessage string      `gorm:"type:varchar(255)" json:"external_message,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName sets the table name for TrackingRecord.
func (TrackingRecord) TableName() string {
	return "fulfillment_trackings"
}

// BeforeCreate is a GORM hook that assigns an id before inserting.
func (r *TrackingRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// ProviderSetting is a durable configuration key/value pair. The active
// provider is stored here and read fresh on every factory resolution, so an
// operator can switch providers without a redeploy.
type ProviderSetting struct {
	Key       string    `gorm:"type:varchar(64);primary_key" json:"key"`
	Value     string    `gorm:"type:varchar(255);not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for ProviderSetting.
func (ProviderSetting) TableName() string {
	return "provider_settings"
}

// SettingKeyActiveProvider selects the adapter used for new submissions.
const SettingKeyActiveProvider = "active_provider"
