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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	cleanup := func() {
		sqlDB.Close()
	}

	return gormDB, mock, cleanup
}

func TestNewTrackingRepository(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTrackingRepository(db)
	assert.NotNil(t, repo)
	assert.Implements(t, (*TrackingRepository)(nil), repo)
}

func TestTrackingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTrackingRepository(db)
	record := &model.TrackingRecord{
		OwnerType:  model.OwnerTypeShop,
		OwnerID:    "42",
		Provider:   "hubnet",
		ExternalID: "9001",
		Status:     model.StatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `fulfillment_trackings`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), record)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, record.ID, "BeforeCreate must assign an id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingRepositoryGetByExternalID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTrackingRepository(db)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "provider", "external_id", "status"}).
		AddRow(id.String(), "hubnet", "9001", "processing")
	mock.ExpectQuery("SELECT \\* FROM `fulfillment_trackings` WHERE provider = \\? AND external_id = \\?").
		WithArgs("hubnet", "9001", 1).
		WillReturnRows(rows)

	record, err := repo.GetByExternalID(context.Background(), "hubnet", "9001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingRepositoryAdvanceStatus(t *testing.T) {
	tests := []struct {
		name         string
		to           model.OrderStatus
		rowsAffected int64
		wantApplied  bool
	}{
		{name: "advance_applied", to: model.StatusProcessing, rowsAffected: 1, wantApplied: true},
		{name: "regression_discarded", to: model.StatusPending, rowsAffected: 0, wantApplied: false},
		{name: "terminal_replay_noop", to: model.StatusCompleted, rowsAffected: 0, wantApplied: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			repo := NewTrackingRepository(db)
			id := uuid.New().String()

			mock.ExpectBegin()
			mock.ExpectExec("UPDATE `fulfillment_trackings`").
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))
			mock.ExpectCommit()

			applied, err := repo.AdvanceStatus(context.Background(), id, tt.to, "raw", "msg")
			require.NoError(t, err)
			assert.Equal(t, tt.wantApplied, applied)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAllowedCurrentStatuses(t *testing.T) {
	assert.Equal(t,
		[]model.OrderStatus{model.StatusPending},
		allowedCurrentStatuses(model.StatusPending))
	assert.Equal(t,
		[]model.OrderStatus{model.StatusPending, model.StatusProcessing},
		allowedCurrentStatuses(model.StatusProcessing))
	assert.Equal(t,
		[]model.OrderStatus{model.StatusPending, model.StatusProcessing},
		allowedCurrentStatuses(model.StatusCompleted))
	assert.Equal(t,
		[]model.OrderStatus{model.StatusPending, model.StatusProcessing},
		allowedCurrentStatuses(model.StatusFailed))
	assert.Nil(t, allowedCurrentStatuses(model.OrderStatus("bogus")))
}
