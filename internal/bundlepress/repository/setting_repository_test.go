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
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSettingRepositoryGetValue(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSettingRepository(db)

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow(model.SettingKeyActiveProvider, "datastream")
	mock.ExpectQuery("SELECT \\* FROM `provider_settings`").
		WillReturnRows(rows)

	value, err := repo.GetValue(context.Background(), model.SettingKeyActiveProvider)
	require.NoError(t, err)
	assert.Equal(t, "datastream", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepositoryGetValueMissingKey(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSettingRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `provider_settings`").
		WillReturnError(gorm.ErrRecordNotFound)

	value, err := repo.GetValue(context.Background(), model.SettingKeyActiveProvider)
	require.NoError(t, err, "a missing key is not an error")
	assert.Empty(t, value)
}
