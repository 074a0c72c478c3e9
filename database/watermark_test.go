/*
Copyright 2024 SellerDesk Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/sellerdesk/sellerdesk/model"
)

func TestGetSyncWatermark_FirstSyncReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.sync_watermarks").
		WithArgs("seller_1", model.ChannelReview).
		WillReturnError(sql.ErrNoRows)

	wm, err := ds.GetSyncWatermark(context.TODO(), "seller_1", model.ChannelReview)
	assert.NoError(t, err)
	assert.Nil(t, wm, "a never-synced pair means full backfill, not an error")
}

func TestGetSyncWatermark_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()
	occurred := now.Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.sync_watermarks").
		WithArgs("seller_1", model.ChannelChat).
		WillReturnRows(sqlmock.NewRows([]string{
			"seller_id", "channel", "last_occurred_at", "last_synced_at", "last_error", "updated_at",
		}).AddRow("seller_1", "chat", occurred, now, "", now))

	wm, err := ds.GetSyncWatermark(context.TODO(), "seller_1", model.ChannelChat)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelChat, wm.Channel)
	assert.WithinDuration(t, occurred, *wm.LastOccurredAt, time.Second)
}

func TestSaveSyncWatermark_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()
	wm := &model.SyncWatermark{
		SellerID:       "seller_1",
		Channel:        model.ChannelReview,
		LastOccurredAt: &now,
		LastSyncedAt:   &now,
		LastError:      "",
	}

	mock.ExpectExec("INSERT INTO sellerdesk.sync_watermarks").
		WithArgs("seller_1", model.ChannelReview, wm.LastOccurredAt, wm.LastSyncedAt, "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.SaveSyncWatermark(context.TODO(), wm)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSyncWatermarks_AllChannels(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.sync_watermarks").
		WithArgs("seller_1").
		WillReturnRows(sqlmock.NewRows([]string{
			"seller_id", "channel", "last_occurred_at", "last_synced_at", "last_error", "updated_at",
		}).
			AddRow("seller_1", "chat", now, now, "", now).
			AddRow("seller_1", "question", now, now, "timeout contacting channel", now).
			AddRow("seller_1", "review", now, now, "", now))

	watermarks, err := ds.GetSyncWatermarks(context.TODO(), "seller_1")
	assert.NoError(t, err)
	assert.Len(t, watermarks, 3)
	assert.Equal(t, "timeout contacting channel", watermarks[1].LastError)
}
