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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/sellerdesk/sellerdesk/model"
)

func TestGetEventTypeCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.interaction_events").
		WithArgs("seller_1").
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "total"}).
			AddRow(model.EventIngested, 10).
			AddRow(model.EventReplySent, 4).
			AddRow(model.EventSendBlocked, 1))

	counts, err := ds.GetEventTypeCounts(context.TODO(), "seller_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(10), counts[model.EventIngested])
	assert.Equal(t, int64(4), counts[model.EventReplySent])
	assert.Equal(t, int64(1), counts[model.EventSendBlocked])
}

func TestGetLinkCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// a deterministic edge below the action threshold stays assist-only
	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.link_candidates").
		WithArgs("seller_1", 0.85).
		WillReturnRows(sqlmock.NewRows([]string{"link_type", "total", "auto_eligible"}).
			AddRow(model.LinkTypeDeterministic, 3, 2).
			AddRow(model.LinkTypeProbabilistic, 2, 0))

	counts, err := ds.GetLinkCounts(context.TODO(), "seller_1", 0.85)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), counts.Total)
	assert.Equal(t, int64(3), counts.Deterministic)
	assert.Equal(t, int64(2), counts.Probabilistic)
	assert.Equal(t, int64(2), counts.AutoEligible)
	assert.Equal(t, int64(3), counts.AssistOnly)
}

func TestCountOverdueOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\)(?s).+FROM sellerdesk.interactions").
		WithArgs("seller_1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	total, err := ds.CountOverdueOpen(context.TODO(), "seller_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
