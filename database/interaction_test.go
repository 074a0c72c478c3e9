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
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/model"
)

func interactionRowColumns() []string {
	return []string{
		"interaction_id", "seller_id", "marketplace", "channel", "external_id",
		"customer_id", "customer_name", "order_id", "product_id", "rating", "text",
		"status", "priority", "needs_response", "occurred_at", "created_at", "updated_at",
		"source", "extra_data",
	}
}

func sampleInteraction() *model.Interaction {
	return &model.Interaction{
		InteractionID: "int_123",
		SellerID:      "seller_1",
		Marketplace:   "testmarket",
		Channel:       model.ChannelReview,
		ExternalID:    "r1",
		CustomerID:    "cust_1",
		CustomerName:  "Анна П.",
		OrderID:       "ord_1",
		ProductID:     "prod_1",
		Rating:        2,
		Text:          "Товар пришёл с браком",
		Status:        model.StatusOpen,
		Priority:      model.PriorityHigh,
		NeedsResponse: true,
		OccurredAt:    time.Now(),
		Source:        model.SourcePrimaryAPI,
	}
}

func TestRecordInteraction_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	in := sampleInteraction()

	mock.ExpectQuery("INSERT INTO sellerdesk.interactions").
		WillReturnRows(sqlmock.NewRows([]string{"interaction_id", "created_at", "updated_at", "?column?"}).
			AddRow(in.InteractionID, time.Now(), time.Now(), true))

	got, created, err := ds.RecordInteraction(context.TODO(), in)
	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "int_123", got.InteractionID)
}

func TestRecordInteraction_ConflictKeepsExistingID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	in := sampleInteraction()

	// the upsert returns the surviving row's id, not the candidate's
	mock.ExpectQuery("INSERT INTO sellerdesk.interactions").
		WillReturnRows(sqlmock.NewRows([]string{"interaction_id", "created_at", "updated_at", "?column?"}).
			AddRow("int_existing", time.Now(), time.Now(), false))

	got, created, err := ds.RecordInteraction(context.TODO(), in)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "int_existing", got.InteractionID)
}

func TestRecordInteraction_Fail(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("INSERT INTO sellerdesk.interactions").
		WillReturnError(fmt.Errorf("failed to insert"))

	_, _, err = ds.RecordInteraction(context.TODO(), sampleInteraction())
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrInternalServer, err.(apierror.APIError).Code)
}

func TestGetInteraction_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.interactions").
		WithArgs("int_123").
		WillReturnRows(sqlmock.NewRows(interactionRowColumns()).
			AddRow("int_123", "seller_1", "testmarket", "review", "r1",
				"cust_1", "Анна П.", "ord_1", "prod_1", 2, "Товар пришёл с браком",
				"open", "high", true, now, now, now, "primary_api",
				[]byte(`{"intent":"defect"}`)))

	in, err := ds.GetInteraction(context.TODO(), "int_123")
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelReview, in.Channel)
	assert.Equal(t, "defect", in.ExtraData["intent"])
}

func TestGetInteraction_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.interactions").
		WithArgs("int_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetInteraction(context.TODO(), "int_missing")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrNotFound, err.(apierror.APIError).Code)
}

func TestGetInteractionByIdentity_MissingIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.interactions").
		WithArgs("seller_1", "testmarket", model.ChannelReview, "r404").
		WillReturnError(sql.ErrNoRows)

	in, err := ds.GetInteractionByIdentity(context.TODO(), "seller_1", "testmarket", model.ChannelReview, "r404")
	assert.NoError(t, err)
	assert.Nil(t, in)
}

func TestGetAllInteractions_Filtered(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.interactions WHERE seller_id = (.+) AND status = (.+) ORDER BY occurred_at DESC").
		WithArgs("seller_1", "open", 20, 0).
		WillReturnRows(sqlmock.NewRows(interactionRowColumns()).
			AddRow("int_123", "seller_1", "testmarket", "review", "r1",
				"cust_1", "Анна П.", "ord_1", "prod_1", 2, "text",
				"open", "high", true, now, now, now, "primary_api", nil))

	list, err := ds.GetAllInteractions(context.TODO(), model.InteractionFilter{
		SellerID: "seller_1",
		Status:   model.StatusOpen,
	}, 20, 0)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "int_123", list[0].InteractionID)
}

func TestUpdateInteractionStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE sellerdesk.interactions").
		WithArgs("int_missing", "responded").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateInteractionStatus(context.TODO(), "int_missing", model.StatusResponded)
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrNotFound, err.(apierror.APIError).Code)
}

func TestUpdateInteractionExtraData_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE sellerdesk.interactions").
		WithArgs([]byte(`{"draft":"hello"}`), "int_123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateInteractionExtraData(context.TODO(), "int_123", map[string]interface{}{"draft": "hello"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
