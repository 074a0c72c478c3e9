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

func TestRecordLinkCandidate_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	lc := model.NewLinkCandidate("int_b", "int_a", model.LinkTypeDeterministic, 0.99, []string{"order_id"})

	// constructor swaps into canonical order
	assert.Equal(t, "int_a", lc.InteractionAID)
	assert.Equal(t, "int_b", lc.InteractionBID)

	mock.ExpectExec("INSERT INTO sellerdesk.link_candidates").
		WithArgs(lc.LinkID, "int_a", "int_b", "deterministic", 0.99, []byte(`["order_id"]`), lc.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RecordLinkCandidate(context.TODO(), lc)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLinkCandidate_WeakerRerunKeepsStoredEdge(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	lc := model.NewLinkCandidate("int_a", "int_b", model.LinkTypeProbabilistic, 0.55, []string{"time_proximity", "name_match"})

	// the upsert must gate type, confidence and signals on the same
	// confidence comparison: a weaker rerun may not downgrade a stored
	// deterministic edge to probabilistic
	mock.ExpectExec(`(?s)ON CONFLICT \(interaction_a_id, interaction_b_id\) DO UPDATE SET\s+link_type = CASE\s+WHEN EXCLUDED\.confidence >= sellerdesk\.link_candidates\.confidence THEN EXCLUDED\.link_type\s+ELSE sellerdesk\.link_candidates\.link_type\s+END,\s+confidence = GREATEST.+reasoning_signals = CASE`).
		WithArgs(lc.LinkID, "int_a", "int_b", "probabilistic", 0.55, []byte(`["time_proximity","name_match"]`), lc.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RecordLinkCandidate(context.TODO(), lc)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLinksForInteraction_BothDirections(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.link_candidates").
		WithArgs("int_b").
		WillReturnRows(sqlmock.NewRows([]string{
			"link_id", "interaction_a_id", "interaction_b_id", "link_type",
			"confidence", "reasoning_signals", "created_at",
		}).
			AddRow("lnk_1", "int_a", "int_b", "deterministic", 0.99, []byte(`["order_id"]`), now).
			AddRow("lnk_2", "int_b", "int_c", "probabilistic", 0.7, []byte(`["time_proximity","name_match"]`), now))

	links, err := ds.GetLinksForInteraction(context.TODO(), "int_b")
	assert.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Equal(t, "int_a", links[0].Other("int_b"))
	assert.Equal(t, "int_c", links[1].Other("int_b"))
	assert.Equal(t, []string{"time_proximity", "name_match"}, links[1].ReasoningSignals)
}

func TestGetLinkByEdge_NormalizesOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.link_candidates").
		WithArgs("int_a", "int_b").
		WillReturnRows(sqlmock.NewRows([]string{
			"link_id", "interaction_a_id", "interaction_b_id", "link_type",
			"confidence", "reasoning_signals", "created_at",
		}).AddRow("lnk_1", "int_a", "int_b", "deterministic", 1.0, []byte(`["product_window"]`), now))

	// query with the ids reversed; lookup still uses canonical order
	lc, err := ds.GetLinkByEdge(context.TODO(), "int_b", "int_a")
	assert.NoError(t, err)
	assert.Equal(t, "lnk_1", lc.LinkID)
}

func TestGetLinkByEdge_MissingIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM sellerdesk.link_candidates").
		WithArgs("int_a", "int_b").
		WillReturnError(sql.ErrNoRows)

	lc, err := ds.GetLinkByEdge(context.TODO(), "int_a", "int_b")
	assert.NoError(t, err)
	assert.Nil(t, lc)
}
