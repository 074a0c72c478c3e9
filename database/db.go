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
	"database/sql"
	"log"
	"sync"

	"github.com/sellerdesk/sellerdesk/cache"
	"github.com/sellerdesk/sellerdesk/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		ca, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("cache unavailable, reads go straight to the database: %v", errCache)
		}
		instance = &Datasource{Conn: con, Cache: ca}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error ❌: %v", err)
		return nil, err
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	if err := createInteractionTable(db); err != nil {
		return nil, err
	}
	if err := createInteractionEventTable(db); err != nil {
		return nil, err
	}
	if err := createLinkCandidateTable(db); err != nil {
		return nil, err
	}
	if err := createSyncWatermarkTable(db); err != nil {
		return nil, err
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS sellerdesk`)
	if err != nil {
		log.Printf("Error creating schema: %v", err)
	}
	return err
}

// createInteractionTable creates a PostgreSQL table for the Interaction struct.
// The identity key (seller_id, marketplace, channel, external_id) carries the
// unique index that makes ingestion idempotent.
func createInteractionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sellerdesk.interactions (
			id SERIAL PRIMARY KEY,
			interaction_id TEXT NOT NULL UNIQUE,
			seller_id TEXT NOT NULL,
			marketplace TEXT NOT NULL,
			channel TEXT NOT NULL CHECK (channel IN ('review', 'question', 'chat')),
			external_id TEXT NOT NULL,
			customer_id TEXT,
			customer_name TEXT,
			order_id TEXT,
			product_id TEXT,
			rating INT,
			text TEXT,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			needs_response BOOLEAN NOT NULL DEFAULT FALSE,
			occurred_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			source TEXT,
			extra_data JSONB,
			UNIQUE (seller_id, marketplace, channel, external_id)
		)
	`)
	if err != nil {
		log.Printf("Error creating interactions table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_interactions_link_scope
		ON sellerdesk.interactions (seller_id, occurred_at)
	`)
	if err != nil {
		log.Printf("Error creating interactions index: %v", err)
	}
	return err
}

// createInteractionEventTable creates a PostgreSQL table for the append-only
// interaction event log.
func createInteractionEventTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sellerdesk.interaction_events (
			id SERIAL PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			interaction_id TEXT NOT NULL REFERENCES sellerdesk.interactions(interaction_id),
			event_type TEXT NOT NULL,
			details JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating interaction_events table: %v", err)
	}
	return err
}

// createLinkCandidateTable creates a PostgreSQL table for link edges. Edges
// are stored once in canonical order (interaction_a_id < interaction_b_id).
func createLinkCandidateTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sellerdesk.link_candidates (
			id SERIAL PRIMARY KEY,
			link_id TEXT NOT NULL UNIQUE,
			interaction_a_id TEXT NOT NULL REFERENCES sellerdesk.interactions(interaction_id),
			interaction_b_id TEXT NOT NULL REFERENCES sellerdesk.interactions(interaction_id),
			link_type TEXT NOT NULL CHECK (link_type IN ('deterministic', 'probabilistic')),
			confidence DOUBLE PRECISION NOT NULL,
			reasoning_signals JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			CHECK (interaction_a_id < interaction_b_id),
			UNIQUE (interaction_a_id, interaction_b_id)
		)
	`)
	if err != nil {
		log.Printf("Error creating link_candidates table: %v", err)
	}
	return err
}

// createSyncWatermarkTable creates a PostgreSQL table for per-seller
// per-channel incremental sync positions.
func createSyncWatermarkTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sellerdesk.sync_watermarks (
			id SERIAL PRIMARY KEY,
			seller_id TEXT NOT NULL,
			channel TEXT NOT NULL CHECK (channel IN ('review', 'question', 'chat')),
			last_occurred_at TIMESTAMP,
			last_synced_at TIMESTAMP,
			last_error TEXT,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (seller_id, channel)
		)
	`)
	if err != nil {
		log.Printf("Error creating sync_watermarks table: %v", err)
	}
	return err
}
