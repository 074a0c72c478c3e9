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

	"go.opentelemetry.io/otel"

	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/model"
)

// GetSyncWatermark retrieves the sync position for one (seller, channel)
// pair. Returns (nil, nil) when the pair has never synced; the controller
// treats that as a full backfill.
func (d Datasource) GetSyncWatermark(ctx context.Context, sellerID string, channel model.Channel) (*model.SyncWatermark, error) {
	ctx, span := otel.Tracer("Watermark").Start(ctx, "Fetching sync watermark")
	defer span.End()

	wm := &model.SyncWatermark{}
	var lastError sql.NullString
	err := d.Conn.QueryRowContext(ctx, `
		SELECT seller_id, channel, last_occurred_at, last_synced_at, last_error, updated_at
		FROM sellerdesk.sync_watermarks
		WHERE seller_id = $1 AND channel = $2
	`, sellerID, channel).Scan(
		&wm.SellerID, &wm.Channel, &wm.LastOccurredAt, &wm.LastSyncedAt, &lastError, &wm.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch sync watermark", err)
	}
	wm.LastError = lastError.String
	return wm, nil
}

// SaveSyncWatermark upserts the sync position for one (seller, channel)
// pair.
func (d Datasource) SaveSyncWatermark(ctx context.Context, wm *model.SyncWatermark) error {
	ctx, span := otel.Tracer("Watermark").Start(ctx, "Saving sync watermark")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO sellerdesk.sync_watermarks (
			seller_id, channel, last_occurred_at, last_synced_at, last_error, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (seller_id, channel) DO UPDATE SET
			last_occurred_at = EXCLUDED.last_occurred_at,
			last_synced_at = EXCLUDED.last_synced_at,
			last_error = EXCLUDED.last_error,
			updated_at = NOW()
	`, wm.SellerID, wm.Channel, wm.LastOccurredAt, wm.LastSyncedAt, wm.LastError)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save sync watermark", err)
	}
	return nil
}

// GetSyncWatermarks retrieves every channel watermark for a seller. Feeds
// the sync status endpoint and the health monitor.
func (d Datasource) GetSyncWatermarks(ctx context.Context, sellerID string) ([]*model.SyncWatermark, error) {
	ctx, span := otel.Tracer("Watermark").Start(ctx, "Fetching sync watermarks for seller")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT seller_id, channel, last_occurred_at, last_synced_at, last_error, updated_at
		FROM sellerdesk.sync_watermarks
		WHERE seller_id = $1
		ORDER BY channel ASC
	`, sellerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch sync watermarks", err)
	}
	defer rows.Close()

	var watermarks []*model.SyncWatermark
	for rows.Next() {
		wm := &model.SyncWatermark{}
		var lastError sql.NullString
		err = rows.Scan(&wm.SellerID, &wm.Channel, &wm.LastOccurredAt, &wm.LastSyncedAt, &lastError, &wm.UpdatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan sync watermark", err)
		}
		wm.LastError = lastError.String
		watermarks = append(watermarks, wm)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating sync watermarks", err)
	}
	return watermarks, nil
}
