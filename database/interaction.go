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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/model"
)

const interactionColumns = `interaction_id, seller_id, marketplace, channel, external_id,
		customer_id, customer_name, order_id, product_id, rating, text,
		status, priority, needs_response, occurred_at, created_at, updated_at, source, extra_data`

// RecordInteraction upserts an interaction keyed by its identity tuple. A
// conflicting insert updates the mutable upstream fields and the extra data
// document the caller prepared; the original interaction_id survives. The
// returned bool is true when a new row was created.
func (d Datasource) RecordInteraction(ctx context.Context, in *model.Interaction) (*model.Interaction, bool, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Saving interaction to db")
	defer span.End()

	extraDataJSON, err := json.Marshal(in.ExtraData)
	if err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal extra data", err)
	}

	var inserted bool
	err = d.Conn.QueryRowContext(ctx, `
		INSERT INTO sellerdesk.interactions (
			interaction_id, seller_id, marketplace, channel, external_id,
			customer_id, customer_name, order_id, product_id, rating, text,
			status, priority, needs_response, occurred_at, created_at, updated_at, source, extra_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW(), $16, $17)
		ON CONFLICT (seller_id, marketplace, channel, external_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			customer_name = EXCLUDED.customer_name,
			order_id = EXCLUDED.order_id,
			product_id = EXCLUDED.product_id,
			rating = EXCLUDED.rating,
			text = EXCLUDED.text,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			needs_response = EXCLUDED.needs_response,
			occurred_at = EXCLUDED.occurred_at,
			updated_at = NOW(),
			extra_data = EXCLUDED.extra_data
		RETURNING interaction_id, created_at, updated_at, (xmax = 0)
	`, in.InteractionID, in.SellerID, in.Marketplace, in.Channel, in.ExternalID,
		in.CustomerID, in.CustomerName, in.OrderID, in.ProductID, in.Rating, in.Text,
		in.Status, in.Priority, in.NeedsResponse, in.OccurredAt, in.Source, extraDataJSON,
	).Scan(&in.InteractionID, &in.CreatedAt, &in.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record interaction", err)
	}

	d.invalidateInteraction(ctx, in.InteractionID)
	return in, inserted, nil
}

// GetInteraction retrieves an interaction by its ID, read-through cached.
func (d Datasource) GetInteraction(ctx context.Context, id string) (*model.Interaction, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Fetching interaction from db")
	defer span.End()

	cacheKey := interactionCacheKey(id)
	if d.Cache != nil {
		cached := &model.Interaction{}
		if err := d.Cache.Get(ctx, cacheKey, cached); err == nil && cached.InteractionID != "" {
			return cached, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+interactionColumns+`
		FROM sellerdesk.interactions
		WHERE interaction_id = $1
	`, id)

	in, err := scanInteractionRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Interaction with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan interaction data", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, cacheKey, in, 5*time.Minute)
	}
	return in, nil
}

func interactionCacheKey(id string) string {
	return "interaction:" + id
}

// invalidateInteraction drops the cached copy after a write.
func (d Datasource) invalidateInteraction(ctx context.Context, id string) {
	if d.Cache == nil {
		return
	}
	_ = d.Cache.Delete(ctx, interactionCacheKey(id))
}

// GetInteractionByIdentity retrieves an interaction by its identity tuple.
// Returns (nil, nil) when no row exists; ingestion treats that as "create".
func (d Datasource) GetInteractionByIdentity(ctx context.Context, sellerID, marketplace string, channel model.Channel, externalID string) (*model.Interaction, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Fetching interaction by identity key")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+interactionColumns+`
		FROM sellerdesk.interactions
		WHERE seller_id = $1 AND marketplace = $2 AND channel = $3 AND external_id = $4
	`, sellerID, marketplace, channel, externalID)

	in, err := scanInteractionRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan interaction data", err)
	}
	return in, nil
}

// GetAllInteractions retrieves interactions matching the filter, newest first.
func (d Datasource) GetAllInteractions(ctx context.Context, filter model.InteractionFilter, limit, offset int) ([]*model.Interaction, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Fetching interactions with filter")
	defer span.End()

	var conditions []string
	var args []interface{}

	addCondition := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.SellerID != "" {
		addCondition("seller_id", filter.SellerID)
	}
	if filter.Marketplace != "" {
		addCondition("marketplace", filter.Marketplace)
	}
	if filter.Channel != "" {
		addCondition("channel", filter.Channel)
	}
	if filter.Status != "" {
		addCondition("status", filter.Status)
	}
	if filter.Priority != "" {
		addCondition("priority", filter.Priority)
	}
	if filter.NeedsResponse != nil {
		addCondition("needs_response", *filter.NeedsResponse)
	}

	query := `SELECT ` + interactionColumns + ` FROM sellerdesk.interactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch interactions", err)
	}
	defer rows.Close()

	return scanInteractionRows(rows)
}

// GetLinkScope retrieves same-seller interactions that share a customer,
// order or product with the given interaction and occurred within the window
// around it. The interaction itself is excluded.
func (d Datasource) GetLinkScope(ctx context.Context, in *model.Interaction, windowDays int) ([]*model.Interaction, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Fetching link scope interactions")
	defer span.End()

	window := time.Duration(windowDays) * 24 * time.Hour
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+interactionColumns+`
		FROM sellerdesk.interactions
		WHERE seller_id = $1
		  AND interaction_id != $2
		  AND occurred_at BETWEEN $3 AND $4
		  AND (
			(customer_id != '' AND customer_id = $5)
			OR (order_id != '' AND order_id = $6)
			OR (product_id != '' AND product_id = $7)
		  )
		ORDER BY occurred_at DESC
	`, in.SellerID, in.InteractionID, in.OccurredAt.Add(-window), in.OccurredAt.Add(window),
		in.CustomerID, in.OrderID, in.ProductID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch link scope", err)
	}
	defer rows.Close()

	return scanInteractionRows(rows)
}

// GetOpenInteractionsOlderThan retrieves unanswered interactions that
// occurred before the cutoff. Feeds the escalation sweep.
func (d Datasource) GetOpenInteractionsOlderThan(ctx context.Context, sellerID string, cutoff time.Time) ([]*model.Interaction, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Fetching overdue interactions")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+interactionColumns+`
		FROM sellerdesk.interactions
		WHERE seller_id = $1
		  AND needs_response = TRUE
		  AND status = $2
		  AND occurred_at < $3
		ORDER BY occurred_at ASC
	`, sellerID, model.StatusOpen, cutoff)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch overdue interactions", err)
	}
	defer rows.Close()

	return scanInteractionRows(rows)
}

// UpdateInteractionStatus updates the status of an interaction.
func (d Datasource) UpdateInteractionStatus(ctx context.Context, id string, status string) error {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Updating interaction status")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE sellerdesk.interactions
		SET status = $2, updated_at = NOW()
		WHERE interaction_id = $1
	`, id, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update interaction status", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Interaction with ID '%s' not found", id), nil)
	}
	d.invalidateInteraction(ctx, id)
	return nil
}

// UpdateInteractionPriority updates the priority of an interaction and the
// stored reason for the assignment.
func (d Datasource) UpdateInteractionPriority(ctx context.Context, id string, priority string, reason string) error {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Updating interaction priority")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE sellerdesk.interactions
		SET priority = $2,
		    extra_data = COALESCE(extra_data, '{}'::jsonb) || jsonb_build_object('priority_reason', $3::text),
		    updated_at = NOW()
		WHERE interaction_id = $1
	`, id, priority, reason)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update interaction priority", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Interaction with ID '%s' not found", id), nil)
	}
	d.invalidateInteraction(ctx, id)
	return nil
}

// UpdateInteractionExtraData replaces the extra data document of an
// interaction. Callers merge before writing.
func (d Datasource) UpdateInteractionExtraData(ctx context.Context, id string, extraData map[string]interface{}) error {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Updating interaction extra data")
	defer span.End()

	extraDataJSON, err := json.Marshal(extraData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal extra data", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		UPDATE sellerdesk.interactions
		SET extra_data = $1, updated_at = NOW()
		WHERE interaction_id = $2
	`, extraDataJSON, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update interaction extra data", err)
	}
	d.invalidateInteraction(ctx, id)
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInteraction(scanner rowScanner) (*model.Interaction, error) {
	in := &model.Interaction{}
	var extraDataJSON []byte
	var customerID, customerName, orderID, productID, source sql.NullString
	var rating sql.NullInt64

	err := scanner.Scan(
		&in.InteractionID, &in.SellerID, &in.Marketplace, &in.Channel, &in.ExternalID,
		&customerID, &customerName, &orderID, &productID, &rating, &in.Text,
		&in.Status, &in.Priority, &in.NeedsResponse, &in.OccurredAt,
		&in.CreatedAt, &in.UpdatedAt, &source, &extraDataJSON,
	)
	if err != nil {
		return nil, err
	}

	in.CustomerID = customerID.String
	in.CustomerName = customerName.String
	in.OrderID = orderID.String
	in.ProductID = productID.String
	in.Rating = int(rating.Int64)
	in.Source = source.String

	if len(extraDataJSON) > 0 {
		if err := json.Unmarshal(extraDataJSON, &in.ExtraData); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func scanInteractionRow(row *sql.Row) (*model.Interaction, error) {
	return scanInteraction(row)
}

func scanInteractionRows(rows *sql.Rows) ([]*model.Interaction, error) {
	var interactions []*model.Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan interaction data", err)
		}
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating interactions", err)
	}
	return interactions, nil
}
