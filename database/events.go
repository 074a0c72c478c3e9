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
	"encoding/json"

	"go.opentelemetry.io/otel"

	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/model"
)

// RecordInteractionEvent appends one audit event. The log is append-only;
// there is no update or delete path.
func (d Datasource) RecordInteractionEvent(ctx context.Context, evt *model.InteractionEvent) error {
	ctx, span := otel.Tracer("Event").Start(ctx, "Saving interaction event to db")
	defer span.End()

	detailsJSON, err := json.Marshal(evt.Details)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal event details", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO sellerdesk.interaction_events (
			event_id, interaction_id, event_type, details, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`, evt.EventID, evt.InteractionID, evt.EventType, detailsJSON, evt.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record interaction event", err)
	}
	return nil
}

// GetInteractionEvents retrieves the audit trail of an interaction, oldest
// first.
func (d Datasource) GetInteractionEvents(ctx context.Context, interactionID string) ([]*model.InteractionEvent, error) {
	ctx, span := otel.Tracer("Event").Start(ctx, "Fetching interaction events")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT event_id, interaction_id, event_type, details, created_at
		FROM sellerdesk.interaction_events
		WHERE interaction_id = $1
		ORDER BY created_at ASC
	`, interactionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch interaction events", err)
	}
	defer rows.Close()

	var events []*model.InteractionEvent
	for rows.Next() {
		evt := &model.InteractionEvent{}
		var detailsJSON []byte
		err = rows.Scan(&evt.EventID, &evt.InteractionID, &evt.EventType, &detailsJSON, &evt.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan interaction event", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &evt.Details); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal event details", err)
			}
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating interaction events", err)
	}
	return events, nil
}
