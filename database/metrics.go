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

	"go.opentelemetry.io/otel"

	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/model"
)

// GetInteractionCounts aggregates a seller's interactions by status, priority
// and channel in a single grouping-sets pass.
func (d Datasource) GetInteractionCounts(ctx context.Context, sellerID string) (*model.InteractionCounts, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Aggregating interaction counts")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT
			COALESCE(status, '') AS status,
			COALESCE(priority, '') AS priority,
			COALESCE(channel, '') AS channel,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE needs_response) AS needs_response
		FROM sellerdesk.interactions
		WHERE seller_id = $1
		GROUP BY GROUPING SETS ((status), (priority), (channel))
	`, sellerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to aggregate interaction counts", err)
	}
	defer rows.Close()

	counts := &model.InteractionCounts{
		ByStatus:   make(map[string]int64),
		ByPriority: make(map[string]int64),
		ByChannel:  make(map[string]int64),
	}
	for rows.Next() {
		var status, priority, channel string
		var total, needsResponse int64
		if err := rows.Scan(&status, &priority, &channel, &total, &needsResponse); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan interaction counts", err)
		}
		switch {
		case status != "":
			counts.ByStatus[status] += total
		case priority != "":
			counts.ByPriority[priority] += total
		case channel != "":
			counts.ByChannel[channel] += total
			// the channel grouping partitions every row exactly once
			counts.Total += total
			counts.NeedsResponse += needsResponse
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read interaction counts", err)
	}
	return counts, nil
}

// GetEventTypeCounts tallies a seller's audit trail by event type. The event
// table is append-only, so these counts are lifetime totals.
func (d Datasource) GetEventTypeCounts(ctx context.Context, sellerID string) (map[string]int64, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Aggregating event type counts")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT e.event_type, COUNT(*) AS total
		FROM sellerdesk.interaction_events e
		JOIN sellerdesk.interactions i ON i.interaction_id = e.interaction_id
		WHERE i.seller_id = $1
		GROUP BY e.event_type
	`, sellerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to aggregate event counts", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var total int64
		if err := rows.Scan(&eventType, &total); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan event counts", err)
		}
		counts[eventType] = total
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read event counts", err)
	}
	return counts, nil
}

// GetLinkCounts aggregates a seller's link edges by type and splits them by
// the action-mode rule: only deterministic edges at or above the action
// threshold qualify for automation.
func (d Datasource) GetLinkCounts(ctx context.Context, sellerID string, actionThreshold float64) (*model.LinkCounts, error) {
	ctx, span := otel.Tracer("Link").Start(ctx, "Aggregating link counts")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT lc.link_type,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE lc.link_type = 'deterministic' AND lc.confidence >= $2) AS auto_eligible
		FROM sellerdesk.link_candidates lc
		JOIN sellerdesk.interactions i ON i.interaction_id = lc.interaction_a_id
		WHERE i.seller_id = $1
		GROUP BY lc.link_type
	`, sellerID, actionThreshold)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to aggregate link counts", err)
	}
	defer rows.Close()

	counts := &model.LinkCounts{}
	for rows.Next() {
		var linkType string
		var total, autoEligible int64
		if err := rows.Scan(&linkType, &total, &autoEligible); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan link counts", err)
		}
		counts.Total += total
		counts.AutoEligible += autoEligible
		switch linkType {
		case model.LinkTypeDeterministic:
			counts.Deterministic += total
		case model.LinkTypeProbabilistic:
			counts.Probabilistic += total
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read link counts", err)
	}
	counts.AssistOnly = counts.Total - counts.AutoEligible
	return counts, nil
}

// CountOverdueOpen counts a seller's open interactions whose stamped response
// deadline has already passed. Unclassified rows carry no deadline and are
// not counted here; the escalation sweep catches them on age.
func (d Datasource) CountOverdueOpen(ctx context.Context, sellerID string) (int64, error) {
	ctx, span := otel.Tracer("Interaction").Start(ctx, "Counting overdue open interactions")
	defer span.End()

	var total int64
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sellerdesk.interactions
		WHERE seller_id = $1
			AND status = 'open'
			AND needs_response
			AND (extra_data #>> '{intent,deadline}') IS NOT NULL
			AND (extra_data #>> '{intent,deadline}')::timestamptz < NOW()
	`, sellerID).Scan(&total)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count overdue interactions", err)
	}
	return total, nil
}
