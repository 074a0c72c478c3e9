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

	"go.opentelemetry.io/otel"

	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/model"
)

// RecordLinkCandidate upserts a link edge. Edges arrive in canonical order
// (a < b) from the model constructor. A rerun that scores the same pair at
// least as high replaces the stored type, confidence and signals together; a
// weaker rerun leaves the stored edge untouched.
func (d Datasource) RecordLinkCandidate(ctx context.Context, lc *model.LinkCandidate) error {
	ctx, span := otel.Tracer("Link").Start(ctx, "Saving link candidate to db")
	defer span.End()

	signalsJSON, err := json.Marshal(lc.ReasoningSignals)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal reasoning signals", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO sellerdesk.link_candidates (
			link_id, interaction_a_id, interaction_b_id, link_type,
			confidence, reasoning_signals, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (interaction_a_id, interaction_b_id) DO UPDATE SET
			link_type = CASE
				WHEN EXCLUDED.confidence >= sellerdesk.link_candidates.confidence THEN EXCLUDED.link_type
				ELSE sellerdesk.link_candidates.link_type
			END,
			confidence = GREATEST(sellerdesk.link_candidates.confidence, EXCLUDED.confidence),
			reasoning_signals = CASE
				WHEN EXCLUDED.confidence >= sellerdesk.link_candidates.confidence THEN EXCLUDED.reasoning_signals
				ELSE sellerdesk.link_candidates.reasoning_signals
			END
	`, lc.LinkID, lc.InteractionAID, lc.InteractionBID, lc.LinkType,
		lc.Confidence, signalsJSON, lc.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record link candidate", err)
	}
	return nil
}

// GetLinksForInteraction retrieves every edge touching the interaction,
// highest confidence first. Either column may hold the id.
func (d Datasource) GetLinksForInteraction(ctx context.Context, interactionID string) ([]*model.LinkCandidate, error) {
	ctx, span := otel.Tracer("Link").Start(ctx, "Fetching links for interaction")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT link_id, interaction_a_id, interaction_b_id, link_type,
			confidence, reasoning_signals, created_at
		FROM sellerdesk.link_candidates
		WHERE interaction_a_id = $1 OR interaction_b_id = $1
		ORDER BY confidence DESC
	`, interactionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch links", err)
	}
	defer rows.Close()

	var links []*model.LinkCandidate
	for rows.Next() {
		lc, err := scanLinkCandidate(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan link candidate", err)
		}
		links = append(links, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating link candidates", err)
	}
	return links, nil
}

// GetLinkByEdge retrieves the edge between two interactions regardless of
// argument order. Returns (nil, nil) when no edge exists.
func (d Datasource) GetLinkByEdge(ctx context.Context, aID, bID string) (*model.LinkCandidate, error) {
	ctx, span := otel.Tracer("Link").Start(ctx, "Fetching link by edge")
	defer span.End()

	if bID < aID {
		aID, bID = bID, aID
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT link_id, interaction_a_id, interaction_b_id, link_type,
			confidence, reasoning_signals, created_at
		FROM sellerdesk.link_candidates
		WHERE interaction_a_id = $1 AND interaction_b_id = $2
	`, aID, bID)

	lc, err := scanLinkCandidate(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan link candidate", err)
	}
	return lc, nil
}

func scanLinkCandidate(scanner rowScanner) (*model.LinkCandidate, error) {
	lc := &model.LinkCandidate{}
	var signalsJSON []byte
	err := scanner.Scan(
		&lc.LinkID, &lc.InteractionAID, &lc.InteractionBID, &lc.LinkType,
		&lc.Confidence, &signalsJSON, &lc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &lc.ReasoningSignals); err != nil {
			return nil, err
		}
	}
	return lc, nil
}
