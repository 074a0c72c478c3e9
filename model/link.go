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

package model

import "time"

// Link types. Deterministic links rest on an exact shared identifier;
// probabilistic links carry a confidence inferred from weighted signals.
const (
	LinkTypeDeterministic = "deterministic"
	LinkTypeProbabilistic = "probabilistic"
)

// Action modes derived from a link. AutoActionMode is only ever reachable
// through a deterministic link; see the policy gate.
const (
	ActionModeAuto       = "auto"
	ActionModeAssistOnly = "assist_only"
)

// Link visibility tiers by confidence. Hidden links are recorded for
// analytics but never shown on an action surface.
const (
	LinkVisibilityAction    = "action"
	LinkVisibilityHint      = "hint"
	LinkVisibilityAnalytics = "analytics"
)

// LinkCandidate is an undirected edge between two interactions. The edge set
// may be cyclic (one customer touching three channels links all three), so
// relationships are stored as explicit id pairs, never embedded references.
// InteractionAID < InteractionBID canonically; both directions are served by
// querying either column.
type LinkCandidate struct {
	LinkID           string    `json:"link_id"`
	InteractionAID   string    `json:"interaction_a_id"`
	InteractionBID   string    `json:"interaction_b_id"`
	LinkType         string    `json:"link_type"`
	Confidence       float64   `json:"confidence"`
	ReasoningSignals []string  `json:"reasoning_signals"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewLinkCandidate builds an edge with canonical id ordering so the same
// pair always produces the same row regardless of discovery direction.
func NewLinkCandidate(aID, bID, linkType string, confidence float64, signals []string) *LinkCandidate {
	if bID < aID {
		aID, bID = bID, aID
	}
	return &LinkCandidate{
		LinkID:           GenerateUUIDWithSuffix("lnk"),
		InteractionAID:   aID,
		InteractionBID:   bID,
		LinkType:         linkType,
		Confidence:       confidence,
		ReasoningSignals: signals,
		CreatedAt:        time.Now(),
	}
}

// LinkCounts aggregates a seller's link edges by type and by the action mode
// the policy gate derives from them.
type LinkCounts struct {
	Total         int64 `json:"total"`
	Deterministic int64 `json:"deterministic"`
	Probabilistic int64 `json:"probabilistic"`
	AutoEligible  int64 `json:"auto_eligible"`
	AssistOnly    int64 `json:"assist_only"`
}

// Other returns the id on the far side of the edge from the given
// interaction.
func (l *LinkCandidate) Other(interactionID string) string {
	if l.InteractionAID == interactionID {
		return l.InteractionBID
	}
	return l.InteractionAID
}

// Visibility buckets the link by confidence using the supplied thresholds.
func (l *LinkCandidate) Visibility(actionThreshold, hintThreshold float64) string {
	switch {
	case l.Confidence >= actionThreshold:
		return LinkVisibilityAction
	case l.Confidence >= hintThreshold:
		return LinkVisibilityHint
	default:
		return LinkVisibilityAnalytics
	}
}
