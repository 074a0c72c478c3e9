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

package sellerdesk

import (
	"context"

	"github.com/sellerdesk/sellerdesk/model"
)

// DecideActionMode is the gate between link confidence and automation. Auto
// mode requires BOTH a deterministic link type and confidence at or above the
// action threshold; a probabilistic link is assist-only no matter how high it
// scores. Correlation strength is not provenance: only an exact shared
// identifier may drive an unattended action.
func DecideActionMode(linkType string, confidence float64, actionThreshold float64) string {
	if linkType == model.LinkTypeDeterministic && confidence >= actionThreshold {
		return model.ActionModeAuto
	}
	return model.ActionModeAssistOnly
}

// RecordPolicyDecision appends the gate's verdict for one link to the audit
// trail of the interaction it was evaluated for.
func (s *Sellerdesk) RecordPolicyDecision(ctx context.Context, interactionID string, lc *model.LinkCandidate, actionMode string) error {
	ctx, span := tracer.Start(ctx, "Recording policy decision")
	defer span.End()

	return s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(interactionID, model.EventPolicyDecision, map[string]interface{}{
		"link_id":     lc.LinkID,
		"link_type":   lc.LinkType,
		"confidence":  lc.Confidence,
		"action_mode": actionMode,
	}))
}
