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

// InteractionEvent types. The event table is append-only and is the source
// of truth for quality metrics.
const (
	EventIngested       = "ingested"
	EventLinked         = "linked"
	EventClassified     = "classified"
	EventPolicyDecision = "policy_decision"
	EventDraftGenerated = "draft_generated"
	EventReplySent      = "reply_sent"
	EventSendFailed     = "send_failed"
	EventSendBlocked    = "send_blocked"
	EventEscalated      = "escalated"
)

// InteractionEvent is one append-only audit record tied to an interaction.
type InteractionEvent struct {
	EventID       string                 `json:"event_id"`
	InteractionID string                 `json:"interaction_id"`
	EventType     string                 `json:"event_type"`
	Details       map[string]interface{} `json:"details,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewInteractionEvent constructs an audit event for the given interaction.
func NewInteractionEvent(interactionID, eventType string, details map[string]interface{}) *InteractionEvent {
	return &InteractionEvent{
		EventID:       GenerateUUIDWithSuffix("evt"),
		InteractionID: interactionID,
		EventType:     eventType,
		Details:       details,
		CreatedAt:     time.Now(),
	}
}
