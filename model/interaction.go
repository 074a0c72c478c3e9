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

import (
	"fmt"
	"time"
)

// Keys inside Interaction.ExtraData written by stages that run after
// ingestion. Re-ingestion of upstream data must never clobber them.
const (
	ExtraKeyDraft          = "draft"
	ExtraKeyLinks          = "links"
	ExtraKeyReply          = "reply"
	ExtraKeyIntent         = "intent"
	ExtraKeyPriorityReason = "priority_reason"
)

// ProtectedExtraKeys is the allow-list consulted by the ingestion merge.
var ProtectedExtraKeys = []string{
	ExtraKeyDraft,
	ExtraKeyLinks,
	ExtraKeyReply,
	ExtraKeyIntent,
	ExtraKeyPriorityReason,
}

// Interaction is the canonical, channel-agnostic record of one customer
// communication. The tuple (SellerID, Marketplace, Channel, ExternalID) is
// unique and serves as the idempotency key for ingestion.
type Interaction struct {
	InteractionID string                 `json:"interaction_id"`
	SellerID      string                 `json:"seller_id"`
	Marketplace   string                 `json:"marketplace"`
	Channel       Channel                `json:"channel"`
	ExternalID    string                 `json:"external_id"`
	CustomerID    string                 `json:"customer_id,omitempty"`
	CustomerName  string                 `json:"customer_name,omitempty"`
	OrderID       string                 `json:"order_id,omitempty"`
	ProductID     string                 `json:"product_id,omitempty"`
	Rating        int                    `json:"rating,omitempty"` // reviews only, 1..5; 0 means absent
	Text          string                 `json:"text"`
	Status        string                 `json:"status"`
	Priority      string                 `json:"priority"`
	NeedsResponse bool                   `json:"needs_response"`
	OccurredAt    time.Time              `json:"occurred_at"` // event time, not ingestion time
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Source        string                 `json:"source"`
	ExtraData     map[string]interface{} `json:"extra_data,omitempty"`
}

// InteractionFilter narrows interaction listings. Zero-valued fields are
// ignored.
type InteractionFilter struct {
	SellerID      string
	Marketplace   string
	Channel       Channel
	Status        string
	Priority      string
	NeedsResponse *bool
}

// InteractionCounts aggregates a seller's interaction inventory for the
// metrics surface.
type InteractionCounts struct {
	Total         int64            `json:"total"`
	NeedsResponse int64            `json:"needs_response"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByPriority    map[string]int64 `json:"by_priority"`
	ByChannel     map[string]int64 `json:"by_channel"`
}

// IdentityKey returns the idempotency key of the interaction as a single
// string, usable as a cache key.
func (i *Interaction) IdentityKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", i.SellerID, i.Marketplace, i.Channel, i.ExternalID)
}

func (i *Interaction) validate() error {
	if i.SellerID == "" {
		return fmt.Errorf("interaction seller_id is required")
	}
	if i.Marketplace == "" {
		return fmt.Errorf("interaction marketplace is required")
	}
	if i.ExternalID == "" {
		return fmt.Errorf("interaction external_id is required")
	}
	if _, err := ParseChannel(string(i.Channel)); err != nil {
		return err
	}
	if i.Channel == ChannelReview && (i.Rating < 0 || i.Rating > 5) {
		return fmt.Errorf("review rating out of range: %d", i.Rating)
	}
	return nil
}

// Validate checks the fields ingestion is responsible for populating.
func (i *Interaction) Validate() error {
	return i.validate()
}

// ReplyRecordedAt returns the time a locally-dispatched reply was recorded
// for this interaction, if any. The marker is written by the dispatcher and
// consumed by the ingestion reply-pending override.
func (i *Interaction) ReplyRecordedAt() (time.Time, bool) {
	reply, ok := i.ExtraData[ExtraKeyReply].(map[string]interface{})
	if !ok {
		return time.Time{}, false
	}
	switch v := reply["sent_at"].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			t, err = time.Parse(time.RFC3339, v)
		}
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// SetReplyMarker records the dispatched reply on the interaction. Stored
// under a protected extra-data key so re-ingestion cannot erase it.
func (i *Interaction) SetReplyMarker(text string, sentAt time.Time, operator string) {
	if i.ExtraData == nil {
		i.ExtraData = make(map[string]interface{})
	}
	i.ExtraData[ExtraKeyReply] = map[string]interface{}{
		"text":     text,
		"sent_at":  sentAt.Format(time.RFC3339Nano),
		"operator": operator,
	}
}

// PriorityReason returns the human-readable explanation of the current
// priority assignment, empty if none has been written yet.
func (i *Interaction) PriorityReason() string {
	s, _ := i.ExtraData[ExtraKeyPriorityReason].(string)
	return s
}
