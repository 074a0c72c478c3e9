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

	"github.com/google/uuid"
)

// Channel identifies the communication surface an interaction arrived on.
type Channel string

const (
	ChannelReview   Channel = "review"
	ChannelQuestion Channel = "question"
	ChannelChat     Channel = "chat"
)

// AllChannels lists every channel a sync pass fans out to, in sync order.
var AllChannels = []Channel{ChannelReview, ChannelQuestion, ChannelChat}

// IsPublic reports whether replies on this channel are visible to other
// customers. Public channels carry stricter guardrail severities.
func (c Channel) IsPublic() bool {
	return c == ChannelReview || c == ChannelQuestion
}

// ParseChannel validates a channel string from an external source.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelReview, ChannelQuestion, ChannelChat:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("unknown channel: %q", s)
	}
}

// Interaction status values.
const (
	StatusOpen      = "open"
	StatusResponded = "responded"
	StatusClosed    = "closed"
)

// Priority tiers, ordered from most to least pressing.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Interaction source values. Fallback marks items recovered through a
// secondary fetch path after the primary API failed.
const (
	SourcePrimaryAPI = "primary_api"
	SourceFallback   = "fallback"
)

// SyncWatermark tracks the newest event time successfully ingested for one
// (seller, channel) pair. It advances only after a channel pass completes
// without a fatal error, so a failed pass re-fetches the same range.
type SyncWatermark struct {
	SellerID       string     `json:"seller_id"`
	Channel        Channel    `json:"channel"`
	LastOccurredAt *time.Time `json:"last_occurred_at"`
	LastSyncedAt   *time.Time `json:"last_synced_at"`
	LastError      string     `json:"last_error,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// GenerateUUIDWithSuffix generates a UUID with a module-specific prefix,
// e.g. "int_8f14e45f-...". The prefix makes IDs self-describing in logs and
// lets the API route metadata updates by entity type.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}
