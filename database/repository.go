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
	"time"

	"github.com/sellerdesk/sellerdesk/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	interaction // Interface for interaction-related operations
	event       // Interface for interaction event log operations
	link        // Interface for cross-channel link operations
	watermark   // Interface for sync watermark operations
}

// interaction defines methods for handling interactions.
type interaction interface {
	RecordInteraction(ctx context.Context, in *model.Interaction) (*model.Interaction, bool, error)                                                   // Upserts an interaction by identity key; the bool reports whether a new row was created
	GetInteraction(ctx context.Context, id string) (*model.Interaction, error)                                                                       // Retrieves an interaction by ID
	GetInteractionByIdentity(ctx context.Context, sellerID, marketplace string, channel model.Channel, externalID string) (*model.Interaction, error) // Retrieves an interaction by its identity key
	GetAllInteractions(ctx context.Context, filter model.InteractionFilter, limit, offset int) ([]*model.Interaction, error)                         // Retrieves interactions matching a filter, newest first
	GetLinkScope(ctx context.Context, in *model.Interaction, windowDays int) ([]*model.Interaction, error)                                           // Retrieves same-seller interactions sharing a customer, order or product within the window
	GetOpenInteractionsOlderThan(ctx context.Context, sellerID string, cutoff time.Time) ([]*model.Interaction, error)                               // Retrieves unanswered interactions that occurred before the cutoff
	UpdateInteractionStatus(ctx context.Context, id string, status string) error                                                                     // Updates the status of an interaction
	UpdateInteractionPriority(ctx context.Context, id string, priority string, reason string) error                                                  // Updates the priority of an interaction and its stored reason
	UpdateInteractionExtraData(ctx context.Context, id string, extraData map[string]interface{}) error                                               // Replaces the extra data document of an interaction
	GetInteractionCounts(ctx context.Context, sellerID string) (*model.InteractionCounts, error)                                                     // Retrieves aggregate interaction counts for a seller
	CountOverdueOpen(ctx context.Context, sellerID string) (int64, error)                                                                           // Counts open interactions past their stamped response deadline
}

// event defines methods for the append-only interaction event log.
type event interface {
	RecordInteractionEvent(ctx context.Context, evt *model.InteractionEvent) error
	GetInteractionEvents(ctx context.Context, interactionID string) ([]*model.InteractionEvent, error)
	GetEventTypeCounts(ctx context.Context, sellerID string) (map[string]int64, error)
}

// link defines methods for handling cross-channel link candidates.
type link interface {
	RecordLinkCandidate(ctx context.Context, lc *model.LinkCandidate) error                           // Upserts a link edge; reruns with a higher confidence replace the stored edge
	GetLinksForInteraction(ctx context.Context, interactionID string) ([]*model.LinkCandidate, error) // Retrieves all edges touching an interaction
	GetLinkByEdge(ctx context.Context, aID, bID string) (*model.LinkCandidate, error)                 // Retrieves the edge between two interactions, if any
	GetLinkCounts(ctx context.Context, sellerID string, actionThreshold float64) (*model.LinkCounts, error) // Aggregates a seller's edges by type and action mode
}

// watermark defines methods for handling per-seller per-channel sync watermarks.
type watermark interface {
	GetSyncWatermark(ctx context.Context, sellerID string, channel model.Channel) (*model.SyncWatermark, error)
	SaveSyncWatermark(ctx context.Context, wm *model.SyncWatermark) error
	GetSyncWatermarks(ctx context.Context, sellerID string) ([]*model.SyncWatermark, error)
}
