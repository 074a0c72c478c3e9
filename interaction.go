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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/connectors"
	"github.com/sellerdesk/sellerdesk/internal/notification"
	"github.com/sellerdesk/sellerdesk/model"
)

// IngestItem normalizes one raw channel event into an interaction and
// persists it idempotently. A new identity key creates a row and runs the
// full pipeline (classify, link, index). A known identity key refreshes the
// upstream fields while preserving everything the engine wrote after
// ingestion: protected extra data keys survive, and a locally dispatched
// reply keeps the interaction responded while the marketplace catches up.
// When the refresh changes the text, rating or timestamp, classification and
// linking run again: edited content can shift both the priority and the
// cross-channel edges.
func (s *Sellerdesk) IngestItem(ctx context.Context, sellerID string, channel model.Channel, item connectors.RawItem, source string) (*model.Interaction, error) {
	ctx, span := tracer.Start(ctx, "Ingesting interaction")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	candidate := &model.Interaction{
		InteractionID: model.GenerateUUIDWithSuffix("int"),
		SellerID:      sellerID,
		Marketplace:   cnf.Marketplace.Name,
		Channel:       channel,
		ExternalID:    item.ExternalID,
		CustomerID:    item.CustomerID,
		CustomerName:  item.CustomerName,
		OrderID:       item.OrderID,
		ProductID:     item.ProductID,
		Rating:        item.Rating,
		Text:          item.Text,
		NeedsResponse: !item.Answered,
		OccurredAt:    item.OccurredAt,
		Source:        source,
		ExtraData:     item.Payload,
	}
	if item.Answered {
		candidate.Status = model.StatusResponded
	} else {
		candidate.Status = model.StatusOpen
	}
	candidate.Priority = model.PriorityNormal

	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.datasource.GetInteractionByIdentity(ctx, sellerID, candidate.Marketplace, channel, item.ExternalID)
	if err != nil {
		return nil, err
	}
	changed := false
	if existing != nil {
		changed = materiallyChanged(existing, candidate)
		s.applyReingestion(candidate, existing, cnf)
	}

	persisted, created, err := s.datasource.RecordInteraction(ctx, candidate)
	if err != nil {
		return nil, err
	}

	if created {
		if err := s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(persisted.InteractionID, model.EventIngested, map[string]interface{}{
			"channel": string(channel),
			"source":  source,
		})); err != nil {
			logrus.Errorf("failed to record ingested event for %s: %v", persisted.InteractionID, err)
		}

		if err := s.ClassifyInteraction(ctx, persisted); err != nil {
			logrus.Errorf("failed to classify interaction %s: %v", persisted.InteractionID, err)
			notification.NotifyError(err)
		}
		if err := s.LinkInteraction(ctx, persisted); err != nil {
			logrus.Errorf("failed to link interaction %s: %v", persisted.InteractionID, err)
			notification.NotifyError(err)
		}

		go func() {
			if err := SendWebhook(NewWebhook{
				Event:   getEventFromType(model.EventIngested),
				Payload: persisted,
			}); err != nil {
				notification.NotifyError(err)
			}
		}()
	} else if changed {
		// re-ingested content moved: re-derive the priority and recompute
		// the cross-channel edges against the fresh text and timestamp
		if err := s.ClassifyInteraction(ctx, persisted); err != nil {
			logrus.Errorf("failed to reclassify interaction %s: %v", persisted.InteractionID, err)
			notification.NotifyError(err)
		}
		if err := s.LinkInteraction(ctx, persisted); err != nil {
			logrus.Errorf("failed to relink interaction %s: %v", persisted.InteractionID, err)
			notification.NotifyError(err)
		}
	}

	if err := s.queue.queueIndexData(persisted.InteractionID, "interactions", persisted); err != nil {
		logrus.Errorf("failed to queue interaction for indexing: %v", err)
	}

	return persisted, nil
}

// materiallyChanged reports whether an upstream refresh moved the fields the
// pipeline derives its decisions from. Payload-only churn is not material.
func materiallyChanged(existing, candidate *model.Interaction) bool {
	return existing.Text != candidate.Text ||
		existing.Rating != candidate.Rating ||
		!existing.OccurredAt.Equal(candidate.OccurredAt)
}

// applyReingestion folds an existing row into the candidate before the
// upsert. The candidate keeps the fresh upstream fields; the existing row
// contributes the engine-written state that must not be clobbered.
func (s *Sellerdesk) applyReingestion(candidate, existing *model.Interaction, cnf *config.Configuration) {
	candidate.InteractionID = existing.InteractionID
	candidate.Priority = existing.Priority
	candidate.ExtraData = mergeExtraData(existing.ExtraData, candidate.ExtraData)

	// A locally dispatched reply holds the interaction responded while the
	// marketplace propagates it. Past the window, an upstream that still
	// reports unanswered wins and the interaction reopens.
	if !candidate.NeedsResponse {
		return
	}
	replyAt, ok := existing.ReplyRecordedAt()
	if !ok {
		return
	}
	window := time.Duration(cnf.Sync.ReplyPendingWindowMin) * time.Minute
	if time.Since(replyAt) < window {
		candidate.Status = model.StatusResponded
		candidate.NeedsResponse = false
	}
}

// mergeExtraData overlays incoming upstream payload data onto the stored
// document. Protected keys always keep their stored value: they belong to
// pipeline stages that run after ingestion, and upstream has no say in them.
func mergeExtraData(existing, incoming map[string]interface{}) map[string]interface{} {
	if existing == nil && incoming == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	for _, key := range model.ProtectedExtraKeys {
		if v, ok := existing[key]; ok {
			merged[key] = v
		}
	}
	return merged
}

// GetInteraction retrieves a single interaction by ID.
func (s *Sellerdesk) GetInteraction(ctx context.Context, id string) (*model.Interaction, error) {
	ctx, span := tracer.Start(ctx, "Getting interaction")
	defer span.End()
	return s.datasource.GetInteraction(ctx, id)
}

// GetAllInteractions retrieves interactions matching the filter, newest
// first.
func (s *Sellerdesk) GetAllInteractions(ctx context.Context, filter model.InteractionFilter, limit, offset int) ([]*model.Interaction, error) {
	ctx, span := tracer.Start(ctx, "Listing interactions")
	defer span.End()
	return s.datasource.GetAllInteractions(ctx, filter, limit, offset)
}

// Thread is one interaction with its cross-channel context: the linked
// interactions grouped by visibility tier plus the audit trail.
type Thread struct {
	Interaction *model.Interaction        `json:"interaction"`
	Links       []*ResolvedLink           `json:"links"`
	Events      []*model.InteractionEvent `json:"events"`
}

// ResolvedLink is a link edge resolved from the perspective of the thread's
// root interaction.
type ResolvedLink struct {
	Link       *model.LinkCandidate `json:"link"`
	Other      *model.Interaction   `json:"other"`
	Visibility string               `json:"visibility"`
	ActionMode string               `json:"action_mode"`
}

// GetThread assembles the full cross-channel view of one interaction. Links
// below the hint threshold stay out of the thread; they exist for analytics
// only.
func (s *Sellerdesk) GetThread(ctx context.Context, id string) (*Thread, error) {
	ctx, span := tracer.Start(ctx, "Assembling interaction thread")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	in, err := s.datasource.GetInteraction(ctx, id)
	if err != nil {
		return nil, err
	}

	links, err := s.datasource.GetLinksForInteraction(ctx, id)
	if err != nil {
		return nil, err
	}

	resolved := make([]*ResolvedLink, 0, len(links))
	for _, lc := range links {
		visibility := lc.Visibility(cnf.Link.ActionThreshold, cnf.Link.HintThreshold)
		if visibility == model.LinkVisibilityAnalytics {
			continue
		}
		other, err := s.datasource.GetInteraction(ctx, lc.Other(id))
		if err != nil {
			logrus.Errorf("failed to resolve linked interaction %s: %v", lc.Other(id), err)
			continue
		}
		resolved = append(resolved, &ResolvedLink{
			Link:       lc,
			Other:      other,
			Visibility: visibility,
			ActionMode: DecideActionMode(lc.LinkType, lc.Confidence, cnf.Link.ActionThreshold),
		})
	}

	events, err := s.datasource.GetInteractionEvents(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Thread{Interaction: in, Links: resolved, Events: events}, nil
}

// GetInteractionLinks returns every link edge touching the interaction,
// annotated with visibility tier and action mode. Unlike the thread view,
// analytics-tier links are included.
func (s *Sellerdesk) GetInteractionLinks(ctx context.Context, id string) ([]*ResolvedLink, error) {
	ctx, span := tracer.Start(ctx, "Listing interaction links")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if _, err := s.datasource.GetInteraction(ctx, id); err != nil {
		return nil, err
	}

	links, err := s.datasource.GetLinksForInteraction(ctx, id)
	if err != nil {
		return nil, err
	}

	resolved := make([]*ResolvedLink, 0, len(links))
	for _, lc := range links {
		other, err := s.datasource.GetInteraction(ctx, lc.Other(id))
		if err != nil {
			logrus.Errorf("failed to resolve linked interaction %s: %v", lc.Other(id), err)
			continue
		}
		resolved = append(resolved, &ResolvedLink{
			Link:       lc,
			Other:      other,
			Visibility: lc.Visibility(cnf.Link.ActionThreshold, cnf.Link.HintThreshold),
			ActionMode: DecideActionMode(lc.LinkType, lc.Confidence, cnf.Link.ActionThreshold),
		})
	}
	return resolved, nil
}

// GetInteractionEvents returns the audit trail of one interaction, oldest
// first.
func (s *Sellerdesk) GetInteractionEvents(ctx context.Context, id string) ([]*model.InteractionEvent, error) {
	ctx, span := tracer.Start(ctx, "Listing interaction events")
	defer span.End()
	return s.datasource.GetInteractionEvents(ctx, id)
}

// UpdateInteractionStatus transitions an interaction's status and records
// the change on the audit trail.
func (s *Sellerdesk) UpdateInteractionStatus(ctx context.Context, id string, status string) error {
	ctx, span := tracer.Start(ctx, "Updating interaction status")
	defer span.End()

	if err := s.datasource.UpdateInteractionStatus(ctx, id, status); err != nil {
		return err
	}
	return s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(id, model.EventClassified, map[string]interface{}{
		"status": status,
	}))
}
