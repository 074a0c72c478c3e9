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

	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/internal/notification"
	"github.com/sellerdesk/sellerdesk/model"
)

// SendReply validates a reply draft and dispatches it to the interaction's
// channel. The guardrail verdict is final: a blocking violation stops the
// send before any remote call happens and leaves a send_blocked event on the
// audit trail. Advisory violations ride along in the result but do not stop
// the send.
func (s *Sellerdesk) SendReply(ctx context.Context, interactionID, draft, operator string) (*model.Interaction, error) {
	ctx, span := tracer.Start(ctx, "Sending reply")
	defer span.End()

	in, err := s.datasource.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}

	verdict, err := s.ValidateDraftFor(in, draft)
	if err != nil {
		return nil, err
	}
	if verdict.Blocked() {
		if err := s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(interactionID, model.EventSendBlocked, map[string]interface{}{
			"operator":   operator,
			"violations": verdict.Violations,
		})); err != nil {
			logrus.Errorf("failed to record send_blocked event for %s: %v", interactionID, err)
		}
		return nil, apierror.NewAPIError(apierror.ErrGuardrailBlocked,
			"reply draft violates content guardrails", verdict.Violations)
	}

	con, err := s.Connector(in.Channel)
	if err != nil {
		return nil, err
	}

	// replies draw from the same per-seller token bucket as sync pulls; the
	// marketplace meters every call, not just listings
	if err := s.limiter.Take(ctx, in.SellerID); err != nil {
		return nil, err
	}

	if err := con.Reply(ctx, in.ExternalID, draft); err != nil {
		if recErr := s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(interactionID, model.EventSendFailed, map[string]interface{}{
			"operator": operator,
			"error":    err.Error(),
		})); recErr != nil {
			logrus.Errorf("failed to record send_failed event for %s: %v", interactionID, recErr)
		}
		go func() {
			if whErr := SendWebhook(NewWebhook{
				Event:   getEventFromType(model.EventSendFailed),
				Payload: in,
			}); whErr != nil {
				notification.NotifyError(whErr)
			}
		}()
		return nil, err
	}

	// The reply marker holds the interaction responded through the window
	// where upstream still reports it unanswered.
	in.SetReplyMarker(draft, time.Now(), operator)
	in.Status = model.StatusResponded
	in.NeedsResponse = false

	if err := s.datasource.UpdateInteractionExtraData(ctx, in.InteractionID, in.ExtraData); err != nil {
		return nil, err
	}
	if err := s.datasource.UpdateInteractionStatus(ctx, in.InteractionID, model.StatusResponded); err != nil {
		return nil, err
	}

	if err := s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(interactionID, model.EventReplySent, map[string]interface{}{
		"operator": operator,
		"warnings": verdict.Violations,
	})); err != nil {
		logrus.Errorf("failed to record reply_sent event for %s: %v", interactionID, err)
	}

	go func() {
		if err := SendWebhook(NewWebhook{
			Event:   getEventFromType(model.EventReplySent),
			Payload: in,
		}); err != nil {
			notification.NotifyError(err)
		}
	}()

	if err := s.queue.queueIndexData(in.InteractionID, "interactions", in); err != nil {
		logrus.Errorf("failed to queue interaction for indexing: %v", err)
	}

	return in, nil
}

// SaveDraft stores a reply draft on the interaction without dispatching it.
// The draft lives under a protected extra-data key, so it survives
// re-ingestion until an operator sends or discards it.
func (s *Sellerdesk) SaveDraft(ctx context.Context, interactionID, draft, operator string) (ValidationResult, error) {
	ctx, span := tracer.Start(ctx, "Saving reply draft")
	defer span.End()

	in, err := s.datasource.GetInteraction(ctx, interactionID)
	if err != nil {
		return ValidationResult{}, err
	}

	verdict, err := s.ValidateDraftFor(in, draft)
	if err != nil {
		return ValidationResult{}, err
	}

	if in.ExtraData == nil {
		in.ExtraData = make(map[string]interface{})
	}
	in.ExtraData[model.ExtraKeyDraft] = map[string]interface{}{
		"text":     draft,
		"operator": operator,
		"saved_at": time.Now().Format(time.RFC3339Nano),
		"valid":    verdict.Valid,
	}
	if err := s.datasource.UpdateInteractionExtraData(ctx, in.InteractionID, in.ExtraData); err != nil {
		return ValidationResult{}, err
	}

	if err := s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(interactionID, model.EventDraftGenerated, map[string]interface{}{
		"operator": operator,
		"valid":    verdict.Valid,
	})); err != nil {
		logrus.Errorf("failed to record draft_generated event for %s: %v", interactionID, err)
	}

	return verdict, nil
}
