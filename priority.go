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
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/model"
)

// Question intents, ordered from most to least pressing. Each maps to a
// response SLA in config.
const (
	IntentSafety   = "safety"
	IntentDefect   = "defect"
	IntentDelivery = "delivery"
	IntentSizing   = "sizing"
	IntentUsage    = "usage"
	IntentGeneral  = "general"
)

// IntentClassifier infers the intent of an interaction's text. Implementations
// report confident=false when they cannot commit to a label; the engine then
// falls back to the general intent rather than guessing.
type IntentClassifier interface {
	Classify(text string) (intent string, confident bool)
}

// intentKeywords is the keyword table behind the default classifier. Matching
// is case-insensitive substring containment; the first category with a hit
// wins, so ordering doubles as severity ordering.
var intentKeywords = []struct {
	intent   string
	keywords []string
}{
	{IntentSafety, []string{
		"опасн", "пожар", "загорел", "дым", "ожог", "токсичн", "аллерги", "травм",
		"burn", "fire", "smoke", "danger", "toxic", "allergic", "injur",
	}},
	{IntentDefect, []string{
		"брак", "сломан", "не работает", "дефект", "разбит", "трещин", "не включается",
		"defect", "broken", "not working", "doesn't work", "cracked", "damaged",
	}},
	{IntentDelivery, []string{
		"доставк", "где мой заказ", "не пришёл", "не пришел", "трек", "курьер", "задерж",
		"delivery", "shipping", "where is my order", "tracking", "delayed", "not arrived",
	}},
	{IntentSizing, []string{
		"размер", "маломер", "большемер", "размерн", "села", "великоват", "маловат",
		"size", "sizing", "fit", "too small", "too big", "runs small", "runs large",
	}},
	{IntentUsage, []string{
		"как пользоваться", "как использовать", "инструкци", "как настроить", "как установить",
		"how to use", "how do i", "instructions", "manual", "setup", "how to install",
	}},
}

// KeywordClassifier is the default intent classifier. It scans the keyword
// table in severity order and reports the first category with a match.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, entry := range intentKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				return entry.intent, true
			}
		}
	}
	return IntentGeneral, false
}

// priorityForRating maps a review rating to a priority tier. Low-star
// reviews land high, not urgent: urgent is reserved for safety reports and
// SLA escalation.
func priorityForRating(rating int) string {
	switch rating {
	case 1, 2:
		return model.PriorityHigh
	case 3:
		return model.PriorityNormal
	default:
		return model.PriorityLow
	}
}

// priorityForIntent maps a question intent to a priority tier.
func priorityForIntent(intent string) string {
	switch intent {
	case IntentSafety:
		return model.PriorityUrgent
	case IntentDefect:
		return model.PriorityHigh
	case IntentDelivery, IntentSizing:
		return model.PriorityNormal
	default:
		return model.PriorityLow
	}
}

// slaMinutes returns the response target for an interaction. Chat carries a
// flat conversational SLA; reviews and questions get the intent-based one.
func slaMinutes(cnf *config.SLAConfig, channel model.Channel, intent string) int {
	if channel == model.ChannelChat {
		return cnf.ChatMin
	}
	switch intent {
	case IntentSafety:
		return cnf.SafetyMin
	case IntentDefect:
		return cnf.DefectMin
	case IntentDelivery:
		return cnf.DeliveryMin
	case IntentSizing:
		return cnf.SizingMin
	case IntentUsage:
		return cnf.UsageMin
	default:
		return cnf.GeneralMin
	}
}

// ClassifyInteraction runs the intent classifier and the priority rules over
// one interaction, stores the outcome and stamps the response deadline.
//
// Priority resolution: a review's rating sets the floor; the classified
// intent can only raise it. Safety always lands urgent regardless of channel.
func (s *Sellerdesk) ClassifyInteraction(ctx context.Context, in *model.Interaction) error {
	ctx, span := tracer.Start(ctx, "Classifying interaction")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	intent, confident := s.classifier.Classify(in.Text)

	priority := priorityForIntent(intent)
	reason := fmt.Sprintf("intent %s", intent)
	if in.Channel == model.ChannelReview && in.Rating > 0 {
		ratingPriority := priorityForRating(in.Rating)
		if priorityRank(ratingPriority) < priorityRank(priority) {
			priority = ratingPriority
			reason = fmt.Sprintf("rating %d", in.Rating)
		}
	}

	deadline := in.OccurredAt.Add(time.Duration(slaMinutes(&cnf.SLA, in.Channel, intent)) * time.Minute)

	if in.ExtraData == nil {
		in.ExtraData = make(map[string]interface{})
	}
	in.ExtraData[model.ExtraKeyIntent] = map[string]interface{}{
		"label":     intent,
		"confident": confident,
		"deadline":  deadline.Format(time.RFC3339),
	}
	in.ExtraData[model.ExtraKeyPriorityReason] = reason
	in.Priority = priority

	if err := s.datasource.UpdateInteractionExtraData(ctx, in.InteractionID, in.ExtraData); err != nil {
		return err
	}
	if err := s.datasource.UpdateInteractionPriority(ctx, in.InteractionID, priority, reason); err != nil {
		return err
	}

	return s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(in.InteractionID, model.EventClassified, map[string]interface{}{
		"intent":    intent,
		"confident": confident,
		"priority":  priority,
		"deadline":  deadline.Format(time.RFC3339),
	}))
}

// priorityRank orders priority tiers; lower is more pressing.
func priorityRank(priority string) int {
	switch priority {
	case model.PriorityUrgent:
		return 0
	case model.PriorityHigh:
		return 1
	case model.PriorityNormal:
		return 2
	default:
		return 3
	}
}

// responseDeadline reads the deadline stamped by classification. Zero time
// when the interaction was never classified.
func responseDeadline(in *model.Interaction) time.Time {
	intent, ok := in.ExtraData[model.ExtraKeyIntent].(map[string]interface{})
	if !ok {
		return time.Time{}
	}
	raw, ok := intent["deadline"].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// EscalateOverdue sweeps one seller's open interactions and raises anything
// past its response deadline to urgent. Interactions that predate
// classification escalate on age alone.
func (s *Sellerdesk) EscalateOverdue(ctx context.Context, sellerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "Escalating overdue interactions")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	// nothing can be overdue sooner than the tightest SLA
	cutoff := now.Add(-time.Duration(cnf.SLA.SafetyMin) * time.Minute)
	overdue, err := s.datasource.GetOpenInteractionsOlderThan(ctx, sellerID, cutoff)
	if err != nil {
		return 0, err
	}

	maxAge := time.Duration(cnf.SLA.EscalationAgeHours) * time.Hour
	escalated := 0
	for _, in := range overdue {
		if in.Priority == model.PriorityUrgent {
			continue
		}
		deadline := responseDeadline(in)
		pastDeadline := !deadline.IsZero() && now.After(deadline)
		pastMaxAge := now.Sub(in.OccurredAt) > maxAge
		if !pastDeadline && !pastMaxAge {
			continue
		}

		reason := "past response deadline"
		if !pastDeadline {
			reason = fmt.Sprintf("unanswered for over %dh", cnf.SLA.EscalationAgeHours)
		}
		if err := s.datasource.UpdateInteractionPriority(ctx, in.InteractionID, model.PriorityUrgent, reason); err != nil {
			logrus.Errorf("failed to escalate interaction %s: %v", in.InteractionID, err)
			continue
		}
		if err := s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(in.InteractionID, model.EventEscalated, map[string]interface{}{
			"from":   in.Priority,
			"reason": reason,
		})); err != nil {
			logrus.Errorf("failed to record escalation event for %s: %v", in.InteractionID, err)
		}
		escalated++

		go func(in *model.Interaction) {
			if err := SendWebhook(NewWebhook{
				Event:   getEventFromType(model.EventEscalated),
				Payload: in,
			}); err != nil {
				logrus.Error(err)
			}
		}(in)
	}
	return escalated, nil
}
