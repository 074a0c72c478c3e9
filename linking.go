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
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/model"
)

// Deterministic link confidences. An exact shared identifier is not a guess,
// so these sit above every probabilistic score by construction.
const (
	confidenceProductWindow = 1.0
	confidenceOrderID       = 0.99
	confidenceCustomerID    = 0.95
)

// LinkInteraction scores the interaction against every same-seller
// interaction sharing a customer, order or product within the configured
// window, and records the resulting edges. All edges are stored, including
// those below the hint threshold: weak correlations feed analytics even
// though no surface shows them.
func (s *Sellerdesk) LinkInteraction(ctx context.Context, in *model.Interaction) error {
	ctx, span := tracer.Start(ctx, "Linking interaction")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	scope, err := s.datasource.GetLinkScope(ctx, in, cnf.Link.WindowDays)
	if err != nil {
		return err
	}

	var linkedIDs []interface{}
	for _, other := range scope {
		linkType, confidence, signals := scoreLink(&cnf.Link, in, other)
		if confidence == 0 {
			continue
		}

		lc := model.NewLinkCandidate(in.InteractionID, other.InteractionID, linkType, confidence, signals)
		if err := s.datasource.RecordLinkCandidate(ctx, lc); err != nil {
			logrus.Errorf("failed to record link %s <-> %s: %v", in.InteractionID, other.InteractionID, err)
			continue
		}

		actionMode := DecideActionMode(linkType, confidence, cnf.Link.ActionThreshold)
		if err := s.RecordPolicyDecision(ctx, in.InteractionID, lc, actionMode); err != nil {
			logrus.Errorf("failed to record policy decision for link %s: %v", lc.LinkID, err)
		}

		visibility := lc.Visibility(cnf.Link.ActionThreshold, cnf.Link.HintThreshold)
		if visibility != model.LinkVisibilityAnalytics {
			linkedIDs = append(linkedIDs, map[string]interface{}{
				"interaction_id": other.InteractionID,
				"confidence":     confidence,
				"link_type":      linkType,
				"visibility":     visibility,
			})
			if err := s.datasource.RecordInteractionEvent(ctx, model.NewInteractionEvent(in.InteractionID, model.EventLinked, map[string]interface{}{
				"other":      other.InteractionID,
				"confidence": confidence,
				"signals":    signals,
			})); err != nil {
				logrus.Errorf("failed to record linked event: %v", err)
			}
		}

		if err := s.queue.queueIndexData(lc.LinkID, "links", lc); err != nil {
			logrus.Errorf("failed to queue link for indexing: %v", err)
		}
	}

	if len(linkedIDs) > 0 {
		if in.ExtraData == nil {
			in.ExtraData = make(map[string]interface{})
		}
		in.ExtraData[model.ExtraKeyLinks] = linkedIDs
		if err := s.datasource.UpdateInteractionExtraData(ctx, in.InteractionID, in.ExtraData); err != nil {
			return err
		}
	}
	return nil
}

// scoreLink computes the link type, confidence and contributing signals for
// one candidate pair. Deterministic identifiers are checked first, strongest
// first; if none match, the weighted probabilistic signals are summed.
func scoreLink(cnf *config.LinkConfig, a, b *model.Interaction) (string, float64, []string) {
	if a.ProductID != "" && a.ProductID == b.ProductID {
		// the candidate scope already bounds the pair to the time window
		return model.LinkTypeDeterministic, confidenceProductWindow, []string{"product_window"}
	}
	if a.OrderID != "" && a.OrderID == b.OrderID {
		return model.LinkTypeDeterministic, confidenceOrderID, []string{"order_id"}
	}
	if a.CustomerID != "" && a.CustomerID == b.CustomerID {
		return model.LinkTypeDeterministic, confidenceCustomerID, []string{"customer_id"}
	}

	var confidence float64
	var signals []string

	if a.ProductID != "" && a.ProductID == b.ProductID {
		confidence += cnf.ProductWeight
		signals = append(signals, "product_match")
	}

	if proximity := timeProximity(a.OccurredAt, b.OccurredAt, cnf.WindowDays); proximity > 0 {
		confidence += cnf.TimeWeight * proximity
		signals = append(signals, "time_proximity")
	}

	if sim := nameSimilarity(a.CustomerName, b.CustomerName); sim >= cnf.NameSimilarityFloor {
		confidence += cnf.NameWeight * sim
		signals = append(signals, "name_match")
	}

	if overlap := textOverlap(a.Text, b.Text); overlap > 0 {
		confidence += cnf.TextWeight * overlap
		signals = append(signals, "text_overlap")
	}

	if len(signals) < 2 {
		// one weak signal alone is noise, not a correlation
		return "", 0, nil
	}
	return model.LinkTypeProbabilistic, confidence, signals
}

// timeProximity scales linearly from 1.0 for simultaneous events to 0 at the
// window edge.
func timeProximity(a, b time.Time, windowDays int) float64 {
	window := time.Duration(windowDays) * 24 * time.Hour
	gap := a.Sub(b)
	if gap < 0 {
		gap = -gap
	}
	if gap >= window {
		return 0
	}
	return 1 - float64(gap)/float64(window)
}

// nameSimilarity compares two customer display names by normalized edit
// distance. Marketplaces truncate and initialize names differently across
// channels ("Анна П." vs "Анна Петрова"), so a prefix match of the shorter
// name counts as full similarity.
func nameSimilarity(a, b string) float64 {
	a = normalizeName(a)
	b = normalizeName(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.HasPrefix(b, a) || strings.HasPrefix(a, b) {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	dist := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	return 1 - float64(dist)/float64(longest)
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimRightFunc(name, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}

// textOverlap computes the Jaccard similarity of the token sets of two
// texts. Tokens shorter than three runes are skipped; they carry no signal.
func textOverlap(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	intersection := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len([]rune(field)) >= 3 {
			tokens[field] = struct{}{}
		}
	}
	return tokens
}
