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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/model"
)

func linkConf() *config.LinkConfig {
	return &config.LinkConfig{
		WindowDays:          45,
		ProductWeight:       0.35,
		TimeWeight:          0.25,
		NameWeight:          0.25,
		TextWeight:          0.15,
		NameSimilarityFloor: 0.8,
		ActionThreshold:     0.85,
		HintThreshold:       0.65,
	}
}

func TestScoreLinkDeterministicTiers(t *testing.T) {
	now := time.Now()
	base := &model.Interaction{CustomerID: "cus_1", ProductID: "prod_1", OrderID: "ord_1", OccurredAt: now}

	// same product inside the window: the strongest tier, even when the
	// customers differ (two buyers of one product share its thread)
	linkType, confidence, signals := scoreLink(linkConf(), base,
		&model.Interaction{CustomerID: "cus_2", ProductID: "prod_1", OccurredAt: now.Add(-time.Hour)})
	assert.Equal(t, model.LinkTypeDeterministic, linkType)
	assert.Equal(t, 1.0, confidence)
	assert.Equal(t, []string{"product_window"}, signals)

	// shared order id
	linkType, confidence, signals = scoreLink(linkConf(), base,
		&model.Interaction{OrderID: "ord_1", OccurredAt: now.Add(-time.Hour)})
	assert.Equal(t, model.LinkTypeDeterministic, linkType)
	assert.Equal(t, 0.99, confidence)
	assert.Equal(t, []string{"order_id"}, signals)

	// shared customer id only
	linkType, confidence, signals = scoreLink(linkConf(), base,
		&model.Interaction{CustomerID: "cus_1", OccurredAt: now.Add(-time.Hour)})
	assert.Equal(t, model.LinkTypeDeterministic, linkType)
	assert.Equal(t, 0.95, confidence)
	assert.Equal(t, []string{"customer_id"}, signals)
}

func TestScoreLinkProbabilisticSignals(t *testing.T) {
	// no shared identifier at all: only the soft signals remain
	now := time.Now()
	a := &model.Interaction{
		CustomerName: "Анна П.",
		Text:         "Сломалась молния на куртке через неделю",
		OccurredAt:   now,
	}
	b := &model.Interaction{
		CustomerName: "Анна Петрова",
		Text:         "Здравствуйте, сломалась молния, что теперь делать?",
		OccurredAt:   now.Add(-2 * time.Hour),
	}

	linkType, confidence, signals := scoreLink(linkConf(), a, b)
	assert.Equal(t, model.LinkTypeProbabilistic, linkType)
	assert.Contains(t, signals, "time_proximity")
	assert.Contains(t, signals, "name_match")
	assert.Contains(t, signals, "text_overlap")
	assert.Greater(t, confidence, 0.5)
	assert.Less(t, confidence, 1.0)
}

func TestScoreLinkSingleSignalIsNoise(t *testing.T) {
	now := time.Now()
	// similar text is the only signal: different names, no shared ids, and
	// the pair sits outside the window so time proximity is zero
	a := &model.Interaction{CustomerName: "Анна", Text: "сломалась молния", OccurredAt: now}
	b := &model.Interaction{CustomerName: "Борис", Text: "сломалась молния", OccurredAt: now.Add(-46 * 24 * time.Hour)}

	linkType, confidence, _ := scoreLink(linkConf(), a, b)
	assert.Empty(t, linkType)
	assert.Zero(t, confidence)
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, nameSimilarity("Анна П.", "Анна Петрова"), "initialized name is a prefix of the full one")
	assert.Equal(t, 1.0, nameSimilarity("ИВАН", "иван"))
	assert.Zero(t, nameSimilarity("", "Анна"))
	assert.Less(t, nameSimilarity("Анна", "Борис"), 0.5)
}

func TestTextOverlap(t *testing.T) {
	assert.Equal(t, 1.0, textOverlap("сломалась молния", "сломалась молния"))
	assert.Zero(t, textOverlap("доставка задержалась", "отличный товар"))
	assert.Zero(t, textOverlap("", "что-нибудь"))
}

func TestLinkInteractionRecordsCanonicalEdge(t *testing.T) {
	engine, mockDS, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Now()
	in := &model.Interaction{
		InteractionID: "int_b",
		SellerID:      "seller_1",
		Channel:       model.ChannelChat,
		OrderID:       "ord_1",
		OccurredAt:    now,
	}
	other := &model.Interaction{
		InteractionID: "int_a",
		SellerID:      "seller_1",
		Channel:       model.ChannelReview,
		OrderID:       "ord_1",
		OccurredAt:    now.Add(-time.Hour),
	}

	mockDS.On("GetLinkScope", mock.Anything, in, 45).Return([]*model.Interaction{other}, nil)
	mockDS.On("RecordLinkCandidate", mock.Anything, mock.MatchedBy(func(lc *model.LinkCandidate) bool {
		return lc.InteractionAID == "int_a" && lc.InteractionBID == "int_b" &&
			lc.LinkType == model.LinkTypeDeterministic && lc.Confidence == 0.99
	})).Return(nil)
	mockDS.On("RecordInteractionEvent", mock.Anything, mock.Anything).Return(nil)
	mockDS.On("UpdateInteractionExtraData", mock.Anything, "int_b", mock.MatchedBy(func(extra map[string]interface{}) bool {
		links, ok := extra[model.ExtraKeyLinks].([]interface{})
		return ok && len(links) == 1
	})).Return(nil)

	err := engine.LinkInteraction(ctx, in)
	require.NoError(t, err)
	mockDS.AssertExpectations(t)
}

func TestLinkInteractionSkipsUnscoredPairs(t *testing.T) {
	engine, mockDS, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Now()
	in := &model.Interaction{InteractionID: "int_1", SellerID: "seller_1", OccurredAt: now}
	unrelated := &model.Interaction{
		InteractionID: "int_2",
		SellerID:      "seller_1",
		CustomerName:  "Борис",
		Text:          "другое",
		OccurredAt:    now.Add(-46 * 24 * time.Hour),
	}

	mockDS.On("GetLinkScope", mock.Anything, in, 45).Return([]*model.Interaction{unrelated}, nil)

	err := engine.LinkInteraction(ctx, in)
	require.NoError(t, err)
	mockDS.AssertNotCalled(t, "RecordLinkCandidate", mock.Anything, mock.Anything)
}
