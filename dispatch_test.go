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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/internal/ratelimit"
	"github.com/sellerdesk/sellerdesk/model"
)

func TestSendReplyBlockedByGuardrail(t *testing.T) {
	engine, mockDS, _ := newTestEngine(t)
	fake := &fakeConnector{channel: model.ChannelReview}
	engine.connectors[model.ChannelReview] = fake

	in := &model.Interaction{
		InteractionID: "int_1",
		SellerID:      "seller_1",
		Channel:       model.ChannelReview,
		ExternalID:    "rev_1",
		Status:        model.StatusOpen,
	}

	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)
	mockDS.On("RecordInteractionEvent", mock.Anything, mock.MatchedBy(func(evt *model.InteractionEvent) bool {
		return evt.EventType == model.EventSendBlocked
	})).Return(nil)

	_, err := engine.SendReply(context.Background(), "int_1", "Вы сами виноваты, что товар сломался", "operator_1")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrGuardrailBlocked, apiErr.Code)

	// nothing reached the marketplace
	assert.Empty(t, fake.replies)
	mockDS.AssertNotCalled(t, "UpdateInteractionStatus", mock.Anything, mock.Anything, mock.Anything)
	mockDS.AssertExpectations(t)
}

func TestSendReplySuccess(t *testing.T) {
	engine, mockDS, _ := newTestEngine(t)
	fake := &fakeConnector{channel: model.ChannelReview}
	engine.connectors[model.ChannelReview] = fake

	in := &model.Interaction{
		InteractionID: "int_1",
		SellerID:      "seller_1",
		Channel:       model.ChannelReview,
		ExternalID:    "rev_1",
		Status:        model.StatusOpen,
		NeedsResponse: true,
	}

	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)
	mockDS.On("UpdateInteractionExtraData", mock.Anything, "int_1", mock.MatchedBy(func(extra map[string]interface{}) bool {
		_, ok := extra[model.ExtraKeyReply]
		return ok
	})).Return(nil)
	mockDS.On("UpdateInteractionStatus", mock.Anything, "int_1", model.StatusResponded).Return(nil)
	mockDS.On("RecordInteractionEvent", mock.Anything, mock.MatchedBy(func(evt *model.InteractionEvent) bool {
		return evt.EventType == model.EventReplySent
	})).Return(nil)

	draft := "Спасибо за отзыв, нам жаль, что так вышло. Напишите нам, мы всё исправим."
	replied, err := engine.SendReply(context.Background(), "int_1", draft, "operator_1")
	require.NoError(t, err)

	assert.Equal(t, draft, fake.replies["rev_1"])
	assert.Equal(t, model.StatusResponded, replied.Status)
	assert.False(t, replied.NeedsResponse)
	replyAt, ok := replied.ReplyRecordedAt()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), replyAt, time.Minute)
	mockDS.AssertExpectations(t)
}

func TestSendReplyConnectorFailure(t *testing.T) {
	engine, mockDS, _ := newTestEngine(t)
	fake := &fakeConnector{channel: model.ChannelChat, replyErr: errors.New("marketplace rejected the reply")}
	engine.connectors[model.ChannelChat] = fake

	in := &model.Interaction{
		InteractionID: "int_1",
		SellerID:      "seller_1",
		Channel:       model.ChannelChat,
		ExternalID:    "chat_1",
		Status:        model.StatusOpen,
	}

	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)
	mockDS.On("RecordInteractionEvent", mock.Anything, mock.MatchedBy(func(evt *model.InteractionEvent) bool {
		return evt.EventType == model.EventSendFailed
	})).Return(nil)

	_, err := engine.SendReply(context.Background(), "int_1", "Добрый день! Подскажите номер заказа.", "operator_1")
	require.Error(t, err)
	mockDS.AssertNotCalled(t, "UpdateInteractionStatus", mock.Anything, mock.Anything, mock.Anything)
	mockDS.AssertExpectations(t)
}

func TestSendReplyAdvisoryWarningsDoNotBlock(t *testing.T) {
	engine, mockDS, _ := newTestEngine(t)
	fake := &fakeConnector{channel: model.ChannelChat}
	engine.connectors[model.ChannelChat] = fake

	in := &model.Interaction{
		InteractionID: "int_1",
		SellerID:      "seller_1",
		Channel:       model.ChannelChat,
		ExternalID:    "chat_1",
		Status:        model.StatusOpen,
	}

	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)
	mockDS.On("UpdateInteractionExtraData", mock.Anything, "int_1", mock.Anything).Return(nil)
	mockDS.On("UpdateInteractionStatus", mock.Anything, "int_1", model.StatusResponded).Return(nil)
	mockDS.On("RecordInteractionEvent", mock.Anything, mock.Anything).Return(nil)

	// a refund mention is advisory on chat, the send goes through
	_, err := engine.SendReply(context.Background(), "int_1", "Мы можем оформить возврат средств, если хотите.", "operator_1")
	require.NoError(t, err)
	assert.NotEmpty(t, fake.replies["chat_1"])
}

func TestSendReplyConsumesRateBudget(t *testing.T) {
	engine, mockDS, _ := newTestEngine(t)
	fake := &fakeConnector{channel: model.ChannelChat}
	engine.connectors[model.ChannelChat] = fake
	// a bucket of one call: the second dispatch must starve
	engine.limiter = ratelimit.NewLimiter(engine.redis, 1, 10*time.Millisecond)

	in := &model.Interaction{
		InteractionID: "int_1",
		SellerID:      "seller_1",
		Channel:       model.ChannelChat,
		ExternalID:    "chat_1",
		Status:        model.StatusOpen,
	}

	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)
	mockDS.On("UpdateInteractionExtraData", mock.Anything, "int_1", mock.Anything).Return(nil)
	mockDS.On("UpdateInteractionStatus", mock.Anything, "int_1", model.StatusResponded).Return(nil)
	mockDS.On("RecordInteractionEvent", mock.Anything, mock.Anything).Return(nil)

	first := "Добрый день! Уточните номер заказа."
	_, err := engine.SendReply(context.Background(), "int_1", first, "operator_1")
	require.NoError(t, err)

	_, err = engine.SendReply(context.Background(), "int_1", "Добрый день! Мы на связи.", "operator_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit budget exhausted")
	assert.Equal(t, first, fake.replies["chat_1"], "the starved dispatch must never reach the marketplace")
}

func TestSaveDraftStoresUnderProtectedKey(t *testing.T) {
	engine, mockDS, _ := newTestEngine(t)

	in := &model.Interaction{
		InteractionID: "int_1",
		SellerID:      "seller_1",
		Channel:       model.ChannelReview,
		ExternalID:    "rev_1",
	}

	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)
	mockDS.On("UpdateInteractionExtraData", mock.Anything, "int_1", mock.MatchedBy(func(extra map[string]interface{}) bool {
		draft, ok := extra[model.ExtraKeyDraft].(map[string]interface{})
		return ok && draft["text"] == "Спасибо за отзыв!"
	})).Return(nil)
	mockDS.On("RecordInteractionEvent", mock.Anything, mock.MatchedBy(func(evt *model.InteractionEvent) bool {
		return evt.EventType == model.EventDraftGenerated
	})).Return(nil)

	verdict, err := engine.SaveDraft(context.Background(), "int_1", "Спасибо за отзыв!", "operator_1")
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	mockDS.AssertExpectations(t)
}
