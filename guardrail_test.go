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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/model"
)

func guardrailConf() *config.GuardrailConfig {
	return &config.GuardrailConfig{MinLength: 2, MaxLength: 1000}
}

func TestValidateDraftCleanReplyPasses(t *testing.T) {
	result := ValidateDraft(guardrailConf(), model.ChannelReview,
		"Спасибо за отзыв! Нам жаль, что товар вас разочаровал. Напишите нам в чат, мы поможем.")
	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
}

func TestValidateDraftLengthBounds(t *testing.T) {
	result := ValidateDraft(guardrailConf(), model.ChannelReview, " ")
	assert.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationLength, result.Violations[0].Category)
	assert.Equal(t, SeverityBlock, result.Violations[0].Severity)

	result = ValidateDraft(guardrailConf(), model.ChannelReview, strings.Repeat("а", 1001))
	assert.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationLength, result.Violations[0].Category)
}

func TestValidateDraftAIDisclosureBlocksEverywhere(t *testing.T) {
	draft := "Как языковая модель, я не могу оценить качество товара."
	for _, channel := range model.AllChannels {
		result := ValidateDraft(guardrailConf(), channel, draft)
		assert.True(t, result.Blocked(), "ai disclosure must block on %s", channel)
	}
}

func TestValidateDraftBlameSeverityDependsOnChannel(t *testing.T) {
	draft := "Вы сами виноваты, что устройство перестало работать."

	result := ValidateDraft(guardrailConf(), model.ChannelReview, draft)
	assert.True(t, result.Blocked(), "blame on a public channel is a blocking violation")

	result = ValidateDraft(guardrailConf(), model.ChannelChat, draft)
	assert.False(t, result.Blocked(), "blame in a private chat is advisory")
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationBlameCustomer, result.Violations[0].Category)
	assert.Equal(t, SeverityWarn, result.Violations[0].Severity)
}

func TestValidateDraftRefundMentionIsAdvisoryOnChat(t *testing.T) {
	result := ValidateDraft(guardrailConf(), model.ChannelChat,
		"Мы можем оформить возврат средств, если товар не подошёл.")
	assert.True(t, result.Valid, "a refund mention in a private chat must not block")
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationUnearnedPromise, result.Violations[0].Category)
	assert.Equal(t, SeverityWarn, result.Violations[0].Severity)
}

func TestValidateDraftRefundMentionBlocksOnPublicChannels(t *testing.T) {
	draft := "Мы можем оформить возврат средств, если товар не подошёл."
	for _, channel := range []model.Channel{model.ChannelReview, model.ChannelQuestion} {
		result := ValidateDraft(guardrailConf(), channel, draft)
		assert.True(t, result.Blocked(), "a published refund mention must block on %s", channel)
		require.Len(t, result.Violations, 1)
		assert.Equal(t, ViolationUnearnedPromise, result.Violations[0].Category)
		assert.Equal(t, SeverityBlock, result.Violations[0].Severity)
	}
}

func TestValidateDraftRefundPromiseBlocks(t *testing.T) {
	result := ValidateDraft(guardrailConf(), model.ChannelChat,
		"Не переживайте, мы гарантируем возврат в полном объёме.")
	assert.True(t, result.Blocked())
	// the outright promise suppresses the softer advisory for the same category
	count := 0
	for _, v := range result.Violations {
		if v.Category == ViolationUnearnedPromise {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestValidateDraftConfigExtraPhrases(t *testing.T) {
	cnf := guardrailConf()
	cnf.ExtraPhrases = map[string][]string{
		ViolationDismissive: {"обращайтесь к производителю"},
	}
	result := ValidateDraft(cnf, model.ChannelQuestion,
		"По этому вопросу обращайтесь к производителю напрямую.")
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ViolationDismissive, result.Violations[0].Category)
	assert.Equal(t, SeverityWarn, result.Violations[0].Severity)
	assert.True(t, result.Valid)
}

func TestValidateDraftEnglishPhrases(t *testing.T) {
	result := ValidateDraft(guardrailConf(), model.ChannelReview,
		"Honestly, it's your fault the device broke down.")
	assert.True(t, result.Blocked())
}
