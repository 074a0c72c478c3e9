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
	"unicode/utf8"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/model"
)

// Guardrail violation categories.
const (
	ViolationAIDisclosure    = "ai_disclosure"
	ViolationUnearnedPromise = "unearned_promise"
	ViolationBlameCustomer   = "blame_customer"
	ViolationDismissive      = "dismissive"
	ViolationLength          = "length"
)

// Violation severities. A blocking violation stops dispatch; an advisory one
// surfaces to the operator and lets the send through.
const (
	SeverityBlock = "block"
	SeverityWarn  = "warn"
)

// Violation is one guardrail finding against a draft.
type Violation struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	Matched  string `json:"matched,omitempty"`
	Message  string `json:"message"`
}

// ValidationResult is the guardrail verdict for one draft.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Blocked reports whether any violation carries blocking severity.
func (r ValidationResult) Blocked() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// guardrailPhrases is the banned phrase table, lowercase. Matching is
// case-insensitive substring containment. Operators extend categories at
// runtime through config; they cannot remove built-ins.
var guardrailPhrases = map[string][]string{
	ViolationAIDisclosure: {
		"как языковая модель", "я искусственный интеллект", "я нейросеть", "я бот",
		"сгенерировано ии", "я виртуальный ассистент",
		"as an ai", "as a language model", "i am an ai", "i'm an ai",
		"generated by ai", "i am a bot",
	},
	ViolationUnearnedPromise: {
		"гарантируем возврат", "обязательно вернём деньги", "обязательно вернем деньги",
		"вернём вам деньги", "вернем вам деньги", "компенсируем в любом случае",
		"стопроцентная гарантия", "гарантируем компенсацию",
		"we guarantee a refund", "full refund guaranteed", "we will definitely refund",
		"money back guaranteed", "we promise compensation",
	},
	ViolationBlameCustomer: {
		"вы сами виноваты", "это ваша вина", "вы неправильно использовали",
		"сами сломали", "читать инструкцию надо", "вы не разобрались",
		"it's your fault", "you broke it", "you are to blame", "you used it wrong",
		"should have read the instructions",
	},
	ViolationDismissive: {
		"это не наша проблема", "ничем не можем помочь", "сами разбирайтесь",
		"претензии не принимаются", "нас это не касается",
		"not our problem", "nothing we can do", "deal with it yourself",
		"we don't care",
	},
}

// refundMentions catch softer refund wordings than the outright promises in
// the phrase table. In a private chat a refund mention is advisory, but on a
// public channel the published wording reads as a commitment, so it blocks
// there.
var refundMentions = []string{
	"вернём деньги", "вернем деньги", "возврат средств", "возврат денег", "вернуть деньги",
	"refund", "money back", "return your money",
}

// severityFor resolves the severity of a category on a channel. Public
// channels (review, question) block on blame: a published accusation is a
// reputational incident. Chat is a private conversation, so blame downgrades
// to advisory there. AI disclosure and unearned promises block everywhere.
func severityFor(category string, channel model.Channel) string {
	switch category {
	case ViolationAIDisclosure, ViolationUnearnedPromise, ViolationLength:
		return SeverityBlock
	case ViolationBlameCustomer:
		if channel.IsPublic() {
			return SeverityBlock
		}
		return SeverityWarn
	default:
		return SeverityWarn
	}
}

// ValidateDraft runs every guardrail over a reply draft bound for the given
// channel.
func ValidateDraft(cnf *config.GuardrailConfig, channel model.Channel, draft string) ValidationResult {
	var violations []Violation

	length := utf8.RuneCountInString(strings.TrimSpace(draft))
	if length < cnf.MinLength {
		violations = append(violations, Violation{
			Category: ViolationLength,
			Severity: SeverityBlock,
			Message:  "reply is too short",
		})
	}
	if length > cnf.MaxLength {
		violations = append(violations, Violation{
			Category: ViolationLength,
			Severity: SeverityBlock,
			Message:  "reply is too long",
		})
	}

	lowered := strings.ToLower(draft)

	for category, phrases := range guardrailPhrases {
		all := phrases
		if extra, ok := cnf.ExtraPhrases[category]; ok {
			all = append(all, extra...)
		}
		for _, phrase := range all {
			if strings.Contains(lowered, strings.ToLower(phrase)) {
				violations = append(violations, Violation{
					Category: category,
					Severity: severityFor(category, channel),
					Matched:  phrase,
					Message:  "draft contains a banned phrase",
				})
				break
			}
		}
	}

	if !hasViolation(violations, ViolationUnearnedPromise) {
		refundSeverity := SeverityWarn
		if channel.IsPublic() {
			refundSeverity = SeverityBlock
		}
		for _, phrase := range refundMentions {
			if strings.Contains(lowered, phrase) {
				violations = append(violations, Violation{
					Category: ViolationUnearnedPromise,
					Severity: refundSeverity,
					Matched:  phrase,
					Message:  "draft mentions a refund; confirm it is authorized",
				})
				break
			}
		}
	}

	return ValidationResult{Valid: !hasBlocking(violations), Violations: violations}
}

func hasViolation(violations []Violation, category string) bool {
	for _, v := range violations {
		if v.Category == category {
			return true
		}
	}
	return false
}

func hasBlocking(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// ValidateDraftFor validates a draft against the interaction it would answer.
func (s *Sellerdesk) ValidateDraftFor(in *model.Interaction, draft string) (ValidationResult, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidateDraft(&cnf.Guardrail, in.Channel, draft), nil
}
