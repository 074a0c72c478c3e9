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
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sellerdesk/sellerdesk/model"
)

// DraftRequest carries a reply draft for validation, saving or dispatch.
type DraftRequest struct {
	Text     string `json:"text"`
	Operator string `json:"operator"`
}

func (r *DraftRequest) ValidateDraftRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Required),
	)
}

// SendReplyRequest dispatches a reply; the operator is recorded on the audit
// trail.
type SendReplyRequest struct {
	Text     string `json:"text"`
	Operator string `json:"operator"`
}

func (r *SendReplyRequest) ValidateSendReplyRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Required),
		validation.Field(&r.Operator, validation.Required),
	)
}

// UpdateStatusRequest transitions an interaction's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateStatusRequest) ValidateUpdateStatusRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required,
			validation.In(model.StatusOpen, model.StatusResponded, model.StatusClosed)),
	)
}

// TriggerSyncRequest queues a sync pass. An empty seller id queues every
// configured seller. Force runs the pass inline instead of enqueuing it.
type TriggerSyncRequest struct {
	SellerID string `json:"seller_id"`
	Force    bool   `json:"force"`
}

func (r *TriggerSyncRequest) ValidateTriggerSyncRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SellerID, validation.Required.When(r.Force).Error("seller_id is required for a forced sync")),
	)
}
