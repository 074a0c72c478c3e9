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
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sellerdesk/sellerdesk/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Interaction methods

func (m *MockDataSource) RecordInteraction(ctx context.Context, in *model.Interaction) (*model.Interaction, bool, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*model.Interaction), args.Bool(1), args.Error(2)
}

func (m *MockDataSource) GetInteraction(ctx context.Context, id string) (*model.Interaction, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.Interaction), args.Error(1)
}

func (m *MockDataSource) GetInteractionByIdentity(ctx context.Context, sellerID, marketplace string, channel model.Channel, externalID string) (*model.Interaction, error) {
	args := m.Called(ctx, sellerID, marketplace, channel, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Interaction), args.Error(1)
}

func (m *MockDataSource) GetAllInteractions(ctx context.Context, filter model.InteractionFilter, limit, offset int) ([]*model.Interaction, error) {
	args := m.Called(ctx, filter, limit, offset)
	return args.Get(0).([]*model.Interaction), args.Error(1)
}

func (m *MockDataSource) GetLinkScope(ctx context.Context, in *model.Interaction, windowDays int) ([]*model.Interaction, error) {
	args := m.Called(ctx, in, windowDays)
	return args.Get(0).([]*model.Interaction), args.Error(1)
}

func (m *MockDataSource) GetOpenInteractionsOlderThan(ctx context.Context, sellerID string, cutoff time.Time) ([]*model.Interaction, error) {
	args := m.Called(ctx, sellerID, cutoff)
	return args.Get(0).([]*model.Interaction), args.Error(1)
}

func (m *MockDataSource) UpdateInteractionStatus(ctx context.Context, id string, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDataSource) UpdateInteractionPriority(ctx context.Context, id string, priority string, reason string) error {
	args := m.Called(ctx, id, priority, reason)
	return args.Error(0)
}

func (m *MockDataSource) UpdateInteractionExtraData(ctx context.Context, id string, extraData map[string]interface{}) error {
	args := m.Called(ctx, id, extraData)
	return args.Error(0)
}

func (m *MockDataSource) GetInteractionCounts(ctx context.Context, sellerID string) (*model.InteractionCounts, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InteractionCounts), args.Error(1)
}

func (m *MockDataSource) CountOverdueOpen(ctx context.Context, sellerID string) (int64, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(int64), args.Error(1)
}

// Event methods

func (m *MockDataSource) RecordInteractionEvent(ctx context.Context, evt *model.InteractionEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockDataSource) GetInteractionEvents(ctx context.Context, interactionID string) ([]*model.InteractionEvent, error) {
	args := m.Called(ctx, interactionID)
	return args.Get(0).([]*model.InteractionEvent), args.Error(1)
}

func (m *MockDataSource) GetEventTypeCounts(ctx context.Context, sellerID string) (map[string]int64, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

// Link methods

func (m *MockDataSource) RecordLinkCandidate(ctx context.Context, lc *model.LinkCandidate) error {
	args := m.Called(ctx, lc)
	return args.Error(0)
}

func (m *MockDataSource) GetLinksForInteraction(ctx context.Context, interactionID string) ([]*model.LinkCandidate, error) {
	args := m.Called(ctx, interactionID)
	return args.Get(0).([]*model.LinkCandidate), args.Error(1)
}

func (m *MockDataSource) GetLinkByEdge(ctx context.Context, aID, bID string) (*model.LinkCandidate, error) {
	args := m.Called(ctx, aID, bID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkCandidate), args.Error(1)
}

func (m *MockDataSource) GetLinkCounts(ctx context.Context, sellerID string, actionThreshold float64) (*model.LinkCounts, error) {
	args := m.Called(ctx, sellerID, actionThreshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkCounts), args.Error(1)
}

// Watermark methods

func (m *MockDataSource) GetSyncWatermark(ctx context.Context, sellerID string, channel model.Channel) (*model.SyncWatermark, error) {
	args := m.Called(ctx, sellerID, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncWatermark), args.Error(1)
}

func (m *MockDataSource) SaveSyncWatermark(ctx context.Context, wm *model.SyncWatermark) error {
	args := m.Called(ctx, wm)
	return args.Error(0)
}

func (m *MockDataSource) GetSyncWatermarks(ctx context.Context, sellerID string) ([]*model.SyncWatermark, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).([]*model.SyncWatermark), args.Error(1)
}
