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

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/model"
)

// Sync health states reported per channel.
const (
	SyncHealthOK      = "ok"
	SyncHealthStale   = "stale"
	SyncHealthFailing = "failing"
	SyncHealthNever   = "never_synced"
)

// ChannelHealth is the sync health verdict for one channel of a seller.
type ChannelHealth struct {
	Channel        model.Channel `json:"channel"`
	Health         string        `json:"health"`
	LastSyncedAt   *time.Time    `json:"last_synced_at,omitempty"`
	LastOccurredAt *time.Time    `json:"last_occurred_at,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
}

// QualityMetrics is derived from the append-only event log and the link edge
// set: how the pipeline performs, not just what it stores.
type QualityMetrics struct {
	Events       map[string]int64  `json:"events"`
	RepliesSent  int64             `json:"replies_sent"`
	SendsFailed  int64             `json:"sends_failed"`
	SendsBlocked int64             `json:"sends_blocked"`
	OverdueOpen  int64             `json:"overdue_open"`
	Links        *model.LinkCounts `json:"links"`
}

// SellerMetrics is the operational snapshot for one seller: the interaction
// inventory, the pipeline quality aggregates and the sync health of every
// channel.
type SellerMetrics struct {
	SellerID string                   `json:"seller_id"`
	Counts   *model.InteractionCounts `json:"counts"`
	Quality  *QualityMetrics          `json:"quality"`
	Channels []ChannelHealth          `json:"channels"`
}

// GetMetrics assembles the metrics snapshot for a seller. A channel is stale
// when its last pass finished more than two sync intervals ago; failing when
// the last pass recorded a fatal error.
func (s *Sellerdesk) GetMetrics(ctx context.Context, sellerID string) (*SellerMetrics, error) {
	ctx, span := tracer.Start(ctx, "Assembling seller metrics")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	counts, err := s.datasource.GetInteractionCounts(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	events, err := s.datasource.GetEventTypeCounts(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	links, err := s.datasource.GetLinkCounts(ctx, sellerID, cnf.Link.ActionThreshold)
	if err != nil {
		return nil, err
	}
	overdue, err := s.datasource.CountOverdueOpen(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	quality := &QualityMetrics{
		Events:       events,
		RepliesSent:  events[model.EventReplySent],
		SendsFailed:  events[model.EventSendFailed],
		SendsBlocked: events[model.EventSendBlocked],
		OverdueOpen:  overdue,
		Links:        links,
	}

	watermarks, err := s.datasource.GetSyncWatermarks(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	byChannel := make(map[model.Channel]*model.SyncWatermark, len(watermarks))
	for _, wm := range watermarks {
		byChannel[wm.Channel] = wm
	}

	staleAfter := 2 * time.Duration(cnf.Sync.IntervalMin) * time.Minute
	channels := make([]ChannelHealth, 0, len(model.AllChannels))
	for _, channel := range model.AllChannels {
		health := ChannelHealth{Channel: channel, Health: SyncHealthNever}
		if wm, ok := byChannel[channel]; ok {
			health.LastSyncedAt = wm.LastSyncedAt
			health.LastOccurredAt = wm.LastOccurredAt
			health.LastError = wm.LastError
			switch {
			case wm.LastError != "":
				health.Health = SyncHealthFailing
			case wm.LastSyncedAt == nil || time.Since(*wm.LastSyncedAt) > staleAfter:
				health.Health = SyncHealthStale
			default:
				health.Health = SyncHealthOK
			}
		}
		channels = append(channels, health)
	}

	return &SellerMetrics{SellerID: sellerID, Counts: counts, Quality: quality, Channels: channels}, nil
}
