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

// Package connectors implements the per-channel marketplace connector
// contract: paginated event listing, single-item fetch and reply dispatch.
// Each channel owns its payload shape; retry, backoff and auth fallback are
// shared. New channels are additive: implement Connector, register it in
// ForChannel.
package connectors

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/model"
)

// ErrAuthFailed marks a fatal credential rejection: the primary and the
// fallback auth header were both refused. Not retryable without operator
// action, so a sync pass aborts the channel and keeps its watermark.
var ErrAuthFailed = errors.New("channel authentication failed")

// RawItem is one raw event as returned by a channel, before normalization.
type RawItem struct {
	ExternalID   string                 `json:"external_id"`
	OccurredAt   time.Time              `json:"occurred_at"`
	Text         string                 `json:"text"`
	Rating       int                    `json:"rating,omitempty"`
	CustomerID   string                 `json:"customer_id,omitempty"`
	CustomerName string                 `json:"customer_name,omitempty"`
	OrderID      string                 `json:"order_id,omitempty"`
	ProductID    string                 `json:"product_id,omitempty"`
	Answered     bool                   `json:"answered"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// Connector is the per-channel contract the sync controller and the reply
// dispatcher speak. Implementations perform no side effects beyond the
// remote call itself.
type Connector interface {
	// Channel reports which communication surface this connector serves.
	Channel() model.Channel

	// List fetches one page of raw events. An empty cursor requests the
	// first page; an empty next cursor means the listing is exhausted.
	// Items are returned newest-first.
	List(ctx context.Context, cursor string) (items []RawItem, next string, err error)

	// Get fetches a single raw event by its channel-scoped id.
	Get(ctx context.Context, externalID string) (RawItem, error)

	// Reply posts the seller's reply text to the event.
	Reply(ctx context.Context, externalID string, text string) error
}

// ForChannel builds the connector serving one channel of the configured
// marketplace.
func ForChannel(conf config.MarketplaceConfig, channel model.Channel) (Connector, error) {
	switch channel {
	case model.ChannelReview:
		return newReviewConnector(conf), nil
	case model.ChannelQuestion:
		return newQuestionConnector(conf), nil
	case model.ChannelChat:
		return newChatConnector(conf), nil
	default:
		return nil, errors.Errorf("no connector for channel %q", channel)
	}
}

// All builds one connector per channel, in sync order.
func All(conf config.MarketplaceConfig) ([]Connector, error) {
	cons := make([]Connector, 0, len(model.AllChannels))
	for _, ch := range model.AllChannels {
		c, err := ForChannel(conf, ch)
		if err != nil {
			return nil, err
		}
		cons = append(cons, c)
	}
	return cons, nil
}
