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

package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/model"
)

// reviewPayload is the review channel's wire shape.
type reviewPayload struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	OrderID      string    `json:"order_id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Answered     bool      `json:"answered"`
}

func (p reviewPayload) toRawItem() RawItem {
	return RawItem{
		ExternalID:   p.ID,
		OccurredAt:   p.CreatedAt,
		Text:         p.Text,
		Rating:       p.Rating,
		CustomerID:   p.CustomerID,
		CustomerName: p.CustomerName,
		OrderID:      p.OrderID,
		ProductID:    p.ProductID,
		Answered:     p.Answered,
	}
}

type reviewConnector struct {
	*httpChannel
}

func newReviewConnector(conf config.MarketplaceConfig) *reviewConnector {
	return &reviewConnector{httpChannel: newHTTPChannel(conf, conf.ReviewURL)}
}

func (c *reviewConnector) Channel() model.Channel {
	return model.ChannelReview
}

func (c *reviewConnector) List(ctx context.Context, cursor string) ([]RawItem, string, error) {
	p, err := c.listPage(ctx, cursor)
	if err != nil {
		return nil, "", err
	}
	items := make([]RawItem, 0, len(p.Items))
	for _, raw := range p.Items {
		var rp reviewPayload
		if err := json.Unmarshal(raw, &rp); err != nil {
			return nil, "", errors.Wrap(err, "decoding review item")
		}
		items = append(items, rp.toRawItem())
	}
	return items, p.NextCursor, nil
}

func (c *reviewConnector) Get(ctx context.Context, externalID string) (RawItem, error) {
	var rp reviewPayload
	if err := c.doJSON(ctx, http.MethodGet, c.itemURL(externalID), nil, &rp); err != nil {
		return RawItem{}, err
	}
	return rp.toRawItem(), nil
}

func (c *reviewConnector) Reply(ctx context.Context, externalID, text string) error {
	return c.reply(ctx, externalID, text)
}
