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

// questionPayload is the pre-purchase question channel's wire shape.
// Questions carry no order reference: the customer has not bought yet.
type questionPayload struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Answered     bool      `json:"answered"`
}

func (p questionPayload) toRawItem() RawItem {
	return RawItem{
		ExternalID:   p.ID,
		OccurredAt:   p.CreatedAt,
		Text:         p.Text,
		CustomerID:   p.CustomerID,
		CustomerName: p.CustomerName,
		ProductID:    p.ProductID,
		Answered:     p.Answered,
	}
}

type questionConnector struct {
	*httpChannel
}

func newQuestionConnector(conf config.MarketplaceConfig) *questionConnector {
	return &questionConnector{httpChannel: newHTTPChannel(conf, conf.QuestionURL)}
}

func (c *questionConnector) Channel() model.Channel {
	return model.ChannelQuestion
}

func (c *questionConnector) List(ctx context.Context, cursor string) ([]RawItem, string, error) {
	p, err := c.listPage(ctx, cursor)
	if err != nil {
		return nil, "", err
	}
	items := make([]RawItem, 0, len(p.Items))
	for _, raw := range p.Items {
		var qp questionPayload
		if err := json.Unmarshal(raw, &qp); err != nil {
			return nil, "", errors.Wrap(err, "decoding question item")
		}
		items = append(items, qp.toRawItem())
	}
	return items, p.NextCursor, nil
}

func (c *questionConnector) Get(ctx context.Context, externalID string) (RawItem, error) {
	var qp questionPayload
	if err := c.doJSON(ctx, http.MethodGet, c.itemURL(externalID), nil, &qp); err != nil {
		return RawItem{}, err
	}
	return qp.toRawItem(), nil
}

func (c *questionConnector) Reply(ctx context.Context, externalID, text string) error {
	return c.reply(ctx, externalID, text)
}
