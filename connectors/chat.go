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

// chatPayload is the live-chat channel's wire shape. The chat id doubles as
// the external id; replies go back into the same chat.
type chatPayload struct {
	ID           string    `json:"id"`
	ChatID       string    `json:"chat_id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	OrderID      string    `json:"order_id"`
	ProductID    string    `json:"product_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Replied      bool      `json:"replied"`
}

func (p chatPayload) toRawItem() RawItem {
	payload := map[string]interface{}{}
	if p.ChatID != "" {
		payload["chat_id"] = p.ChatID
	}
	return RawItem{
		ExternalID:   p.ID,
		OccurredAt:   p.CreatedAt,
		Text:         p.Text,
		CustomerID:   p.CustomerID,
		CustomerName: p.CustomerName,
		OrderID:      p.OrderID,
		ProductID:    p.ProductID,
		Answered:     p.Replied,
		Payload:      payload,
	}
}

type chatConnector struct {
	*httpChannel
}

func newChatConnector(conf config.MarketplaceConfig) *chatConnector {
	return &chatConnector{httpChannel: newHTTPChannel(conf, conf.ChatURL)}
}

func (c *chatConnector) Channel() model.Channel {
	return model.ChannelChat
}

func (c *chatConnector) List(ctx context.Context, cursor string) ([]RawItem, string, error) {
	p, err := c.listPage(ctx, cursor)
	if err != nil {
		return nil, "", err
	}
	items := make([]RawItem, 0, len(p.Items))
	for _, raw := range p.Items {
		var cp chatPayload
		if err := json.Unmarshal(raw, &cp); err != nil {
			return nil, "", errors.Wrap(err, "decoding chat item")
		}
		items = append(items, cp.toRawItem())
	}
	return items, p.NextCursor, nil
}

func (c *chatConnector) Get(ctx context.Context, externalID string) (RawItem, error) {
	var cp chatPayload
	if err := c.doJSON(ctx, http.MethodGet, c.itemURL(externalID), nil, &cp); err != nil {
		return RawItem{}, err
	}
	return cp.toRawItem(), nil
}

func (c *chatConnector) Reply(ctx context.Context, externalID, text string) error {
	return c.reply(ctx, externalID, text)
}
