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
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/connectors"
	"github.com/sellerdesk/sellerdesk/database/mocks"
	"github.com/sellerdesk/sellerdesk/internal/ratelimit"
	"github.com/sellerdesk/sellerdesk/model"
)

func newTestEngine(t *testing.T) (*Sellerdesk, *mocks.MockDataSource, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cnf := &config.Configuration{
		ProjectName: "sellerdesk",
		Sellers:     []string{"seller_1"},
		DataSource:  config.DataSourceConfig{Dns: "postgres://localhost:5432/sellerdesk"},
		Redis:       config.RedisConfig{Dns: mr.Addr()},
		Marketplace: config.MarketplaceConfig{Name: "market"},
	}
	config.MockConfig(cnf)
	// keep index tasks and inter-page sleeps out of unit tests
	cnf.TypeSense.Dns = ""
	cnf.Sync.InterPageDelayMs = 1

	mockDS := new(mocks.MockDataSource)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	engine := &Sellerdesk{
		queue:      &Queue{},
		redis:      client,
		datasource: mockDS,
		limiter:    ratelimit.NewLimiter(client, cnf.Sync.CallsPerMinute, time.Second),
		connectors: make(map[model.Channel]connectors.Connector),
		classifier: KeywordClassifier{},
	}
	return engine, mockDS, mr
}

// fakeConnector serves canned pages and records replies, standing in for a
// marketplace channel in engine tests.
type fakeConnector struct {
	channel  model.Channel
	pages    [][]connectors.RawItem
	listErr  error
	replyErr error
	lists    int
	replies  map[string]string
}

func (f *fakeConnector) Channel() model.Channel { return f.channel }

func (f *fakeConnector) List(_ context.Context, cursor string) ([]connectors.RawItem, string, error) {
	if f.listErr != nil {
		return nil, "", f.listErr
	}
	f.lists++
	page := 0
	if cursor != "" {
		page, _ = strconv.Atoi(cursor)
	}
	if page >= len(f.pages) {
		return nil, "", nil
	}
	next := ""
	if page+1 < len(f.pages) {
		next = strconv.Itoa(page + 1)
	}
	return f.pages[page], next, nil
}

func (f *fakeConnector) Get(_ context.Context, externalID string) (connectors.RawItem, error) {
	for _, page := range f.pages {
		for _, item := range page {
			if item.ExternalID == externalID {
				return item, nil
			}
		}
	}
	return connectors.RawItem{}, fmt.Errorf("item %s not found", externalID)
}

func (f *fakeConnector) Reply(_ context.Context, externalID, text string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	if f.replies == nil {
		f.replies = make(map[string]string)
	}
	f.replies[externalID] = text
	return nil
}
