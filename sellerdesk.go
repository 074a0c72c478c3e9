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
	"embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/connectors"
	"github.com/sellerdesk/sellerdesk/database"
	"github.com/sellerdesk/sellerdesk/internal/ratelimit"
	redis_db "github.com/sellerdesk/sellerdesk/internal/redis-db"
	"github.com/sellerdesk/sellerdesk/internal/search"
	"github.com/sellerdesk/sellerdesk/model"
)

var tracer = otel.Tracer("sellerdesk")

// Sellerdesk represents the main struct for the SellerDesk engine. It ties
// the channel connectors, the datasource, the sync coordinator primitives and
// the search index together behind one service surface.
type Sellerdesk struct {
	queue      *Queue
	search     *search.TypesenseClient
	redis      redis.UniversalClient
	datasource database.IDataSource
	limiter    *ratelimit.Limiter
	connectors map[model.Channel]connectors.Connector
	classifier IntentClassifier
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewSellerdesk initializes a new instance of Sellerdesk with the provided
// database datasource. It fetches the configuration and initializes the Redis
// client, the per-seller rate limiter, the task queue, the channel connectors
// and the search client.
func NewSellerdesk(db database.IDataSource) (*Sellerdesk, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	cons, err := connectors.All(configuration.Marketplace)
	if err != nil {
		return nil, err
	}
	byChannel := make(map[model.Channel]connectors.Connector, len(cons))
	for _, c := range cons {
		byChannel[c.Channel()] = c
	}

	limiter := ratelimit.NewLimiter(
		redisClient.Client(),
		configuration.Sync.CallsPerMinute,
		time.Duration(configuration.Sync.TokenWaitSec)*time.Second,
	)
	newQueue := NewQueue(configuration)
	newSearch := search.NewTypesenseClient("sellerdesk-api-key", []string{configuration.TypeSense.Dns})

	newSellerdesk := &Sellerdesk{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		search:     newSearch,
		limiter:    limiter,
		connectors: byChannel,
		classifier: KeywordClassifier{},
	}
	return newSellerdesk, nil
}

// SetIntentClassifier swaps the intent classifier, e.g. for an externally
// hosted model. A nil classifier restores the keyword default.
func (s *Sellerdesk) SetIntentClassifier(c IntentClassifier) {
	if c == nil {
		c = KeywordClassifier{}
	}
	s.classifier = c
}

// Connector returns the connector serving the given channel.
func (s *Sellerdesk) Connector(channel model.Channel) (connectors.Connector, error) {
	c, ok := s.connectors[channel]
	if !ok {
		return nil, fmt.Errorf("no connector for channel %q", channel)
	}
	return c, nil
}
