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
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/sellerdesk/sellerdesk/config"
	redis_db "github.com/sellerdesk/sellerdesk/internal/redis-db"
)

// Queue represents a queue for handling various tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// SyncTaskPayload is the payload for a seller sync task.
type SyncTaskPayload struct {
	SellerID string `json:"seller_id"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueIndexData enqueues a task to index data in a specified collection.
func (q *Queue) queueIndexData(id string, collection string, data interface{}) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	if cfg.TypeSense.Dns == "" {
		return nil
	}

	payload := map[string]interface{}{
		"collection": collection,
		"payload":    data,
	}

	IPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{asynq.Queue(cfg.Queue.IndexQueue)}
	task := asynq.NewTask(cfg.Queue.IndexQueue, IPayload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued index data: %+v", id)
	return nil
}

// EnqueueSellerSync enqueues a sync pass for one seller. The task id pins a
// seller to at most one pending sync task; the redis lock handles the case
// where a pass is already running.
func (q *Queue) EnqueueSellerSync(ctx context.Context, sellerID string) error {
	ctx, span := tracer.Start(ctx, "Adding Seller Sync To Queue")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(SyncTaskPayload{SellerID: sellerID})
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("sync:%s", sellerID)),
		asynq.Queue(cfg.Queue.SyncQueue),
	}
	task := asynq.NewTask(cfg.Queue.SyncQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if err == asynq.ErrTaskIDConflict {
			log.Printf(" [*] Sync already pending for seller: %s", sellerID)
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued seller sync: %s", sellerID)
	return nil
}

// EnqueueEscalationSweep enqueues the overdue-interaction sweep for one
// seller.
func (q *Queue) EnqueueEscalationSweep(ctx context.Context, sellerID string) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(SyncTaskPayload{SellerID: sellerID})
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("escalation:%s", sellerID)),
		asynq.Queue(cfg.Queue.EscalationQueue),
	}
	task := asynq.NewTask(cfg.Queue.EscalationQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if err == asynq.ErrTaskIDConflict {
			return nil
		}
		log.Println(err, info)
		return err
	}
	return nil
}
