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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/sellerdesk/sellerdesk"
	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/internal/apierror"
	redis_db "github.com/sellerdesk/sellerdesk/internal/redis-db"
	"github.com/sellerdesk/sellerdesk/internal/search"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// indexData represents the payload of a search indexing task: the collection
// name and the document to upsert.
type indexData struct {
	Collection string                 `json:"collection"`
	Payload    map[string]interface{} `json:"payload"`
}

// processSellerSync runs a full sync pass for one seller from the Redis
// queue. A pass already holding the seller's lock is not an error; the task
// is dropped rather than retried.
func (b *sellerdeskInstance) processSellerSync(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("sellerdesk.sync.worker").Start(ctx, "Process Seller Sync From Redis Queue")
	defer span.End()

	var payload sellerdesk.SyncTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	results, err := b.sellerdesk.SyncSeller(ctx, payload.SellerID, false)
	if err != nil {
		var apiErr apierror.APIError
		if errors.As(err, &apiErr) && apiErr.Code == apierror.ErrSyncInProgress {
			log.Printf(" [*] Sync already running for seller %s, skipping", payload.SellerID)
			return nil
		}
		logrus.Infof("Sync for seller %s pushed back for retry due to error: %v", payload.SellerID, err)
		return err
	}

	for _, r := range results {
		if r.Err != nil {
			logrus.Warnf("Channel %s failed for seller %s: %v", r.Channel, payload.SellerID, r.Err)
			continue
		}
		log.Printf(" [*] Synced %d items on %s for seller %s", r.Ingested, r.Channel, payload.SellerID)
	}
	return nil
}

// processEscalationSweep escalates overdue interactions for one seller.
func (b *sellerdeskInstance) processEscalationSweep(ctx context.Context, t *asynq.Task) error {
	var payload sellerdesk.SyncTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	escalated, err := b.sellerdesk.EscalateOverdue(ctx, payload.SellerID)
	if err != nil {
		return err
	}

	log.Printf(" [*] Escalated %d overdue interactions for seller %s", escalated, payload.SellerID)
	return nil
}

// indexData pushes a document into TypeSense for searchability. It ensures
// the collections exist before upserting the payload into its collection.
func (b *sellerdeskInstance) indexData(ctx context.Context, t *asynq.Task) error {
	var data indexData

	if err := json.Unmarshal(t.Payload(), &data); err != nil {
		logrus.Error(err)
		return err
	}

	newSearch := search.NewTypesenseClient(b.cnf.TypeSenseKey, []string{b.cnf.TypeSense.Dns})
	err := newSearch.EnsureCollectionsExist(context.Background())
	if err != nil {
		log.Printf("Failed to ensure collections exist: %v", err)
		return err
	}

	err = newSearch.HandleNotification(ctx, data.Collection, data.Payload)
	if err != nil {
		log.Println("Error indexing data", err)
		return err
	}

	log.Println(" [*] Data indexed", data.Collection)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.SyncQueue] = 3
	queues[cfg.Queue.WebhookQueue] = 3
	queues[cfg.Queue.IndexQueue] = 1
	queues[cfg.Queue.EscalationQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *sellerdeskInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.SyncQueue, b.processSellerSync)
	mux.HandleFunc(cfg.Queue.IndexQueue, b.indexData)
	mux.HandleFunc(cfg.Queue.WebhookQueue, sellerdesk.ProcessWebhook)
	mux.HandleFunc(cfg.Queue.EscalationQueue, b.processEscalationSweep)
}

// initializeScheduler registers the periodic per-seller tasks: a sync pass
// every sync interval and an escalation sweep every hour.
func initializeScheduler(conf *config.Configuration) (*asynq.Scheduler, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		nil,
	)

	for _, sellerID := range conf.Sellers {
		payload, err := json.Marshal(sellerdesk.SyncTaskPayload{SellerID: sellerID})
		if err != nil {
			return nil, err
		}

		syncTask := asynq.NewTask(conf.Queue.SyncQueue, payload, asynq.Queue(conf.Queue.SyncQueue))
		if _, err := scheduler.Register(fmt.Sprintf("@every %dm", conf.Sync.IntervalMin), syncTask); err != nil {
			return nil, err
		}

		escalationTask := asynq.NewTask(conf.Queue.EscalationQueue, payload, asynq.Queue(conf.Queue.EscalationQueue))
		if _, err := scheduler.Register("@every 1h", escalationTask); err != nil {
			return nil, err
		}
	}

	return scheduler, nil
}

// workerCommands defines the "workers" command to start worker processes.
// The workers listen to the sync, indexing, webhook and escalation queues.
func workerCommands(b *sellerdeskInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start sellerdesk workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			shutdown, err := initializeTracing(ctx)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			scheduler, err := initializeScheduler(conf)
			if err != nil {
				log.Fatal(err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			// Start asynqmon server for health checks and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
