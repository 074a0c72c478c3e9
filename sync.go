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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/internal/apierror"
	redlock "github.com/sellerdesk/sellerdesk/internal/lock"
	"github.com/sellerdesk/sellerdesk/internal/notification"
	"github.com/sellerdesk/sellerdesk/model"
)

// ChannelSyncResult summarizes one channel pass within a seller sync.
type ChannelSyncResult struct {
	Channel  model.Channel `json:"channel"`
	Ingested int           `json:"ingested"`
	Pages    int           `json:"pages"`
	Err      error         `json:"-"`
}

// SyncSeller runs one full sync pass for a seller: every channel, newest
// first, under the seller's sync lock. A pass already running anywhere
// returns ErrSyncInProgress and does no work; overlapping passes would burn
// the shared rate budget fetching the same pages twice. A forced pass
// ignores the stored watermarks and re-reads every channel's full history,
// the operator's recovery path after a bad watermark or missed items.
func (s *Sellerdesk) SyncSeller(ctx context.Context, sellerID string, force bool) ([]ChannelSyncResult, error) {
	ctx, span := tracer.Start(ctx, "Syncing seller")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	locker := redlock.NewLocker(s.redis, fmt.Sprintf("sync:%s", sellerID), model.GenerateUUIDWithSuffix("lock"))
	if err := locker.TryLock(ctx, time.Duration(cnf.Sync.LockTTLSec)*time.Second); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, apierror.NewAPIError(apierror.ErrSyncInProgress,
				fmt.Sprintf("sync already running for seller %s", sellerID), err)
		}
		return nil, err
	}
	defer func() {
		if err := locker.Unlock(context.Background()); err != nil {
			logrus.Errorf("failed to release sync lock for seller %s: %v", sellerID, err)
		}
	}()

	results := make([]ChannelSyncResult, len(model.AllChannels))
	var wg sync.WaitGroup
	for i, channel := range model.AllChannels {
		wg.Add(1)
		go func(i int, channel model.Channel) {
			defer wg.Done()
			res := s.syncChannel(ctx, cnf, sellerID, channel, force)
			if res.Err != nil {
				logrus.Errorf("sync failed for seller %s channel %s: %v", sellerID, channel, res.Err)
				notification.NotifyError(res.Err)
			}
			results[i] = res
		}(i, channel)
	}
	wg.Wait()

	return results, nil
}

// syncChannel pulls one channel forward from its watermark. Listings are
// newest-first, so pagination stops at the first page whose oldest item
// predates the cutoff; everything older was ingested by a previous pass. The
// cutoff overlaps the watermark by a couple of seconds to re-fetch items that
// raced the previous pass's clock; re-ingesting them is a no-op. A forced
// pass leaves the cutoff at zero and walks the whole listing regardless of
// the watermark.
func (s *Sellerdesk) syncChannel(ctx context.Context, cnf *config.Configuration, sellerID string, channel model.Channel, force bool) ChannelSyncResult {
	ctx, span := tracer.Start(ctx, "Syncing channel")
	defer span.End()

	result := ChannelSyncResult{Channel: channel}

	con, err := s.Connector(channel)
	if err != nil {
		result.Err = err
		return result
	}

	wm, err := s.datasource.GetSyncWatermark(ctx, sellerID, channel)
	if err != nil {
		result.Err = err
		return result
	}
	if wm == nil {
		wm = &model.SyncWatermark{SellerID: sellerID, Channel: channel}
	}

	var cutoff time.Time
	if wm.LastOccurredAt != nil && !force {
		cutoff = wm.LastOccurredAt.Add(-time.Duration(cnf.Sync.OverlapSec) * time.Second)
	}

	var maxOccurred time.Time
	if wm.LastOccurredAt != nil {
		maxOccurred = *wm.LastOccurredAt
	}

	source := model.SourcePrimaryAPI
	cursor := ""
	done := false
	for !done {
		if err := s.limiter.Take(ctx, sellerID); err != nil {
			result.Err = err
			break
		}

		items, next, err := con.List(ctx, cursor)
		if err != nil {
			result.Err = err
			break
		}
		result.Pages++

		for _, item := range items {
			if !cutoff.IsZero() && item.OccurredAt.Before(cutoff) {
				done = true
				break
			}
			if _, err := s.IngestItem(ctx, sellerID, channel, item, source); err != nil {
				logrus.Errorf("failed to ingest %s item %s for seller %s: %v", channel, item.ExternalID, sellerID, err)
				continue
			}
			result.Ingested++
			if item.OccurredAt.After(maxOccurred) {
				maxOccurred = item.OccurredAt
			}
		}

		if next == "" {
			done = true
		}
		cursor = next

		if !done && cnf.Sync.InterPageDelayMs > 0 {
			select {
			case <-ctx.Done():
				result.Err = ctx.Err()
				done = true
			case <-time.After(time.Duration(cnf.Sync.InterPageDelayMs) * time.Millisecond):
			}
		}
	}

	now := time.Now()
	wm.LastSyncedAt = &now
	if result.Err != nil {
		// the watermark does not advance past a failure; the next pass
		// re-fetches the same range
		wm.LastError = result.Err.Error()
	} else {
		wm.LastError = ""
		if !maxOccurred.IsZero() {
			wm.LastOccurredAt = &maxOccurred
		}
	}
	if err := s.datasource.SaveSyncWatermark(ctx, wm); err != nil {
		logrus.Errorf("failed to save sync watermark for seller %s channel %s: %v", sellerID, channel, err)
		if result.Err == nil {
			result.Err = err
		}
	}
	return result
}

// SyncStatus reports the per-channel watermarks for a seller: when each
// channel last synced, how far it has read, and the last fatal error if the
// previous pass failed.
func (s *Sellerdesk) SyncStatus(ctx context.Context, sellerID string) ([]*model.SyncWatermark, error) {
	ctx, span := tracer.Start(ctx, "Reading sync status")
	defer span.End()
	return s.datasource.GetSyncWatermarks(ctx, sellerID)
}

// EnqueueSync queues a sync pass for one seller.
func (s *Sellerdesk) EnqueueSync(ctx context.Context, sellerID string) error {
	return s.queue.EnqueueSellerSync(ctx, sellerID)
}

// SyncAll enqueues a sync task for every configured seller. Task IDs
// deduplicate per seller, so a seller whose previous task is still queued is
// skipped rather than queued twice.
func (s *Sellerdesk) SyncAll(ctx context.Context) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	for _, sellerID := range cnf.Sellers {
		if err := s.queue.EnqueueSellerSync(ctx, sellerID); err != nil {
			logrus.Errorf("failed to enqueue sync for seller %s: %v", sellerID, err)
			notification.NotifyError(err)
		}
	}
	return nil
}
