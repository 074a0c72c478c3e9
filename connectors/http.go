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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sellerdesk/sellerdesk/config"
)

// page is the generic wire shape every channel listing returns.
type page struct {
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
}

// httpChannel is the shared HTTP core of every connector. It owns auth
// (primary bearer key, one fallback header retry on 401), bounded
// exponential backoff on 429/5xx, and JSON decoding.
type httpChannel struct {
	baseURL     string
	apiKey      string
	fallbackKey string
	client      *http.Client
	maxRetries  uint64
	pageSize    int

	// set after the fallback header succeeded once, so subsequent calls
	// skip the doomed primary attempt; atomic because sync pulls and reply
	// dispatches share the channel across goroutines
	useFallbackAuth atomic.Bool
}

func newHTTPChannel(conf config.MarketplaceConfig, baseURL string) *httpChannel {
	pageSize := 50
	maxRetries := uint64(4)
	if cnf, err := config.Fetch(); err == nil {
		pageSize = cnf.Sync.PageSize
		maxRetries = uint64(cnf.Sync.MaxRetries)
	}
	return &httpChannel{
		baseURL:     baseURL,
		apiKey:      conf.APIKey,
		fallbackKey: conf.FallbackAPIKey,
		client:      &http.Client{Timeout: time.Duration(conf.TimeoutSec) * time.Second},
		maxRetries:  maxRetries,
		pageSize:    pageSize,
	}
}

func (h *httpChannel) authorize(req *http.Request, fallback bool) {
	if fallback {
		req.Header.Set("X-Api-Key", h.fallbackKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
}

// doJSON performs one logical call: retried on 429/5xx with exponential
// backoff, one auth-header fallback on 401, fatal on anything else.
func (h *httpChannel) doJSON(ctx context.Context, method, rawURL string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		h.authorize(req, h.useFallbackAuth.Load())

		resp, err := h.client.Do(req)
		if err != nil {
			return err // network errors are retryable
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			if !h.useFallbackAuth.Load() && h.fallbackKey != "" {
				logrus.WithField("url", rawURL).Warn("primary auth rejected, retrying with fallback header")
				h.useFallbackAuth.Store(true)
				return h.retryWithFallback(ctx, method, rawURL, payload, out)
			}
			return backoff.Permanent(errors.Wrapf(ErrAuthFailed, "unauthorized: %s", rawURL))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("transient status %d from %s", resp.StatusCode, rawURL)
		case resp.StatusCode >= 400:
			data, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("status %d from %s: %s", resp.StatusCode, rawURL, data))
		}

		if out == nil {
			return nil
		}
		return backoffPermanentOnDecode(json.NewDecoder(resp.Body).Decode(out))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), h.maxRetries), ctx)
	return backoff.Retry(operation, b)
}

// retryWithFallback replays the request once with the fallback header. A
// second 401 is fatal.
func (h *httpChannel) retryWithFallback(ctx context.Context, method, rawURL string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	h.authorize(req, true)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		h.useFallbackAuth.Store(false)
		return backoff.Permanent(errors.Wrapf(ErrAuthFailed, "fallback auth also rejected: %s", rawURL))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d from %s after auth fallback", resp.StatusCode, rawURL)
	}

	if out == nil {
		return nil
	}
	return backoffPermanentOnDecode(json.NewDecoder(resp.Body).Decode(out))
}

func backoffPermanentOnDecode(err error) error {
	if err != nil {
		return backoff.Permanent(errors.Wrap(err, "decoding response"))
	}
	return nil
}

func (h *httpChannel) listURL(cursor string) string {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", h.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return h.baseURL + "?" + q.Encode()
}

func (h *httpChannel) itemURL(externalID string) string {
	return h.baseURL + "/" + url.PathEscape(externalID)
}

func (h *httpChannel) replyURL(externalID string) string {
	return h.itemURL(externalID) + "/reply"
}

func (h *httpChannel) listPage(ctx context.Context, cursor string) (page, error) {
	var p page
	err := h.doJSON(ctx, http.MethodGet, h.listURL(cursor), nil, &p)
	return p, err
}

func (h *httpChannel) reply(ctx context.Context, externalID, text string) error {
	body := map[string]string{"text": text}
	return h.doJSON(ctx, http.MethodPost, h.replyURL(externalID), body, nil)
}
