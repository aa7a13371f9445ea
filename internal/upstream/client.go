// Copyright 2026 The ClassBridge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package upstream is the HTTP client for the core record API. It owns all
// business data; this layer only forwards requests and reads subscription
// records.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/classbridge/classbridge/internal/gate"
)

// Header names this layer adds on the way upstream.
const (
	HeaderTenantID      = "X-Tenant-ID"
	HeaderTenantChannel = "X-Tenant-Channel"
	HeaderRequestID     = "X-Request-ID"
)

// Config holds the upstream connection settings.
type Config struct {
	// BaseURL is the record API root, e.g. "http://records:4000".
	BaseURL string
	// Timeout bounds each upstream call end to end. Requests never hang past
	// it; the caller surfaces a gateway error instead.
	Timeout time.Duration
	// SubscriptionPath is the internal endpoint serving a tenant's
	// subscription record, with ":tenantId" as the placeholder.
	SubscriptionPath string
}

// Client calls the upstream record API.
type Client struct {
	base             *url.URL
	subscriptionPath string
	http             *http.Client
}

// Response is an upstream reply, body fully read so it can be cached and
// replayed to the browser.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// New creates an upstream client. The transport is OTel-instrumented so
// upstream latency shows up on the request trace.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream base URL %q must be absolute", cfg.BaseURL)
	}
	sub := cfg.SubscriptionPath
	if sub == "" {
		sub = "/internal/tenants/:tenantId/subscription"
	}
	return &Client{
		base:             base,
		subscriptionPath: sub,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Do forwards a request upstream and returns the reply whatever its status;
// the status code is the caller's to propagate. Transport failures and
// gateway-class statuses (502/503/504) are retried exactly once, and only for
// idempotent reads. Mutations are never retried, so a lost reply cannot turn
// into a double apply.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, header http.Header, body []byte) (*Response, error) {
	idempotent := method == http.MethodGet || method == http.MethodHead

	attempts := 1
	if idempotent {
		attempts = 2
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.send(ctx, method, path, query, header, body)
		if err != nil {
			lastErr = err
			continue
		}
		if idempotent && attempt < attempts-1 && retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("upstream returned %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("upstream %s %s: %w", method, path, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, header http.Header, body []byte) (*Response, error) {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}

// FetchSubscription reads a tenant's current subscription record. The result
// is deliberately never cached: billing changes must bite on the next
// request, not after a TTL.
func (c *Client) FetchSubscription(ctx context.Context, tenantID string) (gate.Subscription, error) {
	path := strings.ReplaceAll(c.subscriptionPath, ":tenantId", url.PathEscape(tenantID))

	resp, err := c.Do(ctx, http.MethodGet, path, nil, nil, nil)
	if err != nil {
		return gate.Subscription{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gate.Subscription{}, fmt.Errorf("subscription lookup for %q returned %d", tenantID, resp.StatusCode)
	}

	var sub gate.Subscription
	if err := json.Unmarshal(resp.Body, &sub); err != nil {
		return gate.Subscription{}, fmt.Errorf("decode subscription record: %w", err)
	}
	return sub, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
