// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpcclient wraps a single daemon's JSON-RPC endpoint and maps its
// {message, code} error envelope into the core's typed errs.RPCError
// (spec.md §4.4). The transport is a small context-aware HTTP client shaped
// after the teacher's utils/rpc/json.go helper.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/qtumproject/qtumd-node/errs"
)

// NoEndpointsError is returned when a node pool has no endpoints to try.
type NoEndpointsError struct{}

func (e *NoEndpointsError) Error() string { return "rpcclient: no ready endpoints" }

// Client issues JSON-RPC 1.0-style calls against one daemon.
type Client struct {
	endpoint *url.URL
	user     string
	password string
	http     *http.Client

	nextID uint64
}

// New constructs a Client bound to the given RPC endpoint.
func New(endpoint *url.URL, user, password string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, user: user, password: password, http: httpClient}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     uint64          `json:"id"`
}

type rpcError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// Call issues method with the given positional params and unmarshals the
// result into out (which may be nil if the caller only cares about success).
func (c *Client) Call(ctx context.Context, method string, params []any, out any) error {
	id := atomic.AddUint64(&c.nextID, 1)
	body, err := json.Marshal(request{JSONRPC: "1.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("rpcclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpcclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.user + ":" + c.password))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpcclient: issue request: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// bitcoind still returns a JSON error envelope on 4xx/5xx; fall
		// through to decode it rather than bailing on status alone.
	}

	var rpcResp response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("rpcclient: decode response (status %d): %w", resp.StatusCode, err)
	}

	if rpcResp.Error != nil {
		return &errs.RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("rpcclient: decode result: %w", err)
		}
	}
	return nil
}

// closeBody drains and closes an HTTP response body to let the connection
// be reused; see https://github.com/golang/go/issues/46071.
func closeBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
