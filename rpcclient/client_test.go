// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qtumproject/qtumd-node/errs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	return New(u, "rpcuser", "rpcpass", nil)
}

func TestCall_DecodesSuccessfulResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "getblockcount", req.Method)
		require.Equal(t, []any{}, req.Params)

		_ = json.NewEncoder(w).Encode(response{Result: json.RawMessage(`123`), ID: req.ID})
	})

	var height int
	err := c.Call(context.Background(), "getblockcount", []any{}, &height)
	require.NoError(t, err)
	require.Equal(t, 123, height)
}

func TestCall_SendsBasicAuthHeader(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(response{Result: json.RawMessage(`null`), ID: req.ID})
	})

	err := c.Call(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	require.True(t, gotOK)
	require.Equal(t, "rpcuser", gotUser)
	require.Equal(t, "rpcpass", gotPass)
}

func TestCall_MapsErrorEnvelopeToRPCError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(response{
			Error: &rpcError{Code: -5, Message: "No information available about transaction"},
			ID:    req.ID,
		})
	})

	err := c.Call(context.Background(), "getrawtransaction", []any{"deadbeef"}, nil)
	require.Error(t, err)

	var rpcErr *errs.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, int64(-5), rpcErr.Code)
	require.True(t, rpcErr.NotFound())
}

func TestCall_NonOKStatusStillDecodesErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(response{
			Error: &rpcError{Code: -28, Message: "Loading block index..."},
			ID:    req.ID,
		})
	})

	err := c.Call(context.Background(), "getblockchaininfo", nil, nil)
	require.Error(t, err)

	var rpcErr *errs.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.True(t, rpcErr.Retryable())
}

func TestCall_NilOutSkipsDecodeWhenResultEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(response{ID: req.ID})
	})

	err := c.Call(context.Background(), "stop", nil, nil)
	require.NoError(t, err)
}
