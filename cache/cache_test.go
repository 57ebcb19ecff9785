// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTyped_GetOrFetch_CachesOnSuccess(t *testing.T) {
	c := newTyped[string]("test", 10, nil)
	var calls int32

	fetch := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	v1, err := c.GetOrFetch("k", fetch)
	require.NoError(t, err)
	require.Equal(t, "value", v1)

	v2, err := c.GetOrFetch("k", fetch)
	require.NoError(t, err)
	require.Equal(t, "value", v2)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTyped_GetOrFetch_DoesNotCacheFailure(t *testing.T) {
	c := newTyped[string]("test", 10, nil)
	var calls int32

	_, err := c.GetOrFetch("k", func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", assertErr
	})
	require.Error(t, err)

	_, err = c.GetOrFetch("k", func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", assertErr
	})
	require.Error(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTyped_GetOrFetch_DedupsConcurrentCallers(t *testing.T) {
	c := newTyped[int]("test", 10, nil)
	var calls int32
	release := make(chan struct{})

	fetch := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFetch("shared", fetch)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		require.Equal(t, 42, v)
	}
}

func TestRegistry_InvalidateTipSensitive_PurgesOnlyTipSensitiveCaches(t *testing.T) {
	r := New(nil)

	var blockCalls int32
	blockFetch := func() (any, error) {
		atomic.AddInt32(&blockCalls, 1)
		return "block-data", nil
	}
	_, err := r.Block.GetOrFetch("hash1", blockFetch)
	require.NoError(t, err)

	var addressCalls int32
	addressFetch := func() (any, error) {
		atomic.AddInt32(&addressCalls, 1)
		return "balance", nil
	}
	_, err = r.AddressBalance.GetOrFetch("addr1", addressFetch)
	require.NoError(t, err)

	r.InvalidateTipSensitive()

	_, err = r.AddressBalance.GetOrFetch("addr1", addressFetch)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&addressCalls), "tip-sensitive cache must be purged")

	_, err = r.Block.GetOrFetch("hash1", blockFetch)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&blockCalls), "content-addressed cache must survive tip invalidation")
}

type errString string

func (e errString) Error() string { return string(e) }

var assertErr = errString("boom")
