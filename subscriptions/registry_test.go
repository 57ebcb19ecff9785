// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package subscriptions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Subscribe_IsIdempotent(t *testing.T) {
	r := New[int](nil, nil)
	r.Subscribe(TopicHashBlock, 1)
	r.Subscribe(TopicHashBlock, 1)
	r.Subscribe(TopicHashBlock, 2)

	require.ElementsMatch(t, []int{1, 2}, r.Subscribers(TopicHashBlock))
}

func TestRegistry_Unsubscribe_UnknownHandleIsNoop(t *testing.T) {
	r := New[int](nil, nil)
	r.Subscribe(TopicHashBlock, 1)
	r.Unsubscribe(TopicHashBlock, 999)
	require.Equal(t, []int{1}, r.Subscribers(TopicHashBlock))
}

func TestRegistry_SubscribeAddress_PerAddressBuckets(t *testing.T) {
	r := New[int](nil, nil)
	r.SubscribeAddress(1, []string{"addrA", "addrB"})
	r.SubscribeAddress(2, []string{"addrA"})

	require.ElementsMatch(t, []int{1, 2}, r.AddressSubscribers("addrA"))
	require.Equal(t, []int{1}, r.AddressSubscribers("addrB"))
	require.Empty(t, r.AddressSubscribers("addrC"))
}

func TestRegistry_UnsubscribeAddress_EmptyAddrsRemovesFromAllBuckets(t *testing.T) {
	r := New[int](nil, nil)
	r.SubscribeAddress(1, []string{"addrA", "addrB"})
	r.UnsubscribeAddress(1, nil)

	require.Empty(t, r.AddressSubscribers("addrA"))
	require.Empty(t, r.AddressSubscribers("addrB"))
}

func TestRegistry_SubscribeBalance_IsIndependentOfAddressTxid(t *testing.T) {
	r := New[int](nil, nil)
	r.SubscribeAddress(1, []string{"addrA"})
	r.SubscribeBalance(2, []string{"addrA"})

	require.Equal(t, []int{1}, r.AddressSubscribers("addrA"))
	require.Equal(t, []int{2}, r.BalanceSubscribers("addrA"))
}
