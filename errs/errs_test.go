// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRPCError_RetryableAndNotFound(t *testing.T) {
	warmingUp := &RPCError{Code: -28, Message: "loading block index"}
	require.True(t, warmingUp.Retryable())
	require.False(t, warmingUp.NotFound())

	notFound := &RPCError{Code: -5, Message: "no such transaction"}
	require.True(t, notFound.NotFound())
	require.False(t, notFound.Retryable())

	other := &RPCError{Code: -1, Message: "misc"}
	require.False(t, other.Retryable())
	require.False(t, other.NotFound())
}

func TestRPCError_DiscriminatesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("rpc call failed: %w", &RPCError{Code: -5, Message: "not found"})

	var rpcErr *RPCError
	require.True(t, errors.As(wrapped, &rpcErr))
	require.True(t, rpcErr.NotFound())
}

func TestErrorKinds_ImplementErrorInterface(t *testing.T) {
	var errs = []error{
		&RPCError{Code: -1, Message: "x"},
		&ConfigurationError{Reason: "missing flag"},
		&ValidationError{Reason: "bad input"},
		&SupervisorError{Reason: "timed out"},
		&ShuttingDownError{},
	}
	for _, e := range errs {
		require.NotEmpty(t, e.Error())
	}
}
