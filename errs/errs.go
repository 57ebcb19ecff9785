// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs defines the core's typed error taxonomy (spec.md §7): the
// kinds a caller of the supervisor/broker API may need to discriminate with
// errors.As, rather than string-matching.
package errs

import "fmt"

// RPCError mirrors the daemon's {code, message} error envelope. Code -28
// means the daemon is warming up and the call is retryable; code -5 means
// not-found, which some broker operations (getSpentInfo) treat as an empty
// success rather than an error.
type RPCError struct {
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Retryable reports whether the daemon is merely warming up.
func (e *RPCError) Retryable() bool { return e.Code == -28 }

// NotFound reports whether the daemon could not locate the requested item.
func (e *RPCError) NotFound() bool { return e.Code == -5 }

// ConfigurationError signals a daemon config file that is missing a required
// index flag, has mismatched push-channel endpoints, or otherwise cannot be
// materialised into a runnable daemon configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ValidationError signals a caller-supplied option failed validation:
// out-of-order pagination, too many addresses, and similar input errors.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// SupervisorError signals the process supervisor could not bring the child
// daemon to a usable state: unresponsive after the retry budget, a stale PID
// that could not be cleared, or a graceful-stop timeout.
type SupervisorError struct {
	Reason string
}

func (e *SupervisorError) Error() string {
	return fmt.Sprintf("supervisor error: %s", e.Reason)
}

// ShuttingDownError is returned by any operation initiated after the
// process-wide stopping flag has been set.
type ShuttingDownError struct{}

func (e *ShuttingDownError) Error() string {
	return "qtumd-node: operation rejected, shutting down"
}
