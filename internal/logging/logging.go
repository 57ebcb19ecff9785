// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging is a thin compatibility layer over luxfi/log so the rest
// of the core never imports the upstream logger directly.
package logging

import (
	luxlog "github.com/luxfi/log"
)

type Logger = luxlog.Logger

// Root returns the process-wide root logger.
func Root() Logger { return luxlog.Root() }

// New returns a child logger tagged with the given component name.
func New(component string) Logger {
	return luxlog.Root().With("component", component)
}
