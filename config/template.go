// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "fmt"

// defaultTemplate is the built-in default daemon config (spec.md §6),
// written the first time the core finds no config file at the
// network-specific location.
func defaultTemplate(rpcUser, rpcPassword string) string {
	return fmt.Sprintf(`server=1
whitelist=127.0.0.1
txindex=1
addressindex=1
timestampindex=1
spentindex=1
zmqpubrawtx=tcp://127.0.0.1:28332
zmqpubhashblock=tcp://127.0.0.1:28332
rpcallowip=127.0.0.1
rpcuser=%s
rpcpassword=%s
uacomment=bitcore
`, rpcUser, rpcPassword)
}
