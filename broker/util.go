// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broker

import "encoding/hex"

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
