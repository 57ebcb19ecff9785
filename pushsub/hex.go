// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pushsub

import "encoding/hex"

// toHex is a plain big-endian hex encode, used for raw transaction bytes.
func toHex(b []byte) string {
	return hex.EncodeToString(b)
}

// reverseHex hex-encodes b in the reversed byte order used to display block
// and transaction hashes (internal byte order is little-endian).
func reverseHex(b []byte) string {
	rev := make([]byte, len(b))
	for i, v := range b {
		rev[len(b)-1-i] = v
	}
	return hex.EncodeToString(rev)
}
