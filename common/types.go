// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

// Package common holds small value types shared across the sync core and
// its collaborators: block/transaction hashes and short, log-friendly
// renderings of them.
package common

import "encoding/hex"

// HashLength is the number of bytes in a Hash.
const HashLength = 32

// Hash is a 32-byte chain object identifier (block hash, tx hash, state
// root, ...). It is a value type so it can be used as a map key and
// compared with ==.
type Hash [HashLength]byte

// BytesToHash right-aligns b into a Hash, truncating or zero-padding on
// the left as needed.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Bytes returns a copy of the hash bytes.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the 0x-prefixed hex encoding of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// Abridged returns a short log-friendly rendering: the first 4 and last
// 4 bytes, matching the "shortHex" abridged form the C++ source logs
// peer ids and block hashes with.
func (h Hash) Abridged() string {
	s := h.Hex()
	if len(s) <= 18 {
		return s
	}
	return s[:10] + "…" + s[len(s)-8:]
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }
