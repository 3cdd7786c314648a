// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

// Package types defines the opaque chain contracts the sync core operates
// on: Block, Header, Transaction, and BlocksBatch. The core never
// constructs these itself beyond calling the BlockFactory collaborator;
// concrete implementations are provided by the codec layer, which is out
// of this module's scope (see SPEC_FULL.md's EXTERNAL INTERFACES).
package types

import "github.com/cyjseagull/bcos-sync/common"

// Header is a block header. Of its fields, the sync core itself reads
// only the number, the hash, and the sealer.
type Header interface {
	Number() uint64
	Hash() common.Hash
	ParentHash() common.Hash
	TxsRoot() common.Hash
	ReceiptsRoot() common.Hash
	StateRoot() common.Hash
	Sealer() string
}

// Transaction is a single transaction within a block.
type Transaction interface {
	Hash() common.Hash
	Nonce() uint64
	// Encode returns the raw wire encoding of the transaction.
	Encode() []byte
}

// Block is a decoded block: a header plus an indexable transaction list.
type Block interface {
	Header() Header
	TransactionsLen() int
	TransactionAt(i int) Transaction
}

// BlocksBatch is the network-layer envelope for one or more undecoded
// block byte-slices, the unit of delivery from the transport layer.
type BlocksBatch interface {
	Len() int
	BlockData(i int) []byte
}
