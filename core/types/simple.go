// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package types

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/cyjseagull/bcos-sync/common"
)

// SimpleHeader is a reference Header implementation used by tests and the
// demo binary. Production nodes supply their own codec-backed Header.
type SimpleHeader struct {
	Num          uint64
	HashVal      common.Hash
	ParentVal    common.Hash
	TxsRootVal   common.Hash
	RecRootVal   common.Hash
	StateRootVal common.Hash
	SealerVal    string
}

func (h *SimpleHeader) Number() uint64            { return h.Num }
func (h *SimpleHeader) Hash() common.Hash         { return h.HashVal }
func (h *SimpleHeader) ParentHash() common.Hash   { return h.ParentVal }
func (h *SimpleHeader) TxsRoot() common.Hash      { return h.TxsRootVal }
func (h *SimpleHeader) ReceiptsRoot() common.Hash { return h.RecRootVal }
func (h *SimpleHeader) StateRoot() common.Hash    { return h.StateRootVal }
func (h *SimpleHeader) Sealer() string            { return h.SealerVal }

// SimpleTransaction is a reference Transaction implementation.
type SimpleTransaction struct {
	NonceVal uint64
	Payload  []byte
}

func (t *SimpleTransaction) Nonce() uint64 { return t.NonceVal }

func (t *SimpleTransaction) Encode() []byte {
	buf := make([]byte, 8+len(t.Payload))
	binary.BigEndian.PutUint64(buf, t.NonceVal)
	copy(buf[8:], t.Payload)
	return buf
}

func (t *SimpleTransaction) Hash() common.Hash {
	sum := sha256.Sum256(t.Encode())
	return common.Hash(sum)
}

// SimpleBlock is a reference Block implementation: a header plus a slice
// of transactions.
type SimpleBlock struct {
	HeaderVal *SimpleHeader
	Txs       []*SimpleTransaction
}

func (b *SimpleBlock) Header() Header          { return b.HeaderVal }
func (b *SimpleBlock) TransactionsLen() int     { return len(b.Txs) }
func (b *SimpleBlock) TransactionAt(i int) Transaction {
	return b.Txs[i]
}

// SimpleBatch is a reference BlocksBatch implementation wrapping raw,
// already-serialized block byte-slices.
type SimpleBatch struct {
	Blocks [][]byte
}

func (b *SimpleBatch) Len() int                { return len(b.Blocks) }
func (b *SimpleBatch) BlockData(i int) []byte  { return b.Blocks[i] }
