// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

// Package sync implements the block download and apply pipeline: the
// ingress buffer, the ordered downloading queue, the apply pipeline
// (execute/verify/consensus-check/store/commit), the commit queue, and
// the peer status table. Everything outside these responsibilities -
// transport, codec, consensus, execution, ledger storage, the tx pool -
// is an external collaborator reached through the narrow interfaces
// declared in this file.
package sync

import (
	"github.com/cyjseagull/bcos-sync/common"
	"github.com/cyjseagull/bcos-sync/core/types"
)

// ConfigView is the read-mostly configuration and collaborator-locator
// the core consults. BlockNumber is the committed ledger height H;
// NextBlock is always BlockNumber()+1.
type ConfigView interface {
	BlockNumber() uint64
	NextBlock() uint64
	SetExecutedBlock(number uint64)
	MaxDownloadingBlockQueueSize() int
	NodeID() string

	BlockFactory() BlockFactory
	Dispatcher() Dispatcher
	Consensus() Consensus
	Ledger() Ledger
	TxPool() TxPool
	TxResultFactory() TxResultFactory
}

// BlockFactory decodes raw block bytes received from the network into a
// types.Block, optionally checking the seal signature and the header
// hash against the re-derived hash.
type BlockFactory interface {
	CreateBlock(data []byte, checkSig, checkHash bool) (types.Block, error)
}

// Dispatcher executes a block asynchronously. cb is invoked exactly once,
// on success or failure, from any goroutine.
type Dispatcher interface {
	AsyncExecuteBlock(block types.Block, verify bool, cb func(err error, executed types.Header))
}

// Consensus performs the (expensive) post-execution consensus check:
// signatures, sealer set membership, and the like.
type Consensus interface {
	AsyncCheckBlock(block types.Block, cb func(err error, ok bool))
}

// Ledger is the durable store this pipeline commits into.
type Ledger interface {
	AsyncStoreTransactions(txData [][]byte, txHashes []common.Hash, cb func(err error))
	AsyncCommitBlock(header types.Header, cb func(err error, cfg LedgerConfig))
}

// LedgerConfig is the configuration snapshot returned by a successful
// commit; the new-block handler uses it to reconfigure consensus and
// announce the new height to peers.
type LedgerConfig interface {
	SetSealerID(sealer string)
	BlockNumber() uint64
}

// TxPool is notified of the outcome of every transaction in a committed
// block.
type TxPool interface {
	AsyncNotifyBlockResult(blockNumber uint64, results []TxSubmitResult, cb func(err error))
}

// TxResultFactory builds the per-transaction submit result delivered to
// the tx pool after commit.
type TxResultFactory interface {
	CreateTxSubmitResult(header types.Header, txHash common.Hash) TxSubmitResult
}

// TxSubmitResult is a single transaction's outcome, reported to the tx
// pool after its block commits.
type TxSubmitResult interface {
	SetNonce(nonce uint64)
}

// NewBlockHandler is invoked once per successful commit. Expected side
// effects: reconfigure the consensus view, broadcast
// the new height to peers, and clear expired caches. None of those
// effects are implemented by this core - they belong to the handler the
// surrounding node registers.
type NewBlockHandler func(cfg LedgerConfig)
