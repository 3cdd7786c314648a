// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package memchain

import (
	"sync"

	"github.com/cyjseagull/bcos-sync/common"
	"github.com/cyjseagull/bcos-sync/core/types"
	blocksync "github.com/cyjseagull/bcos-sync/sync"
)

// TxPool records the block results it is notified of.
type TxPool struct {
	mu            sync.Mutex
	notifications []uint64
}

// NewTxPool builds an empty TxPool.
func NewTxPool() *TxPool { return &TxPool{} }

// Notifications returns the block numbers AsyncNotifyBlockResult has been
// called with, in order.
func (t *TxPool) Notifications() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint64, len(t.notifications))
	copy(out, t.notifications)
	return out
}

// AsyncNotifyBlockResult implements sync.TxPool.
func (t *TxPool) AsyncNotifyBlockResult(blockNumber uint64, results []blocksync.TxSubmitResult, cb func(error)) {
	t.mu.Lock()
	t.notifications = append(t.notifications, blockNumber)
	t.mu.Unlock()
	cb(nil)
}

// TxSubmitResult is the per-transaction outcome reported to the TxPool.
type TxSubmitResult struct {
	Header types.Header
	TxHash common.Hash
	Nonce  uint64
}

// SetNonce implements sync.TxSubmitResult.
func (r *TxSubmitResult) SetNonce(nonce uint64) { r.Nonce = nonce }

// TxResultFactory builds TxSubmitResult values.
type TxResultFactory struct{}

// CreateTxSubmitResult implements sync.TxResultFactory.
func (TxResultFactory) CreateTxSubmitResult(header types.Header, txHash common.Hash) blocksync.TxSubmitResult {
	return &TxSubmitResult{Header: header, TxHash: txHash}
}

// LedgerConfig is the configuration snapshot handed to the new-block
// handler after a successful commit.
type LedgerConfig struct {
	number uint64
	sealer string
}

// SetSealerID implements sync.LedgerConfig.
func (c *LedgerConfig) SetSealerID(sealer string) { c.sealer = sealer }

// BlockNumber implements sync.LedgerConfig.
func (c *LedgerConfig) BlockNumber() uint64 { return c.number }

// SealerID returns the sealer most recently set by SetSealerID.
func (c *LedgerConfig) SealerID() string { return c.sealer }

// Config is a full sync.ConfigView backed by in-memory collaborators. Its
// committed height delegates to Ledger, matching the real node where the
// config view reads the ledger's height rather than keeping its own copy.
type Config struct {
	mu       sync.RWMutex
	executed uint64
	maxQueue int
	nodeID   string

	codec           *Codec
	dispatcher      *Dispatcher
	consensus       *Consensus
	ledger          *Ledger
	txpool          *TxPool
	txResultFactory TxResultFactory
}

// NewConfig builds a Config with fresh collaborators and the given
// downloading-queue capacity.
func NewConfig(nodeID string, maxQueue int) *Config {
	return &Config{
		maxQueue:   maxQueue,
		nodeID:     nodeID,
		codec:      NewCodec(),
		dispatcher: NewDispatcher(),
		consensus:  NewConsensus(),
		ledger:     NewLedger(),
		txpool:     NewTxPool(),
	}
}

// BlockNumber implements sync.ConfigView.
func (c *Config) BlockNumber() uint64 { return c.ledger.CommittedHeight() }

// NextBlock implements sync.ConfigView.
func (c *Config) NextBlock() uint64 { return c.BlockNumber() + 1 }

// SetExecutedBlock implements sync.ConfigView.
func (c *Config) SetExecutedBlock(number uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executed = number
}

// ExecutedBlock returns the cursor most recently set by SetExecutedBlock,
// for tests to assert against.
func (c *Config) ExecutedBlock() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.executed
}

// MaxDownloadingBlockQueueSize implements sync.ConfigView.
func (c *Config) MaxDownloadingBlockQueueSize() int { return c.maxQueue }

// NodeID implements sync.ConfigView.
func (c *Config) NodeID() string { return c.nodeID }

// BlockFactory implements sync.ConfigView.
func (c *Config) BlockFactory() blocksync.BlockFactory { return c.codec }

// Dispatcher implements sync.ConfigView.
func (c *Config) Dispatcher() blocksync.Dispatcher { return c.dispatcher }

// Consensus implements sync.ConfigView.
func (c *Config) Consensus() blocksync.Consensus { return c.consensus }

// Ledger implements sync.ConfigView.
func (c *Config) Ledger() blocksync.Ledger { return c.ledger }

// TxPool implements sync.ConfigView.
func (c *Config) TxPool() blocksync.TxPool { return c.txpool }

// TxResultFactory implements sync.ConfigView.
func (c *Config) TxResultFactory() blocksync.TxResultFactory { return c.txResultFactory }

// Codec exposes the in-memory codec for test fixtures to register blocks
// against.
func (c *Config) Codec() *Codec { return c.codec }

// DispatcherMock exposes the in-memory dispatcher for failure injection.
func (c *Config) DispatcherMock() *Dispatcher { return c.dispatcher }

// ConsensusMock exposes the in-memory consensus checker for failure
// injection.
func (c *Config) ConsensusMock() *Consensus { return c.consensus }

// LedgerMock exposes the in-memory ledger for assertions and failure
// injection.
func (c *Config) LedgerMock() *Ledger { return c.ledger }

// TxPoolMock exposes the in-memory tx pool for assertions.
func (c *Config) TxPoolMock() *TxPool { return c.txpool }
