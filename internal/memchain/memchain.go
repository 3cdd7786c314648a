// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

// Package memchain provides deterministic, in-memory stand-ins for the
// collaborators the sync core treats as external: the block codec, the
// executor dispatcher, the consensus checker, the ledger, and the tx
// pool. None of this is production infrastructure - it exists so the
// sync core's state machine can be exercised end-to-end by tests and the
// demo CLI without a real node behind it.
package memchain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cyjseagull/bcos-sync/common"
	"github.com/cyjseagull/bcos-sync/core/types"
	blocksync "github.com/cyjseagull/bcos-sync/sync"
)

// Codec decodes raw block bytes into a types.Block by table lookup: tests
// register the mapping from "wire bytes" to a decoded block, since the
// real wire format is the codec's concern, not this core's.
type Codec struct {
	mu   sync.Mutex
	byID map[string]types.Block
}

// NewCodec builds an empty Codec.
func NewCodec() *Codec { return &Codec{byID: make(map[string]types.Block)} }

// Register associates raw wire bytes with the block they decode to.
func (c *Codec) Register(data []byte, block types.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[string(data)] = block
}

// CreateBlock implements sync.BlockFactory.
func (c *Codec) CreateBlock(data []byte, checkSig, checkHash bool) (types.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.byID[string(data)]
	if !ok {
		return nil, fmt.Errorf("memchain: no block registered for %d bytes of wire data", len(data))
	}
	return b, nil
}

// Dispatcher executes blocks by default echoing their own header back
// (a deterministic "successful" execution), and can be configured per
// block number to fail N times, or to return a mismatched header.
type Dispatcher struct {
	mu           sync.Mutex
	failuresLeft map[uint64]int
	mismatch     map[uint64]bool
	calls        map[uint64]int
}

// NewDispatcher builds a Dispatcher that succeeds for every block unless
// configured otherwise via FailNext / Mismatch.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{failuresLeft: make(map[uint64]int), mismatch: make(map[uint64]bool), calls: make(map[uint64]int)}
}

// FailNext makes the next n AsyncExecuteBlock calls for number fail.
func (d *Dispatcher) FailNext(number uint64, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failuresLeft[number] = n
}

// Mismatch makes AsyncExecuteBlock for number succeed but return a
// header whose hash does not match the block's own header.
func (d *Dispatcher) Mismatch(number uint64, mismatch bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mismatch[number] = mismatch
}

// Calls reports how many times AsyncExecuteBlock has been invoked for
// number.
func (d *Dispatcher) Calls(number uint64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[number]
}

// AsyncExecuteBlock implements sync.Dispatcher.
func (d *Dispatcher) AsyncExecuteBlock(block types.Block, verify bool, cb func(error, types.Header)) {
	number := block.Header().Number()

	d.mu.Lock()
	d.calls[number]++
	if d.failuresLeft[number] > 0 {
		d.failuresLeft[number]--
		d.mu.Unlock()
		cb(errors.New("memchain: simulated execute failure"), nil)
		return
	}
	mismatch := d.mismatch[number]
	d.mu.Unlock()

	if mismatch {
		cb(nil, &types.SimpleHeader{Num: number, HashVal: common.BytesToHash([]byte("mismatched-header"))})
		return
	}
	cb(nil, block.Header())
}

// Consensus approves every block by default, and can be configured per
// block number to reject or error.
type Consensus struct {
	mu     sync.Mutex
	reject map[uint64]bool
	errFor map[uint64]error
}

// NewConsensus builds a Consensus that approves every block unless
// configured otherwise.
func NewConsensus() *Consensus {
	return &Consensus{reject: make(map[uint64]bool), errFor: make(map[uint64]error)}
}

// Reject makes AsyncCheckBlock return ok=false for number.
func (c *Consensus) Reject(number uint64, reject bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reject[number] = reject
}

// FailWith makes AsyncCheckBlock return err for number.
func (c *Consensus) FailWith(number uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errFor[number] = err
}

// AsyncCheckBlock implements sync.Consensus.
func (c *Consensus) AsyncCheckBlock(block types.Block, cb func(error, bool)) {
	number := block.Header().Number()
	c.mu.Lock()
	err := c.errFor[number]
	reject := c.reject[number]
	c.mu.Unlock()

	if err != nil {
		cb(err, false)
		return
	}
	cb(nil, !reject)
}

// Ledger is the committed-height source of truth: Config.BlockNumber
// delegates to it, matching the real architecture where the config view
// reads the ledger's current height rather than tracking its own copy.
type Ledger struct {
	mu        sync.Mutex
	height    uint64
	sealers   []string
	committed []uint64
	stored    [][][]byte

	nextStoreErr error
	commitErr    map[uint64]error
}

// NewLedger builds a Ledger starting at committed height 0.
func NewLedger() *Ledger {
	return &Ledger{commitErr: make(map[uint64]error)}
}

// FailNextStore makes the next AsyncStoreTransactions call fail with err,
// regardless of which block it is storing for. sync.Ledger's
// AsyncStoreTransactions carries no block number, so per-number injection
// isn't possible here - tests that need it call this immediately before
// the commit they want to fail.
func (l *Ledger) FailNextStore(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextStoreErr = err
}

// FailCommit makes AsyncCommitBlock fail once for number.
func (l *Ledger) FailCommit(number uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commitErr[number] = err
}

// CommittedHeight returns the ledger's current committed height H.
func (l *Ledger) CommittedHeight() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// Committed returns the sequence of block numbers observed by
// AsyncCommitBlock, in the order they were committed.
func (l *Ledger) Committed() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint64, len(l.committed))
	copy(out, l.committed)
	return out
}

// LastSealer returns the sealer of the most recently committed block, or
// the empty string if nothing has committed yet.
func (l *Ledger) LastSealer() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sealers) == 0 {
		return ""
	}
	return l.sealers[len(l.sealers)-1]
}

// StoredTxCount returns the number of AsyncStoreTransactions calls that
// completed without error.
func (l *Ledger) StoredTxCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.stored)
}

// AsyncStoreTransactions implements sync.Ledger.
func (l *Ledger) AsyncStoreTransactions(txData [][]byte, txHashes []common.Hash, cb func(error)) {
	l.mu.Lock()
	err := l.nextStoreErr
	l.nextStoreErr = nil
	if err == nil {
		l.stored = append(l.stored, txData)
	}
	l.mu.Unlock()
	cb(err)
}

// AsyncCommitBlock implements sync.Ledger.
func (l *Ledger) AsyncCommitBlock(header types.Header, cb func(error, blocksync.LedgerConfig)) {
	number := header.Number()
	l.mu.Lock()
	err := l.commitErr[number]
	delete(l.commitErr, number)
	l.mu.Unlock()

	if err != nil {
		cb(err, nil)
		return
	}

	l.mu.Lock()
	l.height = number
	l.committed = append(l.committed, number)
	l.sealers = append(l.sealers, header.Sealer())
	l.mu.Unlock()

	cb(nil, &LedgerConfig{number: number})
}
