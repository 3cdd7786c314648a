// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"container/heap"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cyjseagull/bcos-sync/core/types"
	"github.com/cyjseagull/bcos-sync/log"
)

// recentHeightCacheSize bounds the duplicate-commit-attempt diagnostic
// cache kept alongside the commit queue. It is purely a logging aid -
// correctness comes from the number<=H prune in TryCommit, unchanged
// from the original design.
const recentHeightCacheSize = 256

// CommitQueue holds blocks that have passed execute+verify and are
// waiting for their turn to commit: the heap's top only ever advances
// once the previous height has committed, gating strict in-order commit.
type CommitQueue struct {
	cfg ConfigView
	log log.Logger

	xCommit sync.Mutex
	queue   blockHeap

	seen *lru.Cache // recently-seen heights, diagnostics only

	// onReady drives the rest of the commit sequence (consensus-check ->
	// store-txs -> commit-state) for the block whose turn has come.
	onReady func(block types.Block)
}

// NewCommitQueue builds a CommitQueue. onReady is invoked, still under no
// lock, whenever a block reaches the front of the queue in its turn.
func NewCommitQueue(cfg ConfigView, logger log.Logger, onReady func(types.Block)) *CommitQueue {
	if logger == nil {
		logger = log.Root
	}
	cache, _ := lru.New(recentHeightCacheSize)
	return &CommitQueue{cfg: cfg, log: logger, onReady: onReady, seen: cache}
}

// Push inserts an already executed-and-verified block, then attempts to
// drive the commit sequence forward.
func (c *CommitQueue) Push(block types.Block) {
	num := block.Header().Number()
	if c.seen != nil {
		if _, dup := c.seen.Get(num); dup {
			c.log.Debug("commit queue: duplicate height pushed", "number", num)
		}
		c.seen.Add(num, struct{}{})
	}

	c.xCommit.Lock()
	heap.Push(&c.queue, block)
	c.xCommit.Unlock()

	c.TryCommit()
}

// TryCommit prunes stale entries, then - if the top of the queue equals
// nextBlock - pops it and hands it to onReady to drive the rest of the
// commit sequence. At most one call makes forward progress at a time:
// serialized by xCommit.
func (c *CommitQueue) TryCommit() {
	c.xCommit.Lock()

	h := c.cfg.BlockNumber()
	for len(c.queue) > 0 && c.queue[0].Header().Number() <= h {
		heap.Pop(&c.queue)
	}

	var ready types.Block
	if len(c.queue) > 0 && c.queue[0].Header().Number() == c.cfg.NextBlock() {
		ready = heap.Pop(&c.queue).(types.Block)
	}
	c.xCommit.Unlock()

	if ready != nil && c.onReady != nil {
		c.onReady(ready)
	}
}

// ClearExpired prunes every queue entry with number <= the committed
// height, without attempting to drive a commit.
func (c *CommitQueue) ClearExpired() {
	c.xCommit.Lock()
	defer c.xCommit.Unlock()
	h := c.cfg.BlockNumber()
	for len(c.queue) > 0 && c.queue[0].Header().Number() <= h {
		heap.Pop(&c.queue)
	}
}

// Size returns the number of blocks currently queued for commit.
func (c *CommitQueue) Size() int {
	c.xCommit.Lock()
	defer c.xCommit.Unlock()
	return len(c.queue)
}
