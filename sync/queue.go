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

	"github.com/cyjseagull/bcos-sync/core/types"
	"github.com/cyjseagull/bcos-sync/log"
)

// DownloadingQueue holds decoded blocks awaiting execution. It owns an
// ingress buffer of undecoded batches (xBuffer) and a min-heap of decoded
// blocks (xQueue), keyed on header number. Lock order is xBuffer before
// xQueue, per SPEC_FULL.md's concurrency model - every method that needs
// both acquires them in that order.
type DownloadingQueue struct {
	cfg ConfigView
	log log.Logger

	buffer *ingressBuffer

	xQueue sync.RWMutex
	queue  blockHeap
}

// NewDownloadingQueue builds a DownloadingQueue bounded by
// cfg.MaxDownloadingBlockQueueSize().
func NewDownloadingQueue(cfg ConfigView, logger log.Logger) *DownloadingQueue {
	if logger == nil {
		logger = log.Root
	}
	return &DownloadingQueue{
		cfg:    cfg,
		log:    logger,
		buffer: newIngressBuffer(cfg.MaxDownloadingBlockQueueSize(), logger),
	}
}

// Push forwards batch to the ingress buffer. Never blocks the caller.
func (q *DownloadingQueue) Push(batch types.BlocksBatch) {
	q.buffer.push(batch)
}

// Empty reports whether both the buffer and the decoded heap are empty.
// This is a snapshot and may race with concurrent pushes/flushes.
func (q *DownloadingQueue) Empty() bool {
	if !q.buffer.empty() {
		return false
	}
	q.xQueue.RLock()
	defer q.xQueue.RUnlock()
	return len(q.queue) == 0
}

// Size is the sum of the buffer length and the decoded heap length.
func (q *DownloadingQueue) Size() int {
	n := q.buffer.size()
	q.xQueue.RLock()
	defer q.xQueue.RUnlock()
	return n + len(q.queue)
}

// Top returns the minimum-height block in the heap, flushing the buffer
// into the heap first if flush is true. Returns (nil, false) if the heap
// ends up empty.
func (q *DownloadingQueue) Top(flush bool) (types.Block, bool) {
	if flush {
		q.flushBufferToQueue()
	}
	q.xQueue.RLock()
	defer q.xQueue.RUnlock()
	if len(q.queue) == 0 {
		return nil, false
	}
	return q.queue[0], true
}

// Pop removes the minimum-height block from the heap. No-op if empty.
func (q *DownloadingQueue) Pop() {
	q.xQueue.Lock()
	defer q.xQueue.Unlock()
	if len(q.queue) == 0 {
		return
	}
	heap.Pop(&q.queue)
}

// Clear drops all buffered batches and all heap entries.
func (q *DownloadingQueue) Clear() {
	q.buffer.clear()
	q.clearQueue()
}

func (q *DownloadingQueue) clearQueue() {
	q.xQueue.Lock()
	defer q.xQueue.Unlock()
	q.queue = nil
}

// ClearFullQueueIfNotHas drops the entire decoded heap if it is at
// capacity and holds nothing useful for reaching block n: i.e. the heap
// is full of blocks beyond n. Holding only far-future blocks while full
// wastes the queue's capacity on work that cannot be used yet.
func (q *DownloadingQueue) ClearFullQueueIfNotHas(n uint64) {
	needClear := func() bool {
		q.xQueue.RLock()
		defer q.xQueue.RUnlock()
		return len(q.queue) == q.cfg.MaxDownloadingBlockQueueSize() &&
			len(q.queue) > 0 && q.queue[0].Header().Number() > n
	}()
	if needClear {
		q.clearQueue()
	}
}

// ClearExpired removes every heap entry with number <= the committed
// height.
func (q *DownloadingQueue) ClearExpired() {
	q.xQueue.Lock()
	defer q.xQueue.Unlock()
	h := q.cfg.BlockNumber()
	for len(q.queue) > 0 && q.queue[0].Header().Number() <= h {
		heap.Pop(&q.queue)
	}
}

// flushBufferToQueue repeatedly drains the oldest batch from the buffer,
// decodes its blocks, and admits the newer ones into the heap. Before
// taking the next batch it checks whether the heap is already at
// capacity; if so it stops, leaving that batch and everything behind it
// untouched in the buffer for a later flush.
func (q *DownloadingQueue) flushBufferToQueue() {
	for {
		if q.queueFull() {
			return
		}
		batch, ok := q.buffer.drainOne()
		if !ok {
			return
		}
		q.flushOneShard(batch)
	}
}

func (q *DownloadingQueue) queueFull() bool {
	q.xQueue.RLock()
	defer q.xQueue.RUnlock()
	return len(q.queue) >= q.cfg.MaxDownloadingBlockQueueSize()
}

// flushOneShard decodes every block in batch and admits the newer ones
// into the heap.
func (q *DownloadingQueue) flushOneShard(batch types.BlocksBatch) {
	q.xQueue.Lock()
	defer q.xQueue.Unlock()

	factory := q.cfg.BlockFactory()
	for i := 0; i < batch.Len(); i++ {
		block, err := factory.CreateBlock(batch.BlockData(i), true, true)
		if err != nil {
			q.log.Warn("invalid block data, skipping", "reason", err, "size", len(batch.BlockData(i)))
			continue
		}
		if !q.isNewerBlock(block) {
			continue
		}
		heap.Push(&q.queue, block)
		q.log.Debug("flushed block to downloading queue",
			"number", block.Header().Number(), "node", q.cfg.NodeID())
	}
	if len(q.queue) > 0 {
		q.log.Debug("flush buffer to block queue",
			"received", batch.Len(), "top", q.queue[0].Header().Number(),
			"queueSize", len(q.queue), "node", q.cfg.NodeID())
	}
}

func (q *DownloadingQueue) isNewerBlock(b types.Block) bool {
	return b.Header().Number() > q.cfg.BlockNumber()
}
