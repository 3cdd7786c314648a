// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync_test

import (
	"testing"

	"github.com/cyjseagull/bcos-sync/internal/memchain"
	blocksync "github.com/cyjseagull/bcos-sync/sync"
)

func TestDownloadingQueueOrdersOutOfOrderArrival(t *testing.T) {
	cfg := memchain.NewConfig("node1", 16)
	q := blocksync.NewDownloadingQueue(cfg, quietLogger())

	batch := registerBatch(cfg, newBlock(3, 0), newBlock(1, 0), newBlock(2, 0))
	q.Push(batch)

	top, ok := q.Top(true)
	if !ok {
		t.Fatalf("expected a top block after flush")
	}
	if top.Header().Number() != 1 {
		t.Fatalf("expected block 1 to sort to the top, got %d", top.Header().Number())
	}
	q.Pop()

	top, ok = q.Top(false)
	if !ok || top.Header().Number() != 2 {
		t.Fatalf("expected block 2 next, got %v ok=%v", top, ok)
	}
}

func TestDownloadingQueueDropsStaleBlocksOnFlush(t *testing.T) {
	cfg := memchain.NewConfig("node1", 16)

	// Commit block 1 directly through the ledger mock to advance H to 1.
	committed := false
	cfg.LedgerMock().AsyncCommitBlock(newHeader(1, "node1"), func(err error, _ blocksync.LedgerConfig) {
		committed = err == nil
	})
	if !committed {
		t.Fatalf("setup: expected ledger commit to succeed")
	}

	q := blocksync.NewDownloadingQueue(cfg, quietLogger())
	batch := registerBatch(cfg, newBlock(1, 0), newBlock(2, 0))
	q.Push(batch)

	top, ok := q.Top(true) // forces the flush that applies the stale filter
	if !ok || top.Header().Number() != 2 {
		t.Fatalf("expected block 2, got %v ok=%v", top, ok)
	}
	if q.Size() != 1 {
		t.Fatalf("expected only block 2 to survive the stale filter, queue size = %d", q.Size())
	}
}

func TestDownloadingQueueLeavesOverflowInBuffer(t *testing.T) {
	// Capacity 1 bounds both the ingress buffer and the decoded heap
	// (mirroring the original source, where both are gated by the same
	// maxDownloadingBlockQueueSize), so block 2's batch is pushed only
	// once block 1's has already been flushed out of the buffer.
	cfg := memchain.NewConfig("node1", 1)
	q := blocksync.NewDownloadingQueue(cfg, quietLogger())

	q.Push(registerBatch(cfg, newBlock(1, 0)))
	top, ok := q.Top(true) // flushes block 1 into the heap, freeing the buffer
	if !ok || top.Header().Number() != 1 {
		t.Fatalf("expected block 1 at the top, got %v ok=%v", top, ok)
	}

	q.Push(registerBatch(cfg, newBlock(2, 0)))
	top, ok = q.Top(true) // the heap is already full, so this flush is a no-op
	if !ok || top.Header().Number() != 1 {
		t.Fatalf("expected block 1 still at the top, got %v ok=%v", top, ok)
	}
	if q.Size() != 2 {
		t.Fatalf("expected block 2's batch to remain buffered, total size = %d", q.Size())
	}

	q.Pop()
	top, ok = q.Top(true)
	if !ok || top.Header().Number() != 2 {
		t.Fatalf("expected block 2 to flush once room freed up, got %v ok=%v", top, ok)
	}
}

func TestDownloadingQueueClearExpired(t *testing.T) {
	cfg := memchain.NewConfig("node1", 16)
	q := blocksync.NewDownloadingQueue(cfg, quietLogger())
	q.Push(registerBatch(cfg, newBlock(1, 0), newBlock(2, 0), newBlock(3, 0)))
	q.Top(true) // force flush

	cfg.LedgerMock().AsyncCommitBlock(newHeader(2, "node1"), func(error, blocksync.LedgerConfig) {})

	q.ClearExpired()
	top, ok := q.Top(false)
	if !ok || top.Header().Number() != 3 {
		t.Fatalf("expected only block 3 to remain after ClearExpired, got %v ok=%v", top, ok)
	}
}
