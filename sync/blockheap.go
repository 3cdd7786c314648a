// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync

import "github.com/cyjseagull/bcos-sync/core/types"

// blockHeap is a container/heap.Interface min-heap of blocks ordered by
// header number, ascending. Ties (same number, different hash - a fork)
// are tolerated: both sit in the heap and whichever pops first wins. A
// later duplicate reached after the first has committed is dropped as
// stale (number <= committed height) by the pruning in
// DownloadingQueue.ClearExpired and CommitQueue.TryCommit.
type blockHeap []types.Block

func (h blockHeap) Len() int { return len(h) }
func (h blockHeap) Less(i, j int) bool {
	return h[i].Header().Number() < h[j].Header().Number()
}
func (h blockHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *blockHeap) Push(x any) {
	*h = append(*h, x.(types.Block))
}

func (h *blockHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
