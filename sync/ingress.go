// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/cyjseagull/bcos-sync/core/types"
	"github.com/cyjseagull/bcos-sync/log"
)

// ingressBuffer is a bounded FIFO of undecoded BlocksBatch, exactly as
// received from the network layer. It never blocks the caller: pushes
// past capacity are dropped with a warning, trusting that a peer known
// (via the peer status table) to have the block will be re-asked later.
type ingressBuffer struct {
	mu  sync.RWMutex
	buf deque.Deque[types.BlocksBatch]
	max int
	log log.Logger
}

func newIngressBuffer(max int, logger log.Logger) *ingressBuffer {
	return &ingressBuffer{max: max, log: logger}
}

// push appends batch to the buffer, or drops it silently (besides a
// warning log) if the buffer is already at capacity.
func (b *ingressBuffer) push(batch types.BlocksBatch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() >= b.max {
		b.log.Warn("ingress buffer full, dropping batch", "size", b.buf.Len(), "max", b.max)
		return
	}
	b.buf.PushBack(batch)
}

// drainOne removes and returns the oldest batch, or false if empty.
func (b *ingressBuffer) drainOne() (types.BlocksBatch, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return nil, false
	}
	return b.buf.PopFront(), true
}

func (b *ingressBuffer) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buf.Len()
}

func (b *ingressBuffer) empty() bool {
	return b.size() == 0
}

func (b *ingressBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Clear()
}
