// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync_test

import (
	"fmt"
	"io"

	"github.com/cyjseagull/bcos-sync/common"
	"github.com/cyjseagull/bcos-sync/core/types"
	"github.com/cyjseagull/bcos-sync/internal/memchain"
	"github.com/cyjseagull/bcos-sync/log"
)

// quietLogger is a Logger that discards everything, so tests don't spam
// stderr but still exercise the real logging call sites.
func quietLogger() log.Logger { return log.New(io.Discard) }

func newHeader(number uint64, sealer string) *types.SimpleHeader {
	return &types.SimpleHeader{
		Num:       number,
		HashVal:   common.BytesToHash([]byte(fmt.Sprintf("hash-%d", number))),
		ParentVal: common.BytesToHash([]byte(fmt.Sprintf("hash-%d", number-1))),
		SealerVal: sealer,
	}
}

func newBlock(number uint64, txs int) *types.SimpleBlock {
	block := &types.SimpleBlock{HeaderVal: newHeader(number, "node1")}
	for i := 0; i < txs; i++ {
		block.Txs = append(block.Txs, &types.SimpleTransaction{
			NonceVal: uint64(i),
			Payload:  []byte(fmt.Sprintf("tx-%d-%d", number, i)),
		})
	}
	return block
}

// wireData is the fake wire encoding used only to key the in-memory
// codec's lookup table; its content is never interpreted.
func wireData(number uint64) []byte {
	return []byte(fmt.Sprintf("wire-%d", number))
}

// registerBatch registers each block's wire data with cfg's codec and
// returns a batch referencing them in the given order.
func registerBatch(cfg *memchain.Config, blocks ...*types.SimpleBlock) types.BlocksBatch {
	batch := &types.SimpleBatch{}
	for _, b := range blocks {
		data := wireData(b.Header().Number())
		cfg.Codec().Register(data, b)
		batch.Blocks = append(batch.Blocks, data)
	}
	return batch
}
