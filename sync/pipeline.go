// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cyjseagull/bcos-sync/common"
	"github.com/cyjseagull/bcos-sync/core/types"
	"github.com/cyjseagull/bcos-sync/log"
)

// maxExecuteAttempts is the number of times a block's execute step is
// attempted before the pipeline gives up and rewinds to H: one initial
// attempt plus one retry (spec.md's "at most retry one time").
const maxExecuteAttempts = 2

// pipeline drives a single block through
// execute -> verify -> consensus-check -> store-transactions -> commit,
// retrying the execute step once and rewinding on every other failure.
// It is callback-driven: each collaborator call completes asynchronously
// on a goroutine the pipeline does not control.
type pipeline struct {
	cfg     ConfigView
	log     log.Logger
	commit  *CommitQueue
	handler NewBlockHandler
	metrics *Metrics

	// stopped makes callbacks arriving after Stop a no-op, the Go
	// equivalent of the weak-pointer upgrade-or-return-early idiom: the
	// closure keeps the pipeline alive (Go has no manual lifetime), but
	// its *effects* are suppressed once the owner has shut down.
	stopped atomic.Bool
}

func newPipeline(cfg ConfigView, logger log.Logger, commit *CommitQueue, handler NewBlockHandler, metrics *Metrics) *pipeline {
	if logger == nil {
		logger = log.Root
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &pipeline{cfg: cfg, log: logger, commit: commit, handler: handler, metrics: metrics}
}

// Stop marks the pipeline as shut down; in-flight callbacks observe this
// and return without touching shared state.
func (p *pipeline) Stop() { p.stopped.Store(true) }

// Apply begins execution of block at the first attempt.
func (p *pipeline) Apply(block types.Block) {
	p.apply(block, 0)
}

// apply dispatches the execute step for block. attempt is the zero-based
// attempt number: attempt 0 is the first try, attempt 1 is the single
// retry. Once maxExecuteAttempts attempts have been made, the pipeline
// rewinds to the committed height instead of trying again.
func (p *pipeline) apply(block types.Block, attempt int) {
	if attempt >= maxExecuteAttempts {
		p.log.Warn("apply: exceeded max execute attempts, resetting executed cursor",
			"number", block.Header().Number(), "hash", block.Header().Hash().Abridged())
		p.cfg.SetExecutedBlock(p.cfg.BlockNumber())
		p.metrics.RewindToCommitted.Inc()
		return
	}
	p.metrics.ExecuteAttempts.Inc()
	p.cfg.Dispatcher().AsyncExecuteBlock(block, true, func(err error, executed types.Header) {
		p.guarded(func() { p.onExecuted(block, attempt, err, executed) })
	})
}

func (p *pipeline) onExecuted(block types.Block, attempt int, err error, executed types.Header) {
	if err != nil {
		p.log.Warn("apply: executing block failed, retrying",
			"number", block.Header().Number(), "hash", block.Header().Hash().Abridged(), "err", err)
		p.apply(block, attempt+1)
		return
	}
	if executed.Hash() != block.Header().Hash() {
		p.log.Warn("apply: verify failed, executed header hash mismatch",
			"number", block.Header().Number(), "want", block.Header().Hash().Abridged(),
			"got", executed.Hash().Abridged())
		p.cfg.SetExecutedBlock(p.cfg.BlockNumber())
		p.metrics.RewindToCommitted.Inc()
		p.metrics.VerifyMismatch.Inc()
		return
	}
	p.log.Info("apply: execute+verify succeeded", "number", block.Header().Number(),
		"hash", block.Header().Hash().Abridged(), "nextBlock", p.cfg.NextBlock())
	p.commit.Push(block)
}

// checkAndCommit is the CommitQueue's onReady callback: it runs the
// consensus check for the block whose turn to commit has come, then
// drives commitBlock on success.
func (p *pipeline) checkAndCommit(block types.Block) {
	if block.Header().Number() != p.cfg.NextBlock() {
		p.log.Warn("checkAndCommit: ignoring block with illegal number",
			"number", block.Header().Number(), "nextBlock", p.cfg.NextBlock())
		p.cfg.SetExecutedBlock(p.cfg.BlockNumber())
		p.metrics.RewindToCommitted.Inc()
		return
	}
	p.cfg.Consensus().AsyncCheckBlock(block, func(err error, ok bool) {
		p.guarded(func() { p.onConsensusChecked(block, err, ok) })
	})
}

func (p *pipeline) onConsensusChecked(block types.Block, err error, ok bool) {
	number := block.Header().Number()
	if err != nil {
		p.log.Warn("checkAndCommit: consensus check error", "number", number, "err", err)
		p.cfg.SetExecutedBlock(number - 1)
		return
	}
	if !ok {
		p.log.Warn("checkAndCommit: consensus check rejected block", "number", number)
		p.cfg.SetExecutedBlock(number - 1)
		return
	}
	p.commitBlock(block)
}

// commitBlock stores the block's transactions (unless it is empty, in
// which case it commits state directly and returns - fixing the
// empty-block double-commit named in SPEC_FULL.md's open questions) then
// commits the resulting state.
func (p *pipeline) commitBlock(block types.Block) {
	p.log.Info("commitBlock", "number", block.Header().Number(), "txs", block.TransactionsLen())

	if block.TransactionsLen() == 0 {
		p.commitBlockState(block)
		return
	}

	txData, txHashes := p.encodeTransactions(block)
	p.cfg.Ledger().AsyncStoreTransactions(txData, txHashes, func(err error) {
		p.guarded(func() { p.onTransactionsStored(block, err) })
	})
}

func (p *pipeline) onTransactionsStored(block types.Block, err error) {
	number := block.Header().Number()
	if err != nil {
		p.log.Warn("commitBlock: store transactions failed", "number", number, "err", err)
		p.cfg.SetExecutedBlock(number - 1)
		return
	}
	p.log.Info("commitBlock: store transactions succeeded", "number", number, "txs", block.TransactionsLen())
	p.commitBlockState(block)
}

// encodeTransactions encodes and hashes every transaction in block in
// parallel, the idiomatic-Go replacement for the original tbb::parallel_for
// sweep over the transaction vector.
func (p *pipeline) encodeTransactions(block types.Block) ([][]byte, []common.Hash) {
	n := block.TransactionsLen()
	txData := make([][]byte, n)
	txHashes := make([]common.Hash, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			tx := block.TransactionAt(i)
			txData[i] = tx.Encode()
			txHashes[i] = tx.Hash()
			return nil
		})
	}
	_ = g.Wait() // encode/hash never fail; errgroup is used purely for fan-out
	return txData, txHashes
}

func (p *pipeline) commitBlockState(block types.Block) {
	header := block.Header()
	p.log.Info("commitBlockState", "number", header.Number(), "hash", header.Hash().Abridged())
	p.cfg.Ledger().AsyncCommitBlock(header, func(err error, cfg LedgerConfig) {
		p.guarded(func() { p.onBlockCommitted(block, err, cfg) })
	})
}

func (p *pipeline) onBlockCommitted(block types.Block, err error, cfg LedgerConfig) {
	header := block.Header()
	if err != nil {
		p.log.Warn("commitBlockState failed", "number", header.Number(), "err", err)
		p.cfg.SetExecutedBlock(header.Number() - 1)
		return
	}
	p.metrics.BlocksCommitted.Inc()
	cfg.SetSealerID(header.Sealer())
	if p.handler != nil {
		p.handler(cfg)
	}
	p.notifyTransactionsResult(block)
	p.commit.TryCommit()
	p.log.Info("commitBlockState succeeded", "number", header.Number(), "node", p.cfg.NodeID())
}

func (p *pipeline) notifyTransactionsResult(block types.Block) {
	n := block.TransactionsLen()
	results := make([]TxSubmitResult, n)
	factory := p.cfg.TxResultFactory()
	for i := 0; i < n; i++ {
		tx := block.TransactionAt(i)
		r := factory.CreateTxSubmitResult(block.Header(), tx.Hash())
		r.SetNonce(tx.Nonce())
		results[i] = r
	}
	number := block.Header().Number()
	p.cfg.TxPool().AsyncNotifyBlockResult(number, results, func(err error) {
		p.guarded(func() {
			if err != nil {
				p.log.Info("notify block result failed", "number", number, "err", err)
				return
			}
			p.log.Info("notify block result succeeded", "number", number, "txs", n)
		})
	})
}

// guarded runs fn, suppressing it entirely if the pipeline has been
// stopped and recovering any panic to a logged warning, matching
// SPEC_FULL.md's "unexpected internal fault" handling: no error from a
// completion callback ever propagates out of it.
func (p *pipeline) guarded(fn func()) {
	if p.stopped.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("pipeline callback panicked", "recovered", r)
		}
	}()
	fn()
}
