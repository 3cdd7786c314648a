// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"github.com/cyjseagull/bcos-sync/core/types"
	"github.com/cyjseagull/bcos-sync/log"
)

// Manager owns the full download-and-apply pipeline: the Downloading
// Queue, the Apply Pipeline, the Commit Queue, and the Peer Status Table.
// It is the entry point the surrounding node (transport, scheduler)
// drives.
type Manager struct {
	cfg ConfigView
	log log.Logger

	Queue   *DownloadingQueue
	Peers   *PeerStatusTable
	Metrics *Metrics

	commit   *CommitQueue
	pipeline *pipeline
}

// NewManager wires a Manager from its collaborators. handler is invoked
// once per successful commit (see NewBlockHandler's doc comment for the
// effects the surrounding node is expected to implement in it).
func NewManager(cfg ConfigView, logger log.Logger, handler NewBlockHandler) *Manager {
	if logger == nil {
		logger = log.Root
	}
	metrics := NewMetrics()

	m := &Manager{
		cfg:     cfg,
		log:     logger,
		Queue:   NewDownloadingQueue(cfg, logger),
		Peers:   NewPeerStatusTable(logger),
		Metrics: metrics,
	}
	m.pipeline = newPipeline(cfg, logger, nil, handler, metrics)
	m.commit = NewCommitQueue(cfg, logger, m.pipeline.checkAndCommit)
	m.pipeline.commit = m.commit
	return m
}

// Push enqueues a freshly received batch of undecoded blocks. Never
// blocks the caller.
func (m *Manager) Push(batch types.BlocksBatch) {
	m.Queue.Push(batch)
}

// PumpOnce flushes the downloading queue and, if its top block is ready,
// begins applying it. It is meant to be called repeatedly by the
// surrounding node's event loop (e.g. on every new batch arrival and on
// a timer, to make forward progress after a rewind). Returns true if a
// block was handed to the pipeline. On return it refreshes the queue-size
// gauges in Metrics.
func (m *Manager) PumpOnce() bool {
	defer func() {
		m.Metrics.DownloadQueueSize.Set(float64(m.Queue.Size()))
		m.Metrics.CommitQueueSize.Set(float64(m.commit.Size()))
	}()
	m.Queue.ClearFullQueueIfNotHas(m.cfg.NextBlock())
	m.Queue.ClearExpired()

	block, ok := m.Queue.Top(true)
	if !ok {
		return false
	}
	if block.Header().Number() <= m.cfg.BlockNumber() {
		// Stale: drop silently without ever reaching the pipeline.
		m.Queue.Pop()
		return false
	}
	m.Queue.Pop()
	m.pipeline.Apply(block)
	return true
}

// Stop shuts the pipeline down: in-flight completion callbacks become
// no-ops instead of touching shared state.
func (m *Manager) Stop() {
	m.pipeline.Stop()
}
