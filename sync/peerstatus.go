// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cyjseagull/bcos-sync/common"
	"github.com/cyjseagull/bcos-sync/log"
)

// Status is a peer's advertised best-known block, as received on the
// wire in a status packet.
type Status struct {
	Number      uint64
	Hash        common.Hash
	GenesisHash common.Hash
}

// PeerStatus is one peer's last-known best height/hash/genesis. Number
// is monotonically non-decreasing: updates with a lower-or-equal number,
// or a different genesis hash, are rejected.
type PeerStatus struct {
	nodeID string

	mu          sync.RWMutex
	number      uint64
	hash        common.Hash
	genesisHash common.Hash

	downloadRequests int
}

func newPeerStatus(nodeID string, st Status) *PeerStatus {
	return &PeerStatus{
		nodeID:      nodeID,
		number:      st.Number,
		hash:        st.Hash,
		genesisHash: st.GenesisHash,
	}
}

// NodeID returns the peer's node identity.
func (p *PeerStatus) NodeID() string { return p.nodeID }

// Number returns the peer's last-known best height.
func (p *PeerStatus) Number() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.number
}

// Hash returns the peer's last-known best block hash.
func (p *PeerStatus) Hash() common.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hash
}

// NumberAndHash returns number and hash together, atomically: a reader
// never observes a hash that does not belong to the returned number.
func (p *PeerStatus) NumberAndHash() (uint64, common.Hash) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.number, p.hash
}

// GenesisHash returns the genesis hash first seen for this peer.
func (p *PeerStatus) GenesisHash() common.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.genesisHash
}

// update applies a new status if it is newer (number strictly greater)
// and agrees on genesis hash. It returns an error (ErrGenesisMismatch)
// without updating anything if the genesis hash differs - this is
// reported by the caller as a warning, not propagated further.
func (p *PeerStatus) update(st Status, logger log.Logger) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.Number <= p.number {
		return nil
	}
	if st.GenesisHash != p.genesisHash {
		logger.Warn("rejecting peer status with mismatched genesis hash",
			"peer", p.nodeID, "genesis", st.GenesisHash.Abridged(),
			"stored", p.genesisHash.Abridged())
		return ErrGenesisMismatch
	}
	p.number = st.Number
	p.hash = st.Hash
	logger.Debug("updated peer status", "peer", p.nodeID,
		"number", st.Number, "hash", st.Hash.Abridged())
	return nil
}

// PeerStatusTable maps peer identity to its PeerStatus record.
type PeerStatusTable struct {
	log log.Logger

	mu    sync.RWMutex
	peers map[string]*PeerStatus
}

// NewPeerStatusTable builds an empty table.
func NewPeerStatusTable(logger log.Logger) *PeerStatusTable {
	if logger == nil {
		logger = log.Root
	}
	return &PeerStatusTable{log: logger, peers: make(map[string]*PeerStatus)}
}

// HasPeer reports whether id has a known status record.
func (t *PeerStatusTable) HasPeer(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.peers[id]
	return ok
}

// Update applies st to id's record, creating the record if id is not yet
// known. An update with number <= the stored number is a silent no-op; an
// update with a mismatched genesis hash is rejected and logged.
func (t *PeerStatusTable) Update(id string, st Status) error {
	t.mu.Lock()
	existing, ok := t.peers[id]
	if !ok {
		t.peers[id] = newPeerStatus(id, st)
		t.mu.Unlock()
		t.log.Debug("new peer status", "peer", id, "number", st.Number, "hash", st.Hash.Abridged())
		return nil
	}
	t.mu.Unlock()
	return existing.update(st, t.log)
}

// Delete removes id's record, if any.
func (t *PeerStatusTable) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, id)
}

// Get returns id's status record, if known.
func (t *PeerStatusTable) Get(id string) (*PeerStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[id]
	return p, ok
}

// PeerIDs returns the set of peer ids with a known status record, as a
// generic set (rather than a newly-allocated map) so schedulers can
// intersect/union it with other candidate sets (e.g. peers ahead of a
// given height) without reaching into the table's internals.
func (t *PeerStatusTable) PeerIDs() mapset.Set[string] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := mapset.NewThreadUnsafeSet[string]()
	for id := range t.peers {
		ids.Add(id)
	}
	return ids
}

// Len returns the number of known peers.
func (t *PeerStatusTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}
