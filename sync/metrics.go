// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the counters and gauges this package exposes. They are
// plain, unregistered prometheus collectors by default so constructing a
// Manager in a test never touches the global registry; call Register to
// attach them to a real one (typically prometheus.DefaultRegisterer) in
// a running node.
type Metrics struct {
	ExecuteAttempts   prometheus.Counter
	BlocksCommitted   prometheus.Counter
	VerifyMismatch    prometheus.Counter
	RewindToCommitted prometheus.Counter
	DownloadQueueSize prometheus.Gauge
	CommitQueueSize   prometheus.Gauge
}

// NewMetrics builds a fresh, unregistered set of collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		ExecuteAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bcos_sync", Name: "execute_attempts_total",
			Help: "Number of AsyncExecuteBlock dispatches, including retries.",
		}),
		BlocksCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bcos_sync", Name: "blocks_committed_total",
			Help: "Number of blocks successfully committed to the ledger.",
		}),
		VerifyMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bcos_sync", Name: "verify_mismatch_total",
			Help: "Number of executed blocks whose header hash did not match.",
		}),
		RewindToCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bcos_sync", Name: "rewind_to_committed_total",
			Help: "Number of times the executed cursor was rewound to the committed height.",
		}),
		DownloadQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bcos_sync", Name: "download_queue_size",
			Help: "Current combined size of the ingress buffer and decoded heap.",
		}),
		CommitQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bcos_sync", Name: "commit_queue_size",
			Help: "Current number of blocks waiting in the commit queue.",
		}),
	}
}

// Register attaches every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ExecuteAttempts, m.BlocksCommitted, m.VerifyMismatch,
		m.RewindToCommitted, m.DownloadQueueSize, m.CommitQueueSize,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
