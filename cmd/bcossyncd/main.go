// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

// Command bcossyncd is a demo entrypoint wiring configuration, logging,
// in-memory stand-in collaborators, and the sync manager together - the
// way cmd/geth wires node, eth, and log. It does not speak to a real
// network or a real ledger; internal/memchain supplies both so the
// pipeline can be driven and observed end-to-end.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/cyjseagull/bcos-sync/config"
	"github.com/cyjseagull/bcos-sync/core/types"
	"github.com/cyjseagull/bcos-sync/internal/memchain"
	"github.com/cyjseagull/bcos-sync/log"
	blocksync "github.com/cyjseagull/bcos-sync/sync"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a bcossyncd TOML config file",
	}
	nodeIDFlag = &cli.StringFlag{
		Name:  "nodeid",
		Usage: "overrides the configured node identity",
	}
	maxQueueFlag = &cli.IntFlag{
		Name:  "max-queue",
		Usage: "overrides the configured downloading-queue capacity",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "overrides the configured Prometheus listen address",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "overrides the configured log verbosity (debug, info, warn, error)",
	}
	blocksFlag = &cli.IntFlag{
		Name:  "blocks",
		Usage: "number of synthetic blocks to run through the pipeline before exiting",
		Value: 10,
	}
)

func main() {
	app := &cli.App{
		Name:  "bcossyncd",
		Usage: "run the block download-and-apply pipeline against an in-memory demo chain",
		Flags: []cli.Flag{configFlag, nodeIDFlag, maxQueueFlag, metricsAddrFlag, verbosityFlag, blocksFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultConfig()
	if path := c.String(configFlag.Name); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg = cfg.Overlay(c.String(nodeIDFlag.Name), c.Int(maxQueueFlag.Name), c.String(metricsAddrFlag.Name), c.String(verbosityFlag.Name))

	logger := log.New(os.Stderr)
	logger.Info("starting bcossyncd", "nodeId", cfg.NodeID, "maxQueue", cfg.MaxDownloadingBlockQueueSize)

	memcfg := memchain.NewConfig(cfg.NodeID, cfg.MaxDownloadingBlockQueueSize)

	manager := blocksync.NewManager(memcfg, logger, func(lc blocksync.LedgerConfig) {
		logger.Info("new block handler fired", "number", lc.BlockNumber())
	})

	if cfg.MetricsAddr != "" {
		if err := manager.Metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	n := c.Int(blocksFlag.Name)
	feedSyntheticBlocks(manager, memcfg, n)

	for i := 0; i < n; i++ {
		if !manager.PumpOnce() {
			break
		}
	}
	logger.Info("demo run complete", "committedHeight", memcfg.BlockNumber())
	return nil
}

// feedSyntheticBlocks registers and pushes n deterministic single-batch
// blocks, standing in for the network transport this core treats as an
// external collaborator.
func feedSyntheticBlocks(manager *blocksync.Manager, cfg *memchain.Config, n int) {
	batch := &types.SimpleBatch{}
	for i := 1; i <= n; i++ {
		number := uint64(i)
		block := &types.SimpleBlock{
			HeaderVal: &types.SimpleHeader{Num: number, SealerVal: cfg.NodeID()},
		}
		data := []byte(fmt.Sprintf("demo-wire-%d", number))
		cfg.Codec().Register(data, block)
		batch.Blocks = append(batch.Blocks, data)
	}
	manager.Push(batch)
}

func serveMetrics(addr string, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server stopped", "err", err)
	}
}
