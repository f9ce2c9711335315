// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/btcutil/hdkeychain"

	"github.com/pkt-cash/utxosync/blockbook"
	"github.com/pkt-cash/utxosync/engine"
	"github.com/pkt-cash/utxosync/keymanager"
	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store/bboltstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.String())
		os.Exit(1)
	}
}

// run is a work-around main function: deferred cleanup needs to execute
// before the process exits, which os.Exit from main would skip.
func run() er.R {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if lerr := initLogRotator(filepath.Join(cfg.AppDataDir, "logs", defaultLogFilename)); lerr != nil {
		return lerr
	}
	setLogLevels(cfg.DebugLevel)
	wireLoggers()

	log.Infof("walletsyncd starting, indexer %s", cfg.IndexerURL)

	acctKey, herr := hdkeychain.NewKeyFromString(cfg.AccountXpub)
	if herr != nil {
		return er.E(herr)
	}
	accountKeys := make(map[pathfmt.Format]*hdkeychain.ExtendedKey, len(cfg.formats))
	for _, f := range cfg.formats {
		accountKeys[f] = acctKey
	}
	km := keymanager.New(cfg.activeNet, accountKeys)

	dbPath := filepath.Join(cfg.AppDataDir, "walletsync.db")
	db, derr := bboltstore.Open(dbPath)
	if derr != nil {
		return derr
	}
	defer db.Close()

	indexer := blockbook.NewWSClient(cfg.IndexerURL)
	if ierr := indexer.Start(); ierr != nil {
		return ierr
	}
	defer indexer.Stop()

	eng, eerr := engine.New(engine.Config{
		Network: cfg.activeNet,
		CurrencyInfo: engine.CurrencyInfo{
			GapLimit:     cfg.GapLimit,
			CurrencyCode: cfg.CurrencyCode,
		},
		Formats: cfg.formats,
		Store:   db,
		Indexer: indexer,
		KeyMgr:  km,
	})
	if eerr != nil {
		return eerr
	}

	go func() {
		if serr := eng.Start(); serr != nil {
			log.Errorf("sync engine exited: %v", serr)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	eng.Stop()
	log.Info("shutdown complete")
	return nil
}
