// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/chaincfg"

	"github.com/pkt-cash/utxosync/blockbook"
	"github.com/pkt-cash/utxosync/keymanager"
	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

// KeyManager is the subset of keymanager.KeyManager the engine depends on.
// Declared here, rather than depended on directly, so the engine core
// never assumes a specific derivation scheme lives behind it.
type KeyManager interface {
	GetScriptPubkey(path pathfmt.Path) (keymanager.ScriptData, er.R)
	ScriptPubkeyToAddress(scriptPubkeyHex string) (string, er.R)
	AddressToScriptPubkey(address string) (string, er.R)
}

// CurrencyInfo carries the gap-limit discipline and the currency code used
// to label BalanceChanged events.
type CurrencyInfo struct {
	GapLimit     uint32
	CurrencyCode string
}

// Config wires the engine to its external collaborators and the wallet
// descriptor it synchronizes.
type Config struct {
	Network      *chaincfg.Params
	CurrencyInfo CurrencyInfo

	// Formats is the set of address formats this wallet declared. Every
	// declared format is synchronized independently.
	Formats []pathfmt.Format

	Store   store.Processor
	Indexer blockbook.Indexer
	KeyMgr  KeyManager
	Emitter Emitter
}

func (c *Config) validate() er.R {
	if len(c.Formats) == 0 {
		return ErrConfig.New("no address formats declared", nil)
	}
	seen := make(map[pathfmt.Format]bool, len(c.Formats))
	for _, f := range c.Formats {
		if seen[f] {
			return ErrConfig.New("format declared more than once: "+f.String(), nil)
		}
		seen[f] = true
		if _, err := pathfmt.PurposeOf(f); err != nil {
			return ErrConfig.New("unsupported format "+f.String(), err)
		}
	}
	if c.CurrencyInfo.GapLimit == 0 {
		return ErrConfig.New("gapLimit must be positive", nil)
	}
	if c.Store == nil {
		return ErrConfig.New("no store configured", nil)
	}
	if c.Indexer == nil {
		return ErrConfig.New("no indexer configured", nil)
	}
	if c.KeyMgr == nil {
		return ErrConfig.New("no keymanager configured", nil)
	}
	if c.Emitter == nil {
		c.Emitter = NopEmitter{}
	}
	return nil
}
