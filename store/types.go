// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package store declares the data model and the Processor
// interface that the sync engine persists its reconciled view
// of the chain through. It does not itself decide a storage backend — see
// store/bboltstore for the persistent implementation and store/memstore for
// the in-memory test double.
package store

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkt-cash/utxosync/pathfmt"
)

// ScriptType classifies a UTXO's locking script so the engine knows how to
// reconstruct a spend for it later.
type ScriptType int

const (
	ScriptTypeP2PKH ScriptType = iota
	ScriptTypeP2WPKHP2SH
	ScriptTypeP2WPKH
)

// AddressRecord is keyed by ScriptPubkey, the canonical address-record key.
type AddressRecord struct {
	ScriptPubkey string // hex
	Path         *pathfmt.Path
	Used         bool
	Balance      decimal.Decimal
	// NetworkQueryVal is the checkpoint recorded after the last tx-history
	// page read for this address (the number of that page); it is replayed
	// as `from` on the next fetch.
	NetworkQueryVal uint32
	LastQuery       time.Time
	LastTouched     time.Time
}

// HasPath reports whether this record was derived by the engine (true) or
// only imported externally via AddGapLimitAddresses (false).
// Externally-imported records never gate lookahead extension.
func (r *AddressRecord) HasPath() bool {
	return r != nil && r.Path != nil
}

// TxInput is one input of a TransactionRecord.
type TxInput struct {
	Txid         string
	Vout         uint32
	ScriptPubkey string // hex; synthesized when the indexer omits it
	Amount       decimal.Decimal
}

// TxOutput is one output of a TransactionRecord.
type TxOutput struct {
	Index        uint32
	ScriptPubkey string // hex
	Amount       decimal.Decimal
}

// TransactionRecord is the store's canonical, backend-agnostic form of an
// on-chain or mempool transaction. OurIns/OurOuts/OurAmount are
// deliberately left for a downstream annotator outside this engine's scope.
type TransactionRecord struct {
	Txid        string
	RawHex      string
	BlockHeight int64 // 0 == mempool
	BlockTime   int64

	Fees    decimal.Decimal
	Inputs  []TxInput
	Outputs []TxOutput

	OurIns    []int
	OurOuts   []int
	OurAmount decimal.Decimal
}

// UTXORecord is keyed by ID = txid + "_" + vout.
type UTXORecord struct {
	Txid         string
	Vout         uint32
	Value        decimal.Decimal
	ScriptPubkey string // hex

	ScriptType   ScriptType
	Script       string // hex; raw tx for P2PKH, scriptPubkey for segwit forms
	RedeemScript string // hex; only set for ScriptTypeP2WPKHP2SH

	BlockHeight int64 // 0 == unconfirmed
}

// ID is the store's unique key for a UTXO.
func (u *UTXORecord) ID() string {
	return utxoID(u.Txid, u.Vout)
}

func utxoID(txid string, vout uint32) string {
	return txid + "_" + strconv.FormatUint(uint64(vout), 10)
}

// BranchKey identifies one (format, branch) path partition, letting the
// store answer "how many addresses are derived on this branch" in O(1).
type BranchKey struct {
	Format      pathfmt.Format
	ChangeIndex pathfmt.Branch
}
