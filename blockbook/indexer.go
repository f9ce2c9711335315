// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockbook declares the Indexer abstraction the sync engine
// consumes and a WebSocket-based implementation of it, grounded on the
// connect/reconnect/Start/Stop lifecycle of pktwallet/chain.RPCClient.
package blockbook

import (
	"github.com/pkt-cash/pktd/btcutil/er"
)

// AddressDetails is the indexer's view of one address.
type AddressDetails struct {
	Balance             string
	UnconfirmedBalance  string
	Txs                 int
	UnconfirmedTxs      int
	Transactions        []RawTx
	TotalPages          int
}

// Utxo is one unspent output the indexer reports for an address.
type Utxo struct {
	Txid   string
	Vout   uint32
	Value  string
	Height int64 // 0 if unconfirmed/unknown
}

// RawTx is the indexer's transaction representation; RawHex carries the
// serialized transaction when the caller requested it. Fields beyond what
// the core normalizer needs are omitted.
type RawTx struct {
	Txid        string
	RawHex      string
	BlockHeight int64
	BlockTime   int64
	Fees        string
	Vin         []RawTxInput
	Vout        []RawTxOutput
}

type RawTxInput struct {
	Txid         string
	Vout         uint32
	ScriptPubkey string // hex; may be empty, a documented backend quirk
	Addresses    []string
	Value        string
}

type RawTxOutput struct {
	Index        uint32
	ScriptPubkey string // hex
	Value        string
}

// FetchAddressOptions parameterizes Indexer.FetchAddress.
type FetchAddressOptions struct {
	Details bool
	From    uint32
	PerPage int
	Page    int
}

// WatchCallback is invoked with the address that changed, on every push
// notification for a subscribed address.
type WatchCallback func(address string)

// Indexer is the Blockbook-style indexer abstraction the engine consumes.
// This module never assumes a specific transport; WSClient is one real
// implementation of it.
type Indexer interface {
	FetchAddress(address string, opts FetchAddressOptions) (*AddressDetails, er.R)
	FetchAddressUtxos(address string) ([]Utxo, er.R)
	FetchTransaction(txid string) (*RawTx, er.R)
	WatchAddresses(addresses []string, cb WatchCallback) er.R
}

// Err identifies a category of indexer-client error.
var Err = er.NewErrorType("blockbook.Err")

var (
	// ErrTransientNetwork marks failures expected to be transient (the
	// indexer is unreachable, or a call timed out). Retrying is the
	// server-pool manager's concern, out of this module's scope.
	ErrTransientNetwork = Err.Code("ErrTransientNetwork")

	// ErrMalformedResponse marks a response missing fields this client
	// needs, or with a structurally invalid size.
	ErrMalformedResponse = Err.Code("ErrMalformedResponse")
)
