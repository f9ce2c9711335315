// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package store

import (
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/pathfmt"
)

// Processor is the persistent-store abstraction the sync engine consumes.
// It is an external collaborator: this module's engine never decides its
// backing storage technology, only its shape. See store/bboltstore for a
// bbolt-backed implementation and store/memstore for an in-memory test
// double.
type Processor interface {
	FetchAddressByScriptPubkey(scriptPubkey string) (*AddressRecord, er.R)
	FetchAddressCountFromPathPartition(key BranchKey) (uint32, er.R)
	FetchScriptPubkeyByPath(path pathfmt.Path) (string, bool, er.R)

	SaveAddress(rec *AddressRecord) er.R
	UpdateAddressByScriptPubkey(scriptPubkey string, mutate func(rec *AddressRecord)) er.R

	FetchTransaction(txid string) (*TransactionRecord, er.R)
	SaveTransaction(tx *TransactionRecord) er.R

	FetchUtxosByScriptPubkey(scriptPubkey string) ([]UTXORecord, er.R)
	SaveUtxo(u *UTXORecord) er.R
	RemoveUtxo(id string) er.R
}

// Err identifies a category of store error, following the same
// ErrorType/ErrorCode idiom as pktwallet/wtxmgr and pktwallet/waddrmgr.
var Err = er.NewErrorType("store.Err")

var (
	// ErrNotFound indicates a lookup found no record. Callers use this to
	// distinguish "absent" from a real I/O failure; the Processor methods
	// above return (nil, nil) for a clean miss and reserve ErrNotFound for
	// callers that demand a record must already exist.
	ErrNotFound = Err.Code("ErrNotFound")

	// ErrInconsistent backs InconsistentStoreState: a
	// scriptPubkey the engine just derived has no AddressRecord, or a
	// known path has no scriptPubkey. Fatal for the enclosing operation.
	ErrInconsistent = Err.Code("ErrInconsistent")

	// ErrDatabase wraps an underlying storage-engine failure.
	ErrDatabase = Err.Code("ErrDatabase")
)
