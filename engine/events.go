// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

// Emitter is the event sink the engine reports progress, balance and
// transaction-set changes through. A host
// implements this however it wants to fan events out (UI store, message
// bus, test collector).
type Emitter interface {
	// AddressesChecked reports processedCount/totalCount as ratio ∈ [0,1].
	AddressesChecked(ratio float64)

	// BalanceChanged reports a new confirmed+unconfirmed balance for one
	// currency, as a decimal string in base units.
	BalanceChanged(currencyCode string, balance string)

	// TxidsChanged reports one batch of transactions that were newly
	// fetched or changed, keyed by txid with their block time.
	TxidsChanged(changed map[string]int64)
}

// NopEmitter discards every event. Useful as a default when a caller has
// no interest in progress reporting.
type NopEmitter struct{}

func (NopEmitter) AddressesChecked(float64)             {}
func (NopEmitter) BalanceChanged(string, string)        {}
func (NopEmitter) TxidsChanged(map[string]int64)        {}

var _ Emitter = NopEmitter{}
