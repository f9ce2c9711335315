// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/blockbook"
	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

const txHistoryPageSize = 10

// processAddress reconciles the store's view of one address against the
// indexer. It does not acquire the engine mutex: only a
// first-time used flip re-enters setLookAhead, which acquires it itself.
func (e *Engine) processAddress(address string) er.R {
	sp, err := e.cfg.KeyMgr.AddressToScriptPubkey(address)
	if err != nil {
		return err
	}

	rec, err := e.cfg.Store.FetchAddressByScriptPubkey(sp)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrInconsistentStoreState.New("no address record for "+sp, nil)
	}
	previouslyUsed := rec.Used

	firstVisit := e.watch.addIfAbsent(address)
	if firstVisit {
		if err := e.cfg.Indexer.WatchAddresses(e.watch.snapshot(), func(changed string) {
			e.enqueueProcessAddress(changed)
		}); err != nil {
			return err
		}
	}

	details, err := e.cfg.Indexer.FetchAddress(address, blockbook.FetchAddressOptions{
		Details: true,
		From:    rec.NetworkQueryVal,
		PerPage: txHistoryPageSize,
		Page:    1,
	})
	if err != nil {
		return err
	}

	balance, derr := decimal.NewFromString(zeroIfEmpty(details.Balance))
	if derr != nil {
		return ErrMalformedIndexerData.New("balance for "+address, er.E(derr))
	}
	unconfirmed, derr := decimal.NewFromString(zeroIfEmpty(details.UnconfirmedBalance))
	if derr != nil {
		return ErrMalformedIndexerData.New("unconfirmed balance for "+address, er.E(derr))
	}
	newBalance := balance.Add(unconfirmed)
	if !newBalance.Equal(rec.Balance) {
		e.cfg.Emitter.BalanceChanged(e.cfg.CurrencyInfo.CurrencyCode, newBalance.String())
	}

	used := (details.Txs + details.UnconfirmedTxs) > 0

	var wg sync.WaitGroup
	var txErr, utxoErr er.R
	wg.Add(2)
	go func() {
		defer wg.Done()
		txErr = e.paginateTxHistory(address, sp, rec.NetworkQueryVal)
	}()
	go func() {
		defer wg.Done()
		utxoErr = e.reconcileAddressUtxos(rec, sp, address)
	}()
	wg.Wait()
	if txErr != nil {
		return txErr
	}
	if utxoErr != nil {
		return utxoErr
	}

	if err := e.cfg.Store.UpdateAddressByScriptPubkey(sp, func(r *store.AddressRecord) {
		r.Balance = newBalance
		r.Used = used
	}); err != nil {
		return err
	}

	if firstVisit {
		e.onAddressChecked()
	}

	if !previouslyUsed && used && rec.HasPath() {
		if err := e.setLookAhead(rec.Path.Format, true); err != nil {
			return err
		}
	}
	return nil
}

// paginateTxHistory walks an address's transaction history page by page,
// normalizing and persisting each transaction, and emits TXIDS_CHANGED once
// per page that returned at least one transaction.
func (e *Engine) paginateTxHistory(address, scriptPubkey string, from uint32) er.R {
	page := 1
	for {
		details, err := e.cfg.Indexer.FetchAddress(address, blockbook.FetchAddressOptions{
			Details: true,
			From:    from,
			PerPage: txHistoryPageSize,
			Page:    page,
		})
		if err != nil {
			return err
		}

		if len(details.Transactions) > 0 {
			changed := make(map[string]int64, len(details.Transactions))
			for i := range details.Transactions {
				raw := details.Transactions[i]
				txRec, nerr := e.normalizeTx(&raw)
				if nerr != nil {
					return nerr
				}
				if err := e.cfg.Store.SaveTransaction(txRec); err != nil {
					return err
				}
				changed[raw.Txid] = raw.BlockTime
			}
			e.cfg.Emitter.TxidsChanged(changed)
		}

		if err := e.cfg.Store.UpdateAddressByScriptPubkey(scriptPubkey, func(r *store.AddressRecord) {
			r.NetworkQueryVal = uint32(page)
		}); err != nil {
			return err
		}

		if page >= details.TotalPages {
			return nil
		}
		page++
	}
}

// reconcileAddressUtxos fetches the indexer's current UTXO set for an
// address and applies the save/remove diff against the store.
func (e *Engine) reconcileAddressUtxos(rec *store.AddressRecord, scriptPubkey, address string) er.R {
	indexerUtxos, err := e.cfg.Indexer.FetchAddressUtxos(address)
	if err != nil {
		return err
	}

	format := pathfmt.FormatBIP32Legacy
	if rec.HasPath() {
		format = rec.Path.Format
	}
	toSave, toRemove, err := e.reconcileUtxos(format, rec.Path, scriptPubkey, indexerUtxos)
	if err != nil {
		return err
	}
	for _, u := range toSave {
		if err := e.cfg.Store.SaveUtxo(u); err != nil {
			return err
		}
	}
	for _, id := range toRemove {
		if err := e.cfg.Store.RemoveUtxo(id); err != nil {
			return err
		}
	}
	return nil
}
