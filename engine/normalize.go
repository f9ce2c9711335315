// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/hex"

	"github.com/shopspring/decimal"

	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/blockbook"
	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

// normalizeTx maps one indexer RawTx onto the store's canonical
// TransactionRecord. Inputs whose indexer
// record omits scriptPubkey have it synthesized from the input's first
// declared address, a documented backend quirk.
func (e *Engine) normalizeTx(raw *blockbook.RawTx) (*store.TransactionRecord, er.R) {
	fees, derr := decimal.NewFromString(zeroIfEmpty(raw.Fees))
	if derr != nil {
		return nil, ErrMalformedIndexerData.New("tx "+raw.Txid+" fee", er.E(derr))
	}

	ins := make([]store.TxInput, 0, len(raw.Vin))
	for _, in := range raw.Vin {
		sp := in.ScriptPubkey
		if sp == "" && len(in.Addresses) > 0 {
			synthesized, err := e.cfg.KeyMgr.AddressToScriptPubkey(in.Addresses[0])
			if err != nil {
				return nil, ErrMalformedIndexerData.New("synthesizing scriptPubkey for tx "+raw.Txid, err)
			}
			sp = synthesized
		}
		amt, derr := decimal.NewFromString(zeroIfEmpty(in.Value))
		if derr != nil {
			return nil, ErrMalformedIndexerData.New("tx "+raw.Txid+" input amount", er.E(derr))
		}
		ins = append(ins, store.TxInput{
			Txid:         in.Txid,
			Vout:         in.Vout,
			ScriptPubkey: sp,
			Amount:       amt,
		})
	}

	outs := make([]store.TxOutput, 0, len(raw.Vout))
	for _, out := range raw.Vout {
		amt, derr := decimal.NewFromString(zeroIfEmpty(out.Value))
		if derr != nil {
			return nil, ErrMalformedIndexerData.New("tx "+raw.Txid+" output amount", er.E(derr))
		}
		outs = append(outs, store.TxOutput{
			Index:        out.Index,
			ScriptPubkey: out.ScriptPubkey,
			Amount:       amt,
		})
	}

	return &store.TransactionRecord{
		Txid:        raw.Txid,
		RawHex:      raw.RawHex,
		BlockHeight: raw.BlockHeight,
		BlockTime:   raw.BlockTime,
		Fees:        fees,
		Inputs:      ins,
		Outputs:     outs,
	}, nil
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// classifyUtxo derives the store's script-type-specific fields for one
// indexer UTXO.
func (e *Engine) classifyUtxo(format pathfmt.Format, scriptPubkey string, u blockbook.Utxo) (*store.UTXORecord, er.R) {
	value, derr := decimal.NewFromString(zeroIfEmpty(u.Value))
	if derr != nil {
		return nil, ErrMalformedIndexerData.New("utxo "+u.Txid+" value", er.E(derr))
	}

	rec := &store.UTXORecord{
		Txid:         u.Txid,
		Vout:         u.Vout,
		Value:        value,
		ScriptPubkey: scriptPubkey,
		BlockHeight:  u.Height,
	}

	purpose, err := pathfmt.PurposeOf(format)
	if err != nil {
		return nil, err
	}
	switch purpose {
	case pathfmt.PurposeLegacy, pathfmt.PurposeAirbitz:
		rec.ScriptType = store.ScriptTypeP2PKH
		raw, err := e.fetchRawTxHex(u.Txid)
		if err != nil {
			return nil, err
		}
		rec.Script = raw
	case pathfmt.PurposeWrappedSegwit:
		rec.ScriptType = store.ScriptTypeP2WPKHP2SH
		rec.Script = scriptPubkey
		// redeemScript is filled in by reconcileUtxos, which knows the
		// address's derivation path; classifyUtxo only sees a scriptPubkey.
	case pathfmt.PurposeSegwit:
		rec.ScriptType = store.ScriptTypeP2WPKH
		rec.Script = scriptPubkey
	}
	return rec, nil
}

func (e *Engine) fetchRawTxHex(txid string) (string, er.R) {
	if tx, err := e.cfg.Store.FetchTransaction(txid); err == nil && tx != nil && tx.RawHex != "" {
		return tx.RawHex, nil
	}
	raw, err := e.cfg.Indexer.FetchTransaction(txid)
	if err != nil {
		return "", err
	}
	return raw.RawHex, nil
}

// reconcileUtxos diffs the indexer's current UTXO set for scriptPubkey
// against the store's, returning the records to save and the ids to remove.
func (e *Engine) reconcileUtxos(format pathfmt.Format, path *pathfmt.Path, scriptPubkey string, indexerUtxos []blockbook.Utxo) (toSave []*store.UTXORecord, toRemove []string, err er.R) {
	stored, err := e.cfg.Store.FetchUtxosByScriptPubkey(scriptPubkey)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]store.UTXORecord, len(stored))
	for _, u := range stored {
		byID[u.ID()] = u
	}

	var redeemScript string
	if path != nil {
		purpose, perr := pathfmt.PurposeOf(format)
		if perr == nil && purpose == pathfmt.PurposeWrappedSegwit {
			sd, serr := e.cfg.KeyMgr.GetScriptPubkey(*path)
			if serr == nil {
				redeemScript = hex.EncodeToString(sd.RedeemScript)
			}
		}
	}

	for _, u := range indexerUtxos {
		id := (&store.UTXORecord{Txid: u.Txid, Vout: u.Vout}).ID()
		if _, ok := byID[id]; ok {
			delete(byID, id)
			continue
		}
		rec, cerr := e.classifyUtxo(format, scriptPubkey, u)
		if cerr != nil {
			return nil, nil, cerr
		}
		if rec.ScriptType == store.ScriptTypeP2WPKHP2SH {
			rec.RedeemScript = redeemScript
		}
		toSave = append(toSave, rec)
	}
	for id := range byID {
		toRemove = append(toRemove, id)
	}
	return toSave, toRemove, nil
}
