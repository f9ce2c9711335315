// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/hex"

	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

// setLookAhead grows the persisted address set of every branch supported by
// format to freshIndex+gapLimit. The engine mutex is held
// for its entire body; newly created addresses are dispatched
// to the work queue — a non-blocking enqueue — so the network I/O that
// processes them never happens while the mutex is held.
func (e *Engine) setLookAhead(format pathfmt.Format, processNewAddresses bool) er.R {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setLookAheadLocked(format, processNewAddresses)
}

func (e *Engine) setLookAheadLocked(format pathfmt.Format, processNewAddresses bool) er.R {
	branches, err := pathfmt.SupportedBranches(format)
	if err != nil {
		return err
	}
	gapLimit := e.cfg.CurrencyInfo.GapLimit

	for _, branch := range branches {
		key := store.BranchKey{Format: format, ChangeIndex: branch}
		for {
			fresh, err := freshIndex(e.cfg.Store, format, branch, gapLimit, true)
			if err != nil {
				return err
			}
			n, err := e.cfg.Store.FetchAddressCountFromPathPartition(key)
			if err != nil {
				return err
			}
			target := fresh + gapLimit
			if n >= target {
				break
			}

			path := pathfmt.Path{Format: format, ChangeIndex: branch, AddrIndex: n}
			created, address, err := e.ensureAddressRecord(path)
			if err != nil {
				return err
			}
			if created && processNewAddresses && address != "" {
				e.enqueueProcessAddress(address)
			}
		}
	}
	return nil
}

// ensureAddressRecord derives and persists the AddressRecord for path if it
// does not yet exist, or patches in a missing path on an existing
// externally-imported record. It reports whether a new record was created
// and, if so, the textual address for dispatch.
func (e *Engine) ensureAddressRecord(path pathfmt.Path) (created bool, address string, err er.R) {
	sp, found, err := e.cfg.Store.FetchScriptPubkeyByPath(path)
	if err != nil {
		return false, "", err
	}
	if found {
		rec, err := e.cfg.Store.FetchAddressByScriptPubkey(sp)
		if err != nil {
			return false, "", err
		}
		if rec == nil {
			return false, "", ErrInconsistentStoreState.New("path indexed but no address record for "+sp, nil)
		}
		if !rec.HasPath() {
			p := path
			if err := e.cfg.Store.UpdateAddressByScriptPubkey(sp, func(r *store.AddressRecord) {
				r.Path = &p
			}); err != nil {
				return false, "", err
			}
		}
		return false, "", nil
	}

	sd, err := e.cfg.KeyMgr.GetScriptPubkey(path)
	if err != nil {
		return false, "", err
	}
	sp = hex.EncodeToString(sd.ScriptPubkey)
	p := path
	rec := &store.AddressRecord{
		ScriptPubkey: sp,
		Path:         &p,
		Used:         false,
	}
	if err := e.cfg.Store.SaveAddress(rec); err != nil {
		return false, "", err
	}

	address, err = e.cfg.KeyMgr.ScriptPubkeyToAddress(sp)
	if err != nil {
		return false, "", err
	}
	return true, address, nil
}
