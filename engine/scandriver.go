// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"sync"

	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

// scanBranch iterates every address already derived on one branch,
// dispatching processAddress in waves of gapLimit. It
// returns once every address in [0, addressCount) has been processed at
// least once; the reactive subscription path keeps the branch current
// after that.
func (e *Engine) scanBranch(format pathfmt.Format, branch pathfmt.Branch) er.R {
	key := store.BranchKey{Format: format, ChangeIndex: branch}
	n, err := e.cfg.Store.FetchAddressCountFromPathPartition(key)
	if err != nil {
		return err
	}
	gapLimit := e.cfg.CurrencyInfo.GapLimit
	if gapLimit == 0 {
		gapLimit = 1
	}

	for start := uint32(0); start < n; start += gapLimit {
		end := start + gapLimit
		if end > n {
			end = n
		}

		var wg sync.WaitGroup
		errs := make([]er.R, end-start)
		for i := start; i < end; i++ {
			idx := i
			path := pathfmt.Path{Format: format, ChangeIndex: branch, AddrIndex: idx}
			wg.Add(1)
			go func(slot uint32) {
				defer wg.Done()
				sp, found, ferr := e.cfg.Store.FetchScriptPubkeyByPath(path)
				if ferr != nil {
					errs[slot-start] = ferr
					return
				}
				if !found {
					errs[slot-start] = ErrInconsistentStoreState.New("no scriptPubkey for path", nil)
					return
				}
				address, aerr := e.cfg.KeyMgr.ScriptPubkeyToAddress(sp)
				if aerr != nil {
					errs[slot-start] = aerr
					return
				}
				if perr := e.processAddress(address); perr != nil {
					log.Errorf("processing address %s: %v", address, perr)
					errs[slot-start] = perr
				}
			}(idx)
		}
		wg.Wait()

		for _, perr := range errs {
			if perr == nil {
				continue
			}
			// Per-address errors don't abort the scan; only
			// an inconsistent store is fatal for the enclosing operation.
			if ErrInconsistentStoreState.Is(perr) || store.ErrInconsistent.Is(perr) {
				return perr
			}
		}
	}
	return nil
}

// scanFormat runs setLookAhead then scans each of a format's supported
// branches to completion.
func (e *Engine) scanFormat(format pathfmt.Format) er.R {
	if err := e.setLookAhead(format, true); err != nil {
		return err
	}
	branches, err := pathfmt.SupportedBranches(format)
	if err != nil {
		return err
	}
	for _, branch := range branches {
		if err := e.scanBranch(format, branch); err != nil {
			return err
		}
	}
	return nil
}
