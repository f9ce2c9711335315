// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

// recordAtIndex fetches the AddressRecord at one path, returning (nil, nil)
// when nothing has been derived there yet.
func recordAtIndex(s store.Processor, format pathfmt.Format, branch pathfmt.Branch, idx uint32) (*store.AddressRecord, er.R) {
	path := pathfmt.Path{Format: format, ChangeIndex: branch, AddrIndex: idx}
	sp, found, err := s.FetchScriptPubkeyByPath(path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	rec, err := s.FetchAddressByScriptPubkey(sp)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// freshIndex locates the first index of a branch's trailing run of unused
// addresses: one past the highest used index, or 0 when none is used.
// Unused indices below a used one are not fresh. With find=false it returns
// only the lookahead anchor, `max(0, addressCount-gapLimit)`, without
// scanning.
func freshIndex(s store.Processor, format pathfmt.Format, branch pathfmt.Branch, gapLimit uint32, find bool) (uint32, er.R) {
	key := store.BranchKey{Format: format, ChangeIndex: branch}
	n, err := s.FetchAddressCountFromPathPartition(key)
	if err != nil {
		return 0, err
	}

	anchor := uint32(0)
	if n > gapLimit {
		anchor = n - gapLimit
	}
	if !find {
		return anchor, nil
	}

	// A used record inside the window [anchor, n) puts the fresh index
	// just past the highest one.
	for j := n; j > anchor; j-- {
		rec, err := recordAtIndex(s, format, branch, j-1)
		if err != nil {
			return 0, err
		}
		if rec != nil && rec.Used {
			return j, nil
		}
	}

	i := anchor
	for {
		if i >= n {
			return i, nil
		}
		rec, err := recordAtIndex(s, format, branch, i)
		if err != nil {
			return 0, err
		}
		used := rec != nil && rec.Used
		if !used {
			if i == 0 {
				return 0, nil
			}
			prev, err := recordAtIndex(s, format, branch, i-1)
			if err != nil {
				return 0, err
			}
			if prev != nil && prev.Used {
				return i, nil
			}
			if i >= 2 {
				i -= 2
			} else {
				i = 0
			}
			continue
		}
		i++
	}
}
