// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package engine implements the address discovery / reconciliation state
// machine of a UTXO wallet's synchronization core: HD gap-limit address
// generation, on-demand and reactive per-address reconciliation against a
// Blockbook-style indexer, and fresh-address issuance.
package engine

import (
	"encoding/hex"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

// Engine is the synchronization core for one wallet descriptor. It
// coordinates lookahead address generation, per-address reconciliation, and
// fresh-address issuance across every format the wallet declared.
type Engine struct {
	cfg Config

	// mu serializes the read-compute-write sequence of setLookAhead
	// across concurrently syncing formats.
	mu sync.Mutex

	watch *watchSet
	disp  *dispatcher

	processedCount int64
	totalCount     int64
	progressMu     sync.Mutex

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs an Engine from cfg. It fails fast on a malformed
// configuration.
func New(cfg Config) (*Engine, er.R) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:   cfg,
		watch: newWatchSet(),
	}
	workers := int(cfg.CurrencyInfo.GapLimit)
	if max := runtime.NumCPU() * 4; workers > max {
		workers = max
	}
	e.disp = newDispatcher(workers, func(j addressJob) {
		if err := e.processAddress(j.address); err != nil {
			log.Errorf("processing address %s: %v", j.address, err)
		}
	})
	return e, nil
}

// enqueueProcessAddress submits address for reconciliation on the shared
// work queue without blocking the caller.
func (e *Engine) enqueueProcessAddress(address string) {
	e.disp.enqueue(addressJob{address: address})
}

// Start grows every declared format to its gap limit and scans every
// existing address to catch the store up with the indexer.
// Formats run concurrently; a per-format failure does not abort its
// siblings.
func (e *Engine) Start() er.R {
	e.resetProgress()

	var wg sync.WaitGroup
	wg.Add(len(e.cfg.Formats))
	for _, f := range e.cfg.Formats {
		format := f
		go func() {
			defer wg.Done()
			if err := e.scanFormat(format); err != nil {
				log.Errorf("syncing format %s: %v", format, err)
			}
		}()
	}
	wg.Wait()
	return nil
}

// Stop cancels the work-queue dispatcher. In-flight store and indexer
// calls are expected to observe their own cancellation; this core
// provides the stop signal, not the cancellable I/O primitives themselves
// (those live in the store/indexer implementations).
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.disp.stop()
	})
}

func (e *Engine) resetProgress() {
	atomic.StoreInt64(&e.processedCount, 0)
	total := int64(0)
	gapLimit := int64(e.cfg.CurrencyInfo.GapLimit)
	for _, f := range e.cfg.Formats {
		branches, err := pathfmt.SupportedBranches(f)
		if err != nil {
			continue
		}
		for _, b := range branches {
			n, err := e.cfg.Store.FetchAddressCountFromPathPartition(store.BranchKey{Format: f, ChangeIndex: b})
			if err != nil {
				continue
			}
			count := int64(n)
			if count < gapLimit {
				count = gapLimit
			}
			total += count
		}
	}
	atomic.StoreInt64(&e.totalCount, total)
}

// onAddressChecked advances progress and emits ADDRESSES_CHECKED.
func (e *Engine) onAddressChecked() {
	processed := atomic.AddInt64(&e.processedCount, 1)
	total := atomic.LoadInt64(&e.totalCount)
	if total <= 0 {
		return
	}
	ratio := float64(processed) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	e.cfg.Emitter.AddressesChecked(ratio)
}

// FreshAddressResult is what GetFreshAddress returns.
type FreshAddressResult struct {
	PublicAddress string
	SegwitAddress string // only set for a native-segwit format
	LegacyAddress string // only set when it differs from PublicAddress
}

// GetFreshAddress computes the lowest unused address for one format. When
// the wallet declares more than one format, callers choose which to ask
// by calling this once per format via GetFreshAddressFor; GetFreshAddress
// asks the wallet's first declared format, matching a single-format
// wallet's common case.
func (e *Engine) GetFreshAddress(change bool) (FreshAddressResult, er.R) {
	if len(e.cfg.Formats) == 0 {
		return FreshAddressResult{}, ErrConfig.New("no formats declared", nil)
	}
	return e.GetFreshAddressFor(e.cfg.Formats[0], change)
}

// GetFreshAddressFor computes the lowest unused address for format.
func (e *Engine) GetFreshAddressFor(format pathfmt.Format, change bool) (FreshAddressResult, er.R) {
	purpose, err := pathfmt.PurposeOf(format)
	if err != nil {
		return FreshAddressResult{}, err
	}

	branch := pathfmt.BranchReceive
	if change && purpose != pathfmt.PurposeAirbitz {
		branch = pathfmt.BranchChange
	}

	if purpose == pathfmt.PurposeSegwit {
		idx, err := freshIndex(e.cfg.Store, format, branch, e.cfg.CurrencyInfo.GapLimit, false)
		if err != nil {
			return FreshAddressResult{}, err
		}
		segwitAddr, err := e.addressAt(format, branch, idx)
		if err != nil {
			return FreshAddressResult{}, err
		}
		wrappedAddr, err := e.addressAt(pathfmt.FormatBIP49WrappedSegwit, branch, idx)
		if err != nil {
			// No wrapped-segwit keys configured for this wallet; fall
			// back to exposing only the native-segwit address.
			return FreshAddressResult{PublicAddress: segwitAddr, SegwitAddress: segwitAddr}, nil
		}
		return FreshAddressResult{PublicAddress: wrappedAddr, SegwitAddress: segwitAddr}, nil
	}

	idx, err := freshIndex(e.cfg.Store, format, branch, e.cfg.CurrencyInfo.GapLimit, false)
	if err != nil {
		return FreshAddressResult{}, err
	}
	addr, err := e.addressAt(format, branch, idx)
	if err != nil {
		return FreshAddressResult{}, err
	}
	result := FreshAddressResult{PublicAddress: addr}

	if purpose != pathfmt.PurposeLegacy {
		legacyAddr, err := e.addressAt(pathfmt.FormatBIP32Legacy, branch, idx)
		if err == nil && legacyAddr != addr {
			result.LegacyAddress = legacyAddr
		}
	}
	return result, nil
}

func (e *Engine) addressAt(format pathfmt.Format, branch pathfmt.Branch, idx uint32) (string, er.R) {
	path := pathfmt.Path{Format: format, ChangeIndex: branch, AddrIndex: idx}
	sd, err := e.cfg.KeyMgr.GetScriptPubkey(path)
	if err != nil {
		return "", err
	}
	return e.cfg.KeyMgr.ScriptPubkeyToAddress(hex.EncodeToString(sd.ScriptPubkey))
}

// AddGapLimitAddresses registers externally-reserved addresses the host
// application wants tracked, without deriving a path for them.
func (e *Engine) AddGapLimitAddresses(addresses []string) er.R {
	for _, addr := range addresses {
		sp, err := e.cfg.KeyMgr.AddressToScriptPubkey(addr)
		if err != nil {
			return err
		}
		existing, err := e.cfg.Store.FetchAddressByScriptPubkey(sp)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := e.cfg.Store.SaveAddress(&store.AddressRecord{ScriptPubkey: sp}); err != nil {
			return err
		}
	}
	return nil
}

// MarkAddressUsed force-sets an address record's used flag, for when the
// host application spends from it directly.
func (e *Engine) MarkAddressUsed(address string) er.R {
	sp, err := e.cfg.KeyMgr.AddressToScriptPubkey(address)
	if err != nil {
		return err
	}
	return e.cfg.Store.UpdateAddressByScriptPubkey(sp, func(r *store.AddressRecord) {
		r.Used = true
	})
}
