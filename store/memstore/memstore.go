// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package memstore is an in-memory store.Processor, used by engine tests the
// way pktwallet/wallet/mock.go stands in for a live chain backend.
package memstore

import (
	"sync"

	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

// Store is a goroutine-safe, in-memory store.Processor.
type Store struct {
	mu sync.Mutex

	byScriptPubkey map[string]*store.AddressRecord
	byPath         map[pathfmt.Path]string // path -> scriptPubkey
	branchCount    map[store.BranchKey]uint32

	txs   map[string]*store.TransactionRecord
	utxos map[string]map[string]store.UTXORecord // scriptPubkey -> id -> utxo
}

var _ store.Processor = (*Store)(nil)

// New returns an empty memstore.Store.
func New() *Store {
	return &Store{
		byScriptPubkey: make(map[string]*store.AddressRecord),
		byPath:         make(map[pathfmt.Path]string),
		branchCount:    make(map[store.BranchKey]uint32),
		txs:            make(map[string]*store.TransactionRecord),
		utxos:          make(map[string]map[string]store.UTXORecord),
	}
}

func (s *Store) FetchAddressByScriptPubkey(scriptPubkey string) (*store.AddressRecord, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byScriptPubkey[scriptPubkey]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) FetchAddressCountFromPathPartition(key store.BranchKey) (uint32, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branchCount[key], nil
}

func (s *Store) FetchScriptPubkeyByPath(path pathfmt.Path) (string, bool, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.byPath[path]
	return sp, ok, nil
}

func (s *Store) SaveAddress(rec *store.AddressRecord) er.R {
	if rec == nil {
		return store.ErrInconsistent.New("nil address record", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.byScriptPubkey[rec.ScriptPubkey] = &cp
	if rec.Path != nil {
		s.byPath[*rec.Path] = rec.ScriptPubkey
		key := store.BranchKey{Format: rec.Path.Format, ChangeIndex: rec.Path.ChangeIndex}
		if rec.Path.AddrIndex+1 > s.branchCount[key] {
			s.branchCount[key] = rec.Path.AddrIndex + 1
		}
	}
	return nil
}

func (s *Store) UpdateAddressByScriptPubkey(scriptPubkey string, mutate func(rec *store.AddressRecord)) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byScriptPubkey[scriptPubkey]
	if !ok {
		return store.ErrInconsistent.New("update of unknown scriptPubkey "+scriptPubkey, nil)
	}
	mutate(rec)
	return nil
}

func (s *Store) FetchTransaction(txid string) (*store.TransactionRecord, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[txid]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (s *Store) SaveTransaction(tx *store.TransactionRecord) er.R {
	if tx == nil {
		return store.ErrInconsistent.New("nil transaction record", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.txs[tx.Txid] = &cp
	return nil
}

func (s *Store) FetchUtxosByScriptPubkey(scriptPubkey string) ([]store.UTXORecord, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.utxos[scriptPubkey]
	out := make([]store.UTXORecord, 0, len(m))
	for _, u := range m {
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) SaveUtxo(u *store.UTXORecord) er.R {
	if u == nil {
		return store.ErrInconsistent.New("nil utxo record", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.utxos[u.ScriptPubkey]
	if m == nil {
		m = make(map[string]store.UTXORecord)
		s.utxos[u.ScriptPubkey] = m
	}
	m[u.ID()] = *u
	return nil
}

func (s *Store) RemoveUtxo(id string) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.utxos {
		delete(m, id)
	}
	return nil
}
