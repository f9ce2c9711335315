// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bboltstore is a store.Processor backed by a single embedded bbolt
// database file, adapted from the bucket/transaction idiom of
// pktwallet/walletdb (see driver_test.go's Update/View/CreateTopLevelBucket
// pattern) onto coreos/bbolt directly rather than through walletdb's
// multi-backend driver registry, since this engine only ever needs one
// storage backend.
package bboltstore

import (
	"encoding/binary"
	"encoding/json"
	"strings"

	bolt "github.com/coreos/bbolt"
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

var (
	bucketAddresses   = []byte("addresses")
	bucketAddrByPath  = []byte("address-by-path")
	bucketBranchCount = []byte("branch-count")
	bucketTxs         = []byte("transactions")
	bucketUtxos       = []byte("utxos")
)

// Store is a store.Processor implementation on top of a bbolt database
// file.
type Store struct {
	db *bolt.DB
}

var _ store.Processor = (*Store)(nil)

// Open creates or opens the database file at path and ensures the top-level
// buckets exist, the way pktwallet/walletdb.Create/Open does for a wallet's
// waddrmgr/wtxmgr namespaces.
func Open(path string) (*Store, er.R) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, ErrDbOpen.New(path, er.E(err))
	}
	s := &Store{db: db}
	txErr := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAddresses, bucketAddrByPath, bucketBranchCount, bucketTxs, bucketUtxos} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		db.Close()
		return nil, ErrBucket.New("", er.E(txErr))
	}
	log.Infof("opened bbolt store at %s", path)
	return s, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() er.R {
	if err := s.db.Close(); err != nil {
		return ErrTx.New("close", er.E(err))
	}
	log.Info("bbolt store closed")
	return nil
}

func pathKey(p pathfmt.Path) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.Format))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.ChangeIndex))
	binary.BigEndian.PutUint32(buf[8:12], p.AddrIndex)
	return buf
}

func branchKey(k store.BranchKey) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(k.Format))
	binary.BigEndian.PutUint32(buf[4:8], uint32(k.ChangeIndex))
	return buf
}

func (s *Store) FetchAddressByScriptPubkey(scriptPubkey string) (*store.AddressRecord, er.R) {
	var rec *store.AddressRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAddresses).Get([]byte(scriptPubkey))
		if raw == nil {
			return nil
		}
		rec = &store.AddressRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, ErrDecode.New(scriptPubkey, er.E(err))
	}
	return rec, nil
}

func (s *Store) FetchAddressCountFromPathPartition(key store.BranchKey) (uint32, er.R) {
	var count uint32
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBranchCount).Get(branchKey(key))
		if raw != nil {
			count = binary.BigEndian.Uint32(raw)
		}
		return nil
	})
	if err != nil {
		return 0, ErrTx.New("", er.E(err))
	}
	return count, nil
}

func (s *Store) FetchScriptPubkeyByPath(path pathfmt.Path) (string, bool, er.R) {
	var sp string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAddrByPath).Get(pathKey(path))
		if raw != nil {
			sp = string(raw)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, ErrTx.New("", er.E(err))
	}
	return sp, found, nil
}

func (s *Store) SaveAddress(rec *store.AddressRecord) er.R {
	if rec == nil {
		return store.ErrInconsistent.New("nil address record", nil)
	}
	raw, jerr := json.Marshal(rec)
	if jerr != nil {
		return ErrEncode.New(rec.ScriptPubkey, er.E(jerr))
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketAddresses).Put([]byte(rec.ScriptPubkey), raw); err != nil {
			return err
		}
		if rec.Path == nil {
			return nil
		}
		if err := tx.Bucket(bucketAddrByPath).Put(pathKey(*rec.Path), []byte(rec.ScriptPubkey)); err != nil {
			return err
		}
		key := store.BranchKey{Format: rec.Path.Format, ChangeIndex: rec.Path.ChangeIndex}
		bk := branchKey(key)
		b := tx.Bucket(bucketBranchCount)
		cur := uint32(0)
		if raw := b.Get(bk); raw != nil {
			cur = binary.BigEndian.Uint32(raw)
		}
		if rec.Path.AddrIndex+1 > cur {
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, rec.Path.AddrIndex+1)
			return b.Put(bk, buf)
		}
		return nil
	})
	if err != nil {
		return ErrTx.New("save address", er.E(err))
	}
	return nil
}

func (s *Store) UpdateAddressByScriptPubkey(scriptPubkey string, mutate func(rec *store.AddressRecord)) er.R {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAddresses)
		raw := b.Get([]byte(scriptPubkey))
		if raw == nil {
			return store.ErrInconsistent.New("update of unknown scriptPubkey "+scriptPubkey, nil).Native()
		}
		rec := &store.AddressRecord{}
		if err := json.Unmarshal(raw, rec); err != nil {
			return err
		}
		mutate(rec)
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(scriptPubkey), updated)
	})
	if err != nil {
		return ErrTx.New("update address", er.E(err))
	}
	return nil
}

func (s *Store) FetchTransaction(txid string) (*store.TransactionRecord, er.R) {
	var rec *store.TransactionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTxs).Get([]byte(txid))
		if raw == nil {
			return nil
		}
		rec = &store.TransactionRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, ErrDecode.New(txid, er.E(err))
	}
	return rec, nil
}

func (s *Store) SaveTransaction(t *store.TransactionRecord) er.R {
	if t == nil {
		return store.ErrInconsistent.New("nil transaction record", nil)
	}
	raw, jerr := json.Marshal(t)
	if jerr != nil {
		return ErrEncode.New(t.Txid, er.E(jerr))
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTxs).Put([]byte(t.Txid), raw)
	})
	if err != nil {
		return ErrTx.New("save transaction", er.E(err))
	}
	return nil
}

func utxoKey(scriptPubkey, id string) []byte {
	return []byte(scriptPubkey + "\x00" + id)
}

func (s *Store) FetchUtxosByScriptPubkey(scriptPubkey string) ([]store.UTXORecord, er.R) {
	var out []store.UTXORecord
	prefix := []byte(scriptPubkey + "\x00")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketUtxos).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var u store.UTXORecord
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			out = append(out, u)
		}
		return nil
	})
	if err != nil {
		return nil, ErrDecode.New(scriptPubkey, er.E(err))
	}
	return out, nil
}

func (s *Store) SaveUtxo(u *store.UTXORecord) er.R {
	if u == nil {
		return store.ErrInconsistent.New("nil utxo record", nil)
	}
	raw, jerr := json.Marshal(u)
	if jerr != nil {
		return ErrEncode.New(u.ID(), er.E(jerr))
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUtxos).Put(utxoKey(u.ScriptPubkey, u.ID()), raw)
	})
	if err != nil {
		return ErrTx.New("save utxo", er.E(err))
	}
	return nil
}

// RemoveUtxo deletes a UTXO by its ID across all scriptPubkeys. The store
// keys UTXOs by scriptPubkey-prefixed composite key so removal by bare ID
// requires a scan; callers that already know the scriptPubkey should prefer
// scanning FetchUtxosByScriptPubkey and deleting by the returned record.
func (s *Store) RemoveUtxo(id string) er.R {
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketUtxos).Cursor()
		suffix := "\x00" + id
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if strings.HasSuffix(string(k), suffix) {
				return c.Delete()
			}
		}
		return nil
	})
	if err != nil {
		return ErrTx.New("remove utxo", er.E(err))
	}
	return nil
}
