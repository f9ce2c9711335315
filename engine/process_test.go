package engine

import (
	"testing"
	"time"

	"github.com/pkt-cash/utxosync/blockbook"
	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

// Boundary scenario 2: wrapped-segwit wallet, gapLimit=5,
// indexer reports idx=3/branch=0 used with balance 1500. After
// processAddress, the record is used=true, balance=1500, and the used
// flip triggers a lookahead re-extension to 3+1+5 = 9 addresses.
func TestProcessAddressBalanceAndUsedFlip(t *testing.T) {
	e, s, idx := testEngine(t, 5, pathfmt.FormatBIP49WrappedSegwit)
	if err := e.setLookAhead(pathfmt.FormatBIP49WrappedSegwit, false); err != nil {
		t.Fatalf("setLookAhead: %v", err)
	}

	path := pathfmt.Path{Format: pathfmt.FormatBIP49WrappedSegwit, ChangeIndex: pathfmt.BranchReceive, AddrIndex: 3}
	sp, found, err := s.FetchScriptPubkeyByPath(path)
	if err != nil || !found {
		t.Fatalf("no record at index 3: %v", err)
	}
	address, err := e.cfg.KeyMgr.ScriptPubkeyToAddress(sp)
	if err != nil {
		t.Fatalf("ScriptPubkeyToAddress: %v", err)
	}

	idx.set(address, addressState{balance: "1500", txs: 2})

	if err := e.processAddress(address); err != nil {
		t.Fatalf("processAddress: %v", err)
	}

	rec, err := s.FetchAddressByScriptPubkey(sp)
	if err != nil || rec == nil {
		t.Fatalf("fetch after process: %v", err)
	}
	if !rec.Used {
		t.Fatal("record not marked used")
	}
	if rec.Balance.String() != "1500" {
		t.Fatalf("balance = %s, want 1500", rec.Balance.String())
	}

	n, _ := s.FetchAddressCountFromPathPartition(store.BranchKey{Format: pathfmt.FormatBIP49WrappedSegwit, ChangeIndex: pathfmt.BranchReceive})
	if n != 3+1+5 {
		t.Fatalf("branch length = %d, want %d", n, 3+1+5)
	}

	emitter := e.cfg.Emitter.(*fakeEmitter)
	found = false
	emitter.mu.Lock()
	for _, b := range emitter.balances {
		if b == "1500" {
			found = true
		}
	}
	emitter.mu.Unlock()
	if !found {
		t.Fatal("BalanceChanged(\"1500\") was never emitted")
	}
}

// UTXO disappearance: a UTXO the store
// has but the indexer no longer reports is removed on reconciliation.
func TestProcessAddressUtxoDisappearance(t *testing.T) {
	e, s, idx := testEngine(t, 5, pathfmt.FormatBIP84Segwit)
	if err := e.setLookAhead(pathfmt.FormatBIP84Segwit, false); err != nil {
		t.Fatalf("setLookAhead: %v", err)
	}
	path := pathfmt.Path{Format: pathfmt.FormatBIP84Segwit, ChangeIndex: pathfmt.BranchReceive, AddrIndex: 0}
	sp, _, _ := s.FetchScriptPubkeyByPath(path)
	address, _ := e.cfg.KeyMgr.ScriptPubkeyToAddress(sp)

	if err := s.SaveUtxo(&store.UTXORecord{Txid: "txA", Vout: 0, ScriptPubkey: sp}); err != nil {
		t.Fatalf("seed utxo A: %v", err)
	}
	if err := s.SaveUtxo(&store.UTXORecord{Txid: "txB", Vout: 1, ScriptPubkey: sp}); err != nil {
		t.Fatalf("seed utxo B: %v", err)
	}
	idx.set(address, addressState{utxos: []blockbook.Utxo{{Txid: "txA", Vout: 0, Value: "100"}}})

	if err := e.processAddress(address); err != nil {
		t.Fatalf("processAddress: %v", err)
	}

	remaining, err := s.FetchUtxosByScriptPubkey(sp)
	if err != nil {
		t.Fatalf("FetchUtxosByScriptPubkey: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Txid != "txA" {
		t.Fatalf("got %+v, want only txA", remaining)
	}
}

// First-visit subscription dispatches a watch and reactive pushes re-enter
// processAddress via the dispatcher's queue, not the call stack.
func TestProcessAddressReactivePush(t *testing.T) {
	e, s, idx := testEngine(t, 5, pathfmt.FormatBIP84Segwit)
	if err := e.setLookAhead(pathfmt.FormatBIP84Segwit, false); err != nil {
		t.Fatalf("setLookAhead: %v", err)
	}
	path := pathfmt.Path{Format: pathfmt.FormatBIP84Segwit, ChangeIndex: pathfmt.BranchReceive, AddrIndex: 0}
	sp, _, _ := s.FetchScriptPubkeyByPath(path)
	address, _ := e.cfg.KeyMgr.ScriptPubkeyToAddress(sp)

	if err := e.processAddress(address); err != nil {
		t.Fatalf("processAddress: %v", err)
	}

	idx.set(address, addressState{balance: "42", txs: 1})
	idx.push(address)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, _ := s.FetchAddressByScriptPubkey(sp)
		if rec != nil && rec.Used {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("reactive push never marked the address used")
}
