package keymanager_test

import (
	"encoding/hex"
	"testing"

	"github.com/pkt-cash/pktd/btcutil/hdkeychain"
	"github.com/pkt-cash/pktd/chaincfg"

	"github.com/pkt-cash/utxosync/keymanager"
	"github.com/pkt-cash/utxosync/pathfmt"
)

func testAccountKey(t *testing.T) *hdkeychain.ExtendedKey {
	t.Helper()
	seed := make([]byte, hdkeychain.RecommendedSeedLen)
	for i := range seed {
		seed[i] = byte(i)
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("NewMaster: unexpected error: %v", err)
	}
	neutered, err := master.Neuter()
	if err != nil {
		t.Fatalf("Neuter: unexpected error: %v", err)
	}
	return neutered
}

func TestGetScriptPubkeyDistinctPerIndex(t *testing.T) {
	acctKey := testAccountKey(t)
	km := keymanager.New(&chaincfg.MainNetParams, map[pathfmt.Format]*hdkeychain.ExtendedKey{
		pathfmt.FormatBIP84Segwit: acctKey,
	})

	p0 := pathfmt.Path{Format: pathfmt.FormatBIP84Segwit, ChangeIndex: pathfmt.BranchReceive, AddrIndex: 0}
	p1 := pathfmt.Path{Format: pathfmt.FormatBIP84Segwit, ChangeIndex: pathfmt.BranchReceive, AddrIndex: 1}

	s0, err := km.GetScriptPubkey(p0)
	if err != nil {
		t.Fatalf("GetScriptPubkey(0): unexpected error: %v", err)
	}
	s1, err := km.GetScriptPubkey(p1)
	if err != nil {
		t.Fatalf("GetScriptPubkey(1): unexpected error: %v", err)
	}
	if string(s0.ScriptPubkey) == string(s1.ScriptPubkey) {
		t.Fatal("distinct address indices produced identical scripts")
	}
}

func TestWrappedSegwitHasRedeemScript(t *testing.T) {
	acctKey := testAccountKey(t)
	km := keymanager.New(&chaincfg.MainNetParams, map[pathfmt.Format]*hdkeychain.ExtendedKey{
		pathfmt.FormatBIP49WrappedSegwit: acctKey,
	})
	p := pathfmt.Path{Format: pathfmt.FormatBIP49WrappedSegwit, ChangeIndex: pathfmt.BranchReceive, AddrIndex: 0}
	sd, err := km.GetScriptPubkey(p)
	if err != nil {
		t.Fatalf("GetScriptPubkey: unexpected error: %v", err)
	}
	if len(sd.RedeemScript) == 0 {
		t.Fatal("wrapped-segwit script data missing a redeem script")
	}
}

func TestAddressScriptPubkeyRoundTrip(t *testing.T) {
	acctKey := testAccountKey(t)
	km := keymanager.New(&chaincfg.MainNetParams, map[pathfmt.Format]*hdkeychain.ExtendedKey{
		pathfmt.FormatBIP32Legacy: acctKey,
	})
	p := pathfmt.Path{Format: pathfmt.FormatBIP32Legacy, ChangeIndex: pathfmt.BranchReceive, AddrIndex: 0}
	sd, err := km.GetScriptPubkey(p)
	if err != nil {
		t.Fatalf("GetScriptPubkey: unexpected error: %v", err)
	}
	addr, err := km.ScriptPubkeyToAddress(hex.EncodeToString(sd.ScriptPubkey))
	if err != nil {
		t.Fatalf("ScriptPubkeyToAddress: unexpected error: %v", err)
	}
	sp, err := km.AddressToScriptPubkey(addr)
	if err != nil {
		t.Fatalf("AddressToScriptPubkey: unexpected error: %v", err)
	}
	if sp != hex.EncodeToString(sd.ScriptPubkey) {
		t.Fatalf("round trip mismatch: got %s, want %s", sp, hex.EncodeToString(sd.ScriptPubkey))
	}
}
