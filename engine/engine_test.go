package engine

import (
	"testing"

	"github.com/pkt-cash/utxosync/pathfmt"
	"github.com/pkt-cash/utxosync/store"
)

func TestNewRejectsUnconfiguredDependencies(t *testing.T) {
	cfg := Config{
		CurrencyInfo: CurrencyInfo{GapLimit: 5, CurrencyCode: "BTC"},
		Formats:      []pathfmt.Format{pathfmt.FormatBIP84Segwit},
	}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected ConfigError for a config with no store/indexer/keymanager")
	}
}

func TestNewRejectsDuplicateFormat(t *testing.T) {
	e, _, _ := testEngine(t, 5, pathfmt.FormatBIP84Segwit)
	cfg := e.cfg
	cfg.Formats = []pathfmt.Format{pathfmt.FormatBIP84Segwit, pathfmt.FormatBIP84Segwit}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected ConfigError for a duplicated format")
	}
}

// Boundary scenario 1 via the public facade: Start() on an empty wallet
// leaves each branch at exactly gapLimit addresses and reports full
// progress.
func TestStartEmptyWalletReachesFullProgress(t *testing.T) {
	e, s, _ := testEngine(t, 10, pathfmt.FormatBIP84Segwit)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	for _, branch := range []pathfmt.Branch{pathfmt.BranchReceive, pathfmt.BranchChange} {
		n, _ := s.FetchAddressCountFromPathPartition(store.BranchKey{Format: pathfmt.FormatBIP84Segwit, ChangeIndex: branch})
		if n != 10 {
			t.Fatalf("branch %d: got %d, want 10", branch, n)
		}
	}
	emitter := e.cfg.Emitter.(*fakeEmitter)
	if emitter.lastRatio() != 1.0 {
		t.Fatalf("final ratio = %v, want 1.0", emitter.lastRatio())
	}
}

// Boundary scenario 3: getFreshAddress(change=true) on an
// Airbitz wallet falls back to changeIndex=0 since Airbitz has no change
// branch.
func TestGetFreshAddressAirbitzIgnoresChangeFlag(t *testing.T) {
	e, _, _ := testEngine(t, 5, pathfmt.FormatBIP44Legacy)
	if err := e.setLookAhead(pathfmt.FormatBIP44Legacy, false); err != nil {
		t.Fatalf("setLookAhead: %v", err)
	}
	withChange, err := e.GetFreshAddressFor(pathfmt.FormatBIP44Legacy, true)
	if err != nil {
		t.Fatalf("GetFreshAddressFor(change=true): %v", err)
	}
	withoutChange, err := e.GetFreshAddressFor(pathfmt.FormatBIP44Legacy, false)
	if err != nil {
		t.Fatalf("GetFreshAddressFor(change=false): %v", err)
	}
	if withChange.PublicAddress != withoutChange.PublicAddress {
		t.Fatalf("Airbitz change=true produced a different address: %s vs %s", withChange.PublicAddress, withoutChange.PublicAddress)
	}
}

// Boundary scenario 4: getFreshAddress on a native-segwit
// wallet returns both the wrapped-segwit form (publicAddress) and the
// native form (segwitAddress).
func TestGetFreshAddressNativeSegwitReturnsBoth(t *testing.T) {
	e, _, _ := testEngine(t, 5, pathfmt.FormatBIP84Segwit, pathfmt.FormatBIP49WrappedSegwit)
	if err := e.setLookAhead(pathfmt.FormatBIP84Segwit, false); err != nil {
		t.Fatalf("setLookAhead segwit: %v", err)
	}
	if err := e.setLookAhead(pathfmt.FormatBIP49WrappedSegwit, false); err != nil {
		t.Fatalf("setLookAhead wrapped: %v", err)
	}
	result, err := e.GetFreshAddressFor(pathfmt.FormatBIP84Segwit, false)
	if err != nil {
		t.Fatalf("GetFreshAddressFor: %v", err)
	}
	if result.SegwitAddress == "" {
		t.Fatal("segwitAddress not set")
	}
	if result.PublicAddress == "" || result.PublicAddress == result.SegwitAddress {
		t.Fatalf("publicAddress should be the distinct wrapped-segwit form, got %q == %q", result.PublicAddress, result.SegwitAddress)
	}
}

func TestAddGapLimitAddressesSkipsPathGating(t *testing.T) {
	e, s, _ := testEngine(t, 5, pathfmt.FormatBIP84Segwit)
	addr, err := e.addressAt(pathfmt.FormatBIP84Segwit, pathfmt.BranchReceive, 50)
	if err != nil {
		t.Fatalf("addressAt: %v", err)
	}
	if err := e.AddGapLimitAddresses([]string{addr}); err != nil {
		t.Fatalf("AddGapLimitAddresses: %v", err)
	}
	sp, err := e.cfg.KeyMgr.AddressToScriptPubkey(addr)
	if err != nil {
		t.Fatalf("AddressToScriptPubkey: %v", err)
	}
	rec, err := s.FetchAddressByScriptPubkey(sp)
	if err != nil || rec == nil {
		t.Fatalf("record not saved: %v", err)
	}
	if rec.HasPath() {
		t.Fatal("externally-imported record should have no path")
	}
}

func TestMarkAddressUsedSetsFlag(t *testing.T) {
	e, s, _ := testEngine(t, 5, pathfmt.FormatBIP84Segwit)
	if err := e.setLookAhead(pathfmt.FormatBIP84Segwit, false); err != nil {
		t.Fatalf("setLookAhead: %v", err)
	}
	addr, err := e.addressAt(pathfmt.FormatBIP84Segwit, pathfmt.BranchReceive, 0)
	if err != nil {
		t.Fatalf("addressAt: %v", err)
	}
	if err := e.MarkAddressUsed(addr); err != nil {
		t.Fatalf("MarkAddressUsed: %v", err)
	}
	sp, _ := e.cfg.KeyMgr.AddressToScriptPubkey(addr)
	rec, err := s.FetchAddressByScriptPubkey(sp)
	if err != nil || rec == nil || !rec.Used {
		t.Fatalf("record not marked used: %+v, err=%v", rec, err)
	}
}
