package engine

import (
	"sync"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/btcutil/hdkeychain"
	"github.com/pkt-cash/pktd/chaincfg"

	"github.com/pkt-cash/utxosync/blockbook"
	"github.com/pkt-cash/utxosync/keymanager"
	"github.com/pkt-cash/utxosync/pathfmt"
)

// testKeyManager builds a real keymanager.KeyManager over a deterministic
// master key, one per declared format, so engine tests exercise real script
// derivation rather than a mock.
func testKeyManager(formats ...pathfmt.Format) *keymanager.KeyManager {
	seed := make([]byte, hdkeychain.RecommendedSeedLen)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		panic(err)
	}
	neutered, err := master.Neuter()
	if err != nil {
		panic(err)
	}
	keys := make(map[pathfmt.Format]*hdkeychain.ExtendedKey, len(formats))
	for _, f := range formats {
		keys[f] = neutered
	}
	return keymanager.New(&chaincfg.MainNetParams, keys)
}

// addressState is one fake indexer's canned view of an address.
type addressState struct {
	balance     string
	unconfirmed string
	txs         int
	unconfirmedTxs int
	transactions []blockbook.RawTx
	utxos       []blockbook.Utxo
}

// fakeIndexer is a controllable, in-memory stand-in for blockbook.Indexer.
type fakeIndexer struct {
	mu    sync.Mutex
	state map[string]addressState
	subs  map[string]blockbook.WatchCallback
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{
		state: make(map[string]addressState),
		subs:  make(map[string]blockbook.WatchCallback),
	}
}

func (f *fakeIndexer) set(address string, s addressState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[address] = s
}

func (f *fakeIndexer) FetchAddress(address string, opts blockbook.FetchAddressOptions) (*blockbook.AddressDetails, er.R) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state[address]
	return &blockbook.AddressDetails{
		Balance:            zeroIfEmptyStr(s.balance),
		UnconfirmedBalance: zeroIfEmptyStr(s.unconfirmed),
		Txs:                s.txs,
		UnconfirmedTxs:     s.unconfirmedTxs,
		Transactions:       s.transactions,
		TotalPages:         1,
	}, nil
}

func (f *fakeIndexer) FetchAddressUtxos(address string) ([]blockbook.Utxo, er.R) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[address].utxos, nil
}

func (f *fakeIndexer) FetchTransaction(txid string) (*blockbook.RawTx, er.R) {
	return &blockbook.RawTx{Txid: txid}, nil
}

func (f *fakeIndexer) WatchAddresses(addresses []string, cb blockbook.WatchCallback) er.R {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range addresses {
		f.subs[a] = cb
	}
	return nil
}

// push simulates an indexer notification that address changed.
func (f *fakeIndexer) push(address string) {
	f.mu.Lock()
	cb := f.subs[address]
	f.mu.Unlock()
	if cb != nil {
		cb(address)
	}
}

func zeroIfEmptyStr(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

var _ blockbook.Indexer = (*fakeIndexer)(nil)

// fakeEmitter collects every event the engine emits, for assertions.
type fakeEmitter struct {
	mu          sync.Mutex
	ratios      []float64
	balances    []string
	txidBatches []map[string]int64
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{}
}

func (e *fakeEmitter) AddressesChecked(ratio float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ratios = append(e.ratios, ratio)
}

func (e *fakeEmitter) BalanceChanged(currencyCode, balance string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances = append(e.balances, balance)
}

func (e *fakeEmitter) TxidsChanged(changed map[string]int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txidBatches = append(e.txidBatches, changed)
}

func (e *fakeEmitter) lastRatio() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.ratios) == 0 {
		return 0
	}
	return e.ratios[len(e.ratios)-1]
}
