// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keymanager is the pure, side-effect-free library of key
// derivation and script/address encoding functions the sync engine treats
// as an external collaborator. It builds on hdkeychain for HD derivation,
// txscript for script construction/extraction, and btcutil for address
// encoding, the same libraries pktwallet/waddrmgr uses for this.
package keymanager

import (
	"encoding/hex"

	"github.com/pkt-cash/pktd/btcutil"
	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/btcutil/hdkeychain"
	"github.com/pkt-cash/pktd/chaincfg"
	"github.com/pkt-cash/pktd/txscript"

	"github.com/pkt-cash/utxosync/pathfmt"
)

// Err identifies a category of keymanager error.
var Err = er.NewErrorType("keymanager.Err")

var (
	ErrKeyChain         = Err.Code("ErrKeyChain")
	ErrInvalidAddress   = Err.Code("ErrInvalidAddress")
	ErrUnsupportedFormat = Err.Code("ErrUnsupportedFormat")
)

// ScriptData is what GetScriptPubkey returns for a derived path: the
// locking script plus, for P2SH-wrapped formats, the redeem script needed
// to spend it.
type ScriptData struct {
	ScriptPubkey []byte
	RedeemScript []byte // only set for FormatBIP49WrappedSegwit
}

// KeyManager derives scripts and addresses for one wallet's declared
// formats from its account-level extended public keys. It never needs
// private keys: the sync engine only watches addresses, it never signs.
type KeyManager struct {
	params *chaincfg.Params
	// accountKeys holds, per declared format, the account-level extended
	// public key from which receive (0) and change (1) branches are
	// derived via two further non-hardened Child calls.
	accountKeys map[pathfmt.Format]*hdkeychain.ExtendedKey
}

// New constructs a KeyManager for a wallet descriptor's declared formats.
// accountKeys must contain one neutered (public-only) extended key per
// format the wallet declared.
func New(params *chaincfg.Params, accountKeys map[pathfmt.Format]*hdkeychain.ExtendedKey) *KeyManager {
	return &KeyManager{params: params, accountKeys: accountKeys}
}

func (k *KeyManager) deriveChildPubKey(path pathfmt.Path) (*hdkeychain.ExtendedKey, er.R) {
	acctKey, ok := k.accountKeys[path.Format]
	if !ok {
		return nil, ErrUnsupportedFormat.New("no account key for format "+path.Format.String(), nil)
	}
	branchKey, err := acctKey.Child(uint32(path.ChangeIndex))
	if err != nil {
		return nil, ErrKeyChain.New("deriving branch", err)
	}
	addrKey, err := branchKey.Child(path.AddrIndex)
	if err != nil {
		return nil, ErrKeyChain.New("deriving address index", err)
	}
	return addrKey, nil
}

// GetScriptPubkey derives the locking script (and, where applicable, the
// redeem script) for one HD path.
func (k *KeyManager) GetScriptPubkey(path pathfmt.Path) (ScriptData, er.R) {
	addrKey, err := k.deriveChildPubKey(path)
	if err != nil {
		return ScriptData{}, err
	}
	pubKey, err := addrKey.ECPubKey()
	if err != nil {
		return ScriptData{}, ErrKeyChain.New("extracting public key", err)
	}
	pkHash := btcutil.Hash160(pubKey.SerializeCompressed())

	switch path.Format {
	case pathfmt.FormatBIP32Legacy, pathfmt.FormatBIP44Legacy:
		addr, err := btcutil.NewAddressPubKeyHash(pkHash, k.params)
		if err != nil {
			return ScriptData{}, ErrInvalidAddress.New("p2pkh", err)
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return ScriptData{}, ErrInvalidAddress.New("p2pkh script", err)
		}
		return ScriptData{ScriptPubkey: script}, nil

	case pathfmt.FormatBIP84Segwit:
		addr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, k.params)
		if err != nil {
			return ScriptData{}, ErrInvalidAddress.New("p2wpkh", err)
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return ScriptData{}, ErrInvalidAddress.New("p2wpkh script", err)
		}
		return ScriptData{ScriptPubkey: script}, nil

	case pathfmt.FormatBIP49WrappedSegwit:
		witAddr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, k.params)
		if err != nil {
			return ScriptData{}, ErrInvalidAddress.New("p2wpkh", err)
		}
		redeemScript, err := txscript.PayToAddrScript(witAddr)
		if err != nil {
			return ScriptData{}, ErrInvalidAddress.New("redeem script", err)
		}
		shAddr, err := btcutil.NewAddressScriptHash(redeemScript, k.params)
		if err != nil {
			return ScriptData{}, ErrInvalidAddress.New("p2sh", err)
		}
		script, err := txscript.PayToAddrScript(shAddr)
		if err != nil {
			return ScriptData{}, ErrInvalidAddress.New("p2sh script", err)
		}
		return ScriptData{ScriptPubkey: script, RedeemScript: redeemScript}, nil

	default:
		return ScriptData{}, ErrUnsupportedFormat.New(path.Format.String(), nil)
	}
}

// ScriptPubkeyToAddress renders a hex-encoded scriptPubkey as the textual
// address a user or the indexer would recognize.
func (k *KeyManager) ScriptPubkeyToAddress(scriptPubkeyHex string) (string, er.R) {
	script, herr := hex.DecodeString(scriptPubkeyHex)
	if herr != nil {
		return "", ErrInvalidAddress.New("invalid hex", er.E(herr))
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, k.params)
	if err != nil {
		return "", ErrInvalidAddress.New("extracting address", err)
	}
	if len(addrs) == 0 {
		return "", ErrInvalidAddress.New("no address for script", nil)
	}
	return addrs[0].EncodeAddress(), nil
}

// AddressToScriptPubkey decodes a textual address into its hex-encoded
// locking script.
func (k *KeyManager) AddressToScriptPubkey(address string) (string, er.R) {
	addr, err := btcutil.DecodeAddress(address, k.params)
	if err != nil {
		return "", ErrInvalidAddress.New(address, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", ErrInvalidAddress.New("building script for "+address, err)
	}
	return hex.EncodeToString(script), nil
}

// ValidScriptPubkeyFromAddress reports whether address decodes under the
// KeyManager's network and, if so, returns its hex-encoded scriptPubkey.
func (k *KeyManager) ValidScriptPubkeyFromAddress(address string) (string, bool) {
	sp, err := k.AddressToScriptPubkey(address)
	if err != nil {
		return "", false
	}
	return sp, true
}
