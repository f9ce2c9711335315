// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pathfmt maps a wallet's declared address formats onto BIP-43
// purpose types and the HD derivation branches each purpose supports.
package pathfmt

import (
	"github.com/pkt-cash/pktd/btcutil/er"
)

// Format identifies one of the address encodings a wallet descriptor may
// declare. A wallet may declare more than one; every declared format is
// synchronized independently.
type Format int

const (
	// FormatBIP32Legacy is plain legacy P2PKH derived under BIP-32 (no
	// hardened purpose branch).
	FormatBIP32Legacy Format = iota
	// FormatBIP44Legacy is legacy P2PKH derived under BIP-44, a.k.a.
	// "Airbitz" in wallets that inherited Airbitz-style derivation.
	FormatBIP44Legacy
	// FormatBIP49WrappedSegwit is P2SH-wrapped P2WPKH derived under BIP-49.
	FormatBIP49WrappedSegwit
	// FormatBIP84Segwit is native P2WPKH derived under BIP-84.
	FormatBIP84Segwit
)

func (f Format) String() string {
	switch f {
	case FormatBIP32Legacy:
		return "bip32-legacy"
	case FormatBIP44Legacy:
		return "bip44-legacy"
	case FormatBIP49WrappedSegwit:
		return "bip49-wrapped-segwit"
	case FormatBIP84Segwit:
		return "bip84-segwit"
	default:
		return "unknown"
	}
}

// PurposeType is the BIP-43 derivation purpose marker a Format maps to.
type PurposeType int

const (
	PurposeLegacy PurposeType = iota
	PurposeAirbitz
	PurposeWrappedSegwit
	PurposeSegwit
)

// FormatErr identifies configuration errors in path algebra. Fatal at
// engine start.
var FormatErr = er.NewErrorType("pathfmt.FormatErr")

var ErrUnsupportedFormat = FormatErr.Code("ErrUnsupportedFormat")

// Branch is an HD derivation branch: receive (0) or change (1).
type Branch uint32

const (
	BranchReceive Branch = 0
	BranchChange  Branch = 1
)

// PurposeOf returns the BIP-43 purpose type a Format derives under.
func PurposeOf(f Format) (PurposeType, er.R) {
	switch f {
	case FormatBIP32Legacy:
		return PurposeLegacy, nil
	case FormatBIP44Legacy:
		return PurposeAirbitz, nil
	case FormatBIP49WrappedSegwit:
		return PurposeWrappedSegwit, nil
	case FormatBIP84Segwit:
		return PurposeSegwit, nil
	default:
		return 0, ErrUnsupportedFormat.New("unrecognized address format", nil)
	}
}

// SupportedBranches returns the branches a format's purpose type supports.
// Legacy and Airbitz purposes only ever use the receive branch; wrapped and
// native segwit support both receive and change.
func SupportedBranches(f Format) ([]Branch, er.R) {
	purpose, err := PurposeOf(f)
	if err != nil {
		return nil, err
	}
	switch purpose {
	case PurposeLegacy, PurposeAirbitz:
		return []Branch{BranchReceive}, nil
	default:
		return []Branch{BranchReceive, BranchChange}, nil
	}
}

// SupportsBranch reports whether a format's purpose supports the given
// branch, without allocating the full branch list.
func SupportsBranch(f Format, b Branch) bool {
	purpose, err := PurposeOf(f)
	if err != nil {
		return false
	}
	if purpose == PurposeLegacy || purpose == PurposeAirbitz {
		return b == BranchReceive
	}
	return b == BranchReceive || b == BranchChange
}

// Path fully addresses one derived key: which format it belongs to, which
// branch of that format's HD tree, and its index along that branch.
type Path struct {
	Format      Format
	ChangeIndex Branch
	AddrIndex   uint32
}
