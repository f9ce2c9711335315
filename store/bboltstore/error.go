// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bboltstore

import (
	"github.com/pkt-cash/pktd/btcutil/er"
)

// Err identifies a category of bbolt-backed store error, mirroring
// pktwallet/walletdb's Err ErrorType.
var Err = er.NewErrorType("bboltstore.Err")

var (
	ErrDbOpen    = Err.CodeWithDetail("ErrDbOpen", "failed to open the database file")
	ErrBucket    = Err.CodeWithDetail("ErrBucket", "bucket missing or could not be created")
	ErrEncode    = Err.CodeWithDetail("ErrEncode", "failed to encode record")
	ErrDecode    = Err.CodeWithDetail("ErrDecode", "failed to decode record")
	ErrTx        = Err.CodeWithDetail("ErrTx", "transaction failed")
)
