// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/pkt-cash/pktd/btcutil/er"
)

// SyncErr identifies a category of sync-engine error.
var SyncErr = er.NewErrorType("engine.SyncErr")

var (
	// ErrTransientNetwork: the indexer was unreachable or a call timed
	// out. Surfaced to the caller; retrying is the server-pool manager's
	// concern, outside this module.
	ErrTransientNetwork = SyncErr.Code("ErrTransientNetwork")

	// ErrMalformedIndexerData: the indexer's response was missing fields
	// or had an inconsistent size. Fails the one address; the scan
	// continues for its siblings.
	ErrMalformedIndexerData = SyncErr.Code("ErrMalformedIndexerData")

	// ErrInconsistentStoreState: a scriptPubkey the engine just derived
	// has no AddressRecord, or a known path has no scriptPubkey. Fatal
	// for the enclosing operation.
	ErrInconsistentStoreState = SyncErr.Code("ErrInconsistentStoreState")

	// ErrConfig: an unsupported format or unknown purpose type. Fatal at
	// Start().
	ErrConfig = SyncErr.Code("ErrConfig")
)
