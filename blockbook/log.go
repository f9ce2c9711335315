// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockbook

import (
	"github.com/pkt-cash/pktd/pktlog"
)

var log pktlog.Logger

func init() {
	DisableLog()
}

// DisableLog disables all library log output, same default as
// pktwallet/wallet/log.go.
func DisableLog() {
	UseLogger(pktlog.Disabled)
}

// UseLogger directs this package's log output at logger.
func UseLogger(logger pktlog.Logger) {
	log = logger
}
