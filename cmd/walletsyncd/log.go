// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/pktlog"

	"github.com/pkt-cash/utxosync/blockbook"
	"github.com/pkt-cash/utxosync/engine"
	"github.com/pkt-cash/utxosync/store/bboltstore"
)

// logWriter sends logging output to both standard output and the write end
// of a log rotator, mirroring pktwallet/log.go's logWriter.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = pktlog.NewBackend(logWriter{})

	log     = backendLog.Logger("SYNC")
	bbokLog = backendLog.Logger("BBOK")
	boltLog = backendLog.Logger("BOLT")

	logRotator *rotator.Rotator
)

// wireLoggers hands each package its subsystem logger. Call once at
// startup after log level flags have been applied.
func wireLoggers() {
	engine.UseLogger(log)
	blockbook.UseLogger(bbokLog)
	bboltstore.UseLogger(boltLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger,
// same shape as pktwallet/log.go's map.
var subsystemLoggers = map[string]pktlog.Logger{
	"SYNC": log,
	"BBOK": bbokLog,
	"BOLT": boltLog,
}

// setLogLevel sets the logging level for one subsystem. Invalid subsystems
// are ignored (pktwallet/log.go "setLogLevel").
func setLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := pktlog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels applies logLevel to every subsystem.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// initLogRotator opens a rotating log file at logFile, via
// jrick/logrotate's rotator.New.
func initLogRotator(logFile string) er.R {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return er.E(err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return er.E(err)
	}
	logRotator = r
	return nil
}
