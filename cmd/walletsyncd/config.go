// Copyright (c) 2021 The utxosync developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"

	"github.com/pkt-cash/pktd/btcutil"
	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/chaincfg"

	"github.com/pkt-cash/utxosync/pathfmt"
)

const (
	defaultConfigFilename = "walletsyncd.conf"
	defaultLogLevel       = "info"
	defaultLogFilename    = "walletsyncd.log"
	defaultGapLimit       = 20
	defaultCurrencyCode   = "BTC"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("walletsyncd", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, "logs")
)

// config mirrors pktwallet's own flat go-flags shape (AppDataDir,
// config-file path, testnet selector, debug level) adapted to this
// daemon's one job: running the sync engine against one account's xpubs.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir string `short:"A" long:"appdata" description:"Application data directory"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	TestNet3 bool `long:"testnet" description:"Use the test network"`

	IndexerURL   string   `long:"indexerurl" description:"Blockbook WebSocket endpoint" required:"true"`
	GapLimit     uint32   `long:"gaplimit" description:"Address gap limit"`
	CurrencyCode string   `long:"currencycode" description:"Currency code attached to balance events"`
	Formats      []string `long:"format" description:"Address format to sync: legacy, airbitz, wrapped-segwit, segwit (repeatable)"`
	AccountXpub  string   `long:"xpub" description:"Account-level extended public key, applied to every declared format" required:"true"`

	activeNet *chaincfg.Params
	formats   []pathfmt.Format
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Clean(os.ExpandEnv(path))
}

func parseFormat(s string) (pathfmt.Format, er.R) {
	switch s {
	case "legacy":
		return pathfmt.FormatBIP32Legacy, nil
	case "airbitz":
		return pathfmt.FormatBIP44Legacy, nil
	case "wrapped-segwit":
		return pathfmt.FormatBIP49WrappedSegwit, nil
	case "segwit":
		return pathfmt.FormatBIP84Segwit, nil
	default:
		return 0, pathfmt.ErrUnsupportedFormat.New("unrecognized --format "+s, nil)
	}
}

// loadConfig reads flags and the ini-style config file the same way
// pktwallet's loadConfig does, applying defaults first so the config file
// and command line can each override them in turn.
func loadConfig() (*config, []string, er.R) {
	cfg := config{
		DebugLevel:   defaultLogLevel,
		AppDataDir:   defaultAppDataDir,
		GapLimit:     defaultGapLimit,
		CurrencyCode: defaultCurrencyCode,
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	if _, errr := preParser.Parse(); errr != nil {
		if e, ok := errr.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, er.E(errr)
	}

	if preCfg.AppDataDir != "" {
		cfg.AppDataDir = cleanAndExpandPath(preCfg.AppDataDir)
	}
	cfg.ConfigFile = defaultConfigFile
	if preCfg.ConfigFile != "" {
		cfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if errr := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); errr != nil {
		if _, ok := errr.(*os.PathError); !ok {
			return nil, nil, er.E(errr)
		}
	}
	remaining, errr := parser.Parse()
	if errr != nil {
		if e, ok := errr.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, er.E(errr)
	}

	cfg.activeNet = &chaincfg.MainNetParams
	if cfg.TestNet3 {
		cfg.activeNet = &chaincfg.TestNet3Params
	}

	if len(cfg.Formats) == 0 {
		cfg.Formats = []string{"segwit"}
	}
	for _, f := range cfg.Formats {
		pf, err := parseFormat(f)
		if err != nil {
			return nil, nil, err
		}
		cfg.formats = append(cfg.formats, pf)
	}

	if cfg.GapLimit == 0 {
		return nil, nil, er.Errorf("gaplimit must be positive")
	}

	return &cfg, remaining, nil
}
