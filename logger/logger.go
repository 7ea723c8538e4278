// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires the observer's per-subsystem loggers to a shared
// backend that writes to stdout and a rotating log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags. One logger is created per tag; add a new entry here and to
// subsystemLoggers when a new subsystem needs its own logger.
const (
	TagObserver   = "OBSV" // BitcoinProcessor
	TagClient     = "CLNT" // BitcoinClient (JSON-RPC)
	TagBlockFile  = "BLKF" // RawBlockFileParser
	TagStore      = "STOR" // TransactionStore / BlockMetadataStore / ServiceStateStore
	TagSidetreeTx = "SDTX" // SidetreeTransactionParser
	TagFee        = "FEE " // NormalizedFeeCalculator / SlidingWindowQuantileCalculator
	TagSpending   = "SPND" // SpendingMonitor
	TagLock       = "LOCK" // LockResolver / LockMonitor
	TagIPFS       = "IPFS" // IPFS content-store collaborator
	TagConfig     = "CNFG" // configuration parsing
)

var (
	// LogRotator is the rotating log file output. It must be closed on
	// application shutdown.
	LogRotator *rotator.Rotator

	backendLog *btclog.Backend
	initiated  bool

	subsystemLoggers = map[string]btclog.Logger{}
)

// logWriter fans writes out to stdout and, once initiated, to the rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if initiated {
		LogRotator.Write(p)
	}
	return len(p), nil
}

func init() {
	backendLog = btclog.NewBackend(logWriter{})
	for _, tag := range []string{
		TagObserver, TagClient, TagBlockFile, TagStore, TagSidetreeTx,
		TagFee, TagSpending, TagLock, TagIPFS, TagConfig,
	} {
		subsystemLoggers[tag] = backendLog.Logger(tag)
	}
}

// Logger returns the logger for the given subsystem tag, creating it from
// the shared backend if it has not been requested before.
func Logger(tag string) btclog.Logger {
	if l, ok := subsystemLoggers[tag]; ok {
		return l
	}
	l := backendLog.Logger(tag)
	subsystemLoggers[tag] = l
	return l
}

// InitLogRotator initializes the rotating log output, creating its parent
// directory as needed. It must be called once during startup before any
// logger written through this package is expected to reach disk.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %s", err)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %s", err)
	}
	LogRotator = r
	initiated = true
	return nil
}

// SetLogLevel sets the logging level for the given subsystem. Unknown
// subsystems are ignored.
func SetLogLevel(subsystemTag, logLevel string) {
	l, ok := subsystemLoggers[subsystemTag]
	if !ok {
		return
	}
	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		level = btclog.LevelInfo
	}
	l.SetLevel(level)
}

// SetLogLevels sets every subsystem logger to the given level.
func SetLogLevels(logLevel string) {
	for tag := range subsystemLoggers {
		SetLogLevel(tag, logLevel)
	}
}

// ParseAndSetDebugLevels parses a debug level spec of either "<level>" (all
// subsystems) or "<tag>=<level>,<tag>=<level>,..." and applies it.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", pair)
		}
		tag, level := fields[0], fields[1]
		if _, ok := subsystemLoggers[tag]; !ok {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				tag, strings.Join(SupportedSubsystems(), ", "))
		}
		if !validLogLevel(level) {
			return fmt.Errorf("the specified debug level [%s] is invalid", level)
		}
		SetLogLevel(tag, level)
	}
	return nil
}

// SupportedSubsystems returns a sorted slice of the supported subsystem tags.
func SupportedSubsystems() []string {
	tags := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func validLogLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// MultiWriter exposes the stdout+rotator fan-out as an io.Writer, useful for
// wiring third-party libraries (e.g. the mongo driver's monitor) into the
// same log stream.
func MultiWriter() io.Writer {
	return logWriter{}
}
