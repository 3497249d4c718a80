// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires up the per-subsystem logs.Logger instances used
// across dagchaind and handles rotation of the on-disk log files.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jrick/logrotate/rotator"

	"github.com/dagchaind/dagchaind/logs"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

// errLogWriter implements an io.Writer that outputs to both standard output
// and the write-end pipe of an initialized error log rotator.
type errLogWriter struct{}

func (errLogWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		ErrLogRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it write to the backend.
//
// Loggers can not be used before the log rotator has been initialized with a
// log file; that must happen early during startup via InitLogRotators.
var (
	backendLog = logs.NewBackend([]*logs.BackendWriter{
		logs.NewAllLevelsBackendWriter(logWriter{}),
		logs.NewErrorBackendWriter(errLogWriter{}),
	})

	// LogRotator is the primary log output. It should be closed on shutdown.
	LogRotator *rotator.Rotator
	// ErrLogRotator mirrors error-and-above records to their own file.
	ErrLogRotator *rotator.Rotator

	dagLog  = backendLog.Logger("DAGS") // consensus/datastructures, DAG store
	gdagLog = backendLog.Logger("GDAG") // ghostdagmanager
	fnlyLog = backendLog.Logger("FNLY") // finalitymanager
	tselLog = backendLog.Logger("TSEL") // tipselector
	mpolLog = backendLog.Logger("MPOL") // mempool
	execLog = backendLog.Logger("EXEC") // execution
	bldrLog = backendLog.Logger("BLDR") // blockbuilder
	bvalLog = backendLog.Logger("BVAL") // blockvalidator
	storLog = backendLog.Logger("STOR") // storage
	cnfgLog = backendLog.Logger("CNFG") // config
	nodeLog = backendLog.Logger("NODE") // node / cmd

	initiated = false
)

// SubsystemTags is an enum of all subsystem tags known to the logger.
var SubsystemTags = struct {
	DAGS, GDAG, FNLY, TSEL, MPOL, EXEC, BLDR, BVAL, STOR, CNFG, NODE string
}{
	DAGS: "DAGS",
	GDAG: "GDAG",
	FNLY: "FNLY",
	TSEL: "TSEL",
	MPOL: "MPOL",
	EXEC: "EXEC",
	BLDR: "BLDR",
	BVAL: "BVAL",
	STOR: "STOR",
	CNFG: "CNFG",
	NODE: "NODE",
}

var subsystemLoggers = map[string]logs.Logger{
	SubsystemTags.DAGS: dagLog,
	SubsystemTags.GDAG: gdagLog,
	SubsystemTags.FNLY: fnlyLog,
	SubsystemTags.TSEL: tselLog,
	SubsystemTags.MPOL: mpolLog,
	SubsystemTags.EXEC: execLog,
	SubsystemTags.BLDR: bldrLog,
	SubsystemTags.BVAL: bvalLog,
	SubsystemTags.STOR: storLog,
	SubsystemTags.CNFG: cnfgLog,
	SubsystemTags.NODE: nodeLog,
}

// InitLogRotators initializes the logging rotators to write logs to logFile
// and errLogFile, rolling files in the same directory. It must be called
// before any subsystem logger is used if on-disk logging is desired.
func InitLogRotators(logFile, errLogFile string) error {
	var err error
	LogRotator, err = initLogRotator(logFile)
	if err != nil {
		return err
	}
	ErrLogRotator, err = initLogRotator(errLogFile)
	if err != nil {
		return err
	}
	initiated = true
	return nil
}

func initLogRotator(logFile string) (*rotator.Rotator, error) {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}
	return r, nil
}

// SetLogLevel sets the logging level for the given subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := logs.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for every subsystem logger.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the known subsystem tags.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// Get returns the logger for a specific subsystem tag.
func Get(tag string) (logger logs.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// ParseAndSetDebugLevels parses a debug level specification of the form
// "trace" (apply to all subsystems) or "GDAG=debug,MPOL=trace" and applies
// it. An error is returned if the specification is malformed.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", logLevelPair)
		}

		fields := strings.SplitN(logLevelPair, "=", 2)
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := Get(subsysID); !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}

		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}

		SetLogLevel(subsysID, logLevel)
	}

	return nil
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}
