// Package log sets up satindex's subsystem loggers on top of btclog,
// following the teacher's log.go: one rotating backend, one logger per
// subsystem, dynamically adjustable levels.
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	stdoutN, err := os.Stdout.Write(p)
	if err != nil {
		return stdoutN, err
	}
	if logRotator != nil {
		if _, err := logRotator.Write(p); err != nil {
			return stdoutN, err
		}
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})
	logRotator *rotator.Rotator

	// ENGN is the assignment engine (§4.E): connect/disconnect, fee
	// aggregation, destruction.
	ENGN = backendLog.Logger("ENGN")
	// CORD is the index coordinator (§4.F): batch application, reorg
	// detection and rollback.
	CORD = backendLog.Logger("CORD")
	// STOR is the persistent store (§4.D): table reads/writes, pruning.
	STOR = backendLog.Logger("STOR")
	// QURY is the read-only query interface (§4.G).
	QURY = backendLog.Logger("QURY")
)

var subsystemLoggers = map[string]btclog.Logger{
	"ENGN": ENGN,
	"CORD": CORD,
	"STOR": STOR,
	"QURY": QURY,
}

// InitRotator opens the rotating log file at logFile. It must be called
// before any subsystem logger writes, or logs are stdout-only.
func InitRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("log: create log dir: %w", err)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("log: create rotator: %w", err)
	}
	logRotator = r
	return nil
}

// Close flushes and closes the log rotator, if one was opened.
func Close() {
	if logRotator != nil {
		logRotator.Close()
	}
}

// SetLevel sets one subsystem's log level. Unknown subsystems and invalid
// levels are ignored, same as the teacher's setLogLevel.
func SetLevel(subsystemID, levelStr string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return
	}
	logger.SetLevel(level)
}

// SetLevels sets every subsystem logger to levelStr.
func SetLevels(levelStr string) {
	for id := range subsystemLoggers {
		SetLevel(id, levelStr)
	}
}
