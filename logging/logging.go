// Package logging provides the engine's logging foundation: a thin,
// per-component wrapper around ldlog.Loggers so that every store, adapter,
// and monitor can be given its own prefixed logger without pulling in a
// heavier structured-logging framework.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// GlobalLoggers is used for messages that are not tied to a specific store instance.
var GlobalLoggers = MakeDefaultLoggers()

// MakeDefaultLoggers returns a Loggers instance that writes Debug/Info/Warn to stdout
// (with Debug disabled by default) and Error to stderr, matching the engine's defaults.
func MakeDefaultLoggers() ldlog.Loggers {
	loggers := ldlog.Loggers{}
	loggers.SetBaseLoggerForLevel(ldlog.Debug, newStdLogger(io.Discard))
	loggers.SetBaseLoggerForLevel(ldlog.Info, newStdLogger(os.Stdout))
	loggers.SetBaseLoggerForLevel(ldlog.Warn, newStdLogger(os.Stdout))
	loggers.SetBaseLoggerForLevel(ldlog.Error, newStdLogger(os.Stderr))
	return loggers
}

func newStdLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// ForComponent returns a copy of loggers prefixed with the given component name,
// the way StreamManager and EnvContext each get their own prefixed Loggers.
func ForComponent(loggers ldlog.Loggers, name string) ldlog.Loggers {
	loggers.SetPrefix("[" + name + "]")
	return loggers
}
