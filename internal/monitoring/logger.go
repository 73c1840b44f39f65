package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger used by the encoder, transport
// and capture store. It defaults to log.Printf but may be replaced by
// SetLogger so tests can capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

var verbose atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose toggles per-frame debug output.
func SetVerbose(on bool) {
	verbose.Store(on)
}

// Verbose reports whether debug output is enabled.
func Verbose() bool {
	return verbose.Load()
}

// Debugf logs through Logf only when verbose output is enabled. The stream
// loop calls it once per frame, so it stays silent by default.
func Debugf(format string, v ...interface{}) {
	if !verbose.Load() {
		return
	}
	Logf("debug: "+format, v...)
}
