package monitoring

import "log"

// Logf is the package-level diagnostic logger used across the server, the
// run store and the CLI. It defaults to log.Printf but may be replaced by
// SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// PrefixLogger routes library log output through Logf with a fixed prefix.
// It satisfies the Printf/Verbose logger interface used by golang-migrate.
type PrefixLogger struct {
	Prefix string
	Chatty bool
}

// Printf logs through Logf with the configured prefix.
func (l PrefixLogger) Printf(format string, v ...interface{}) {
	Logf("["+l.Prefix+"] "+format, v...)
}

// Verbose reports whether the library should emit verbose output.
func (l PrefixLogger) Verbose() bool {
	return l.Chatty
}
