// Package `mulog` provides a minimal logger with Zap-Sugar-like structured
// `Levelw(msg, kv...)` functions, using only the stdlib `log` package.  It is
// the fallback when Zap is not wanted, for example in tests or small tools.
package mulog

import (
	"log"
)

// `Logger` prints messages with timestamps, using package `log`.
type Logger struct{}

func (Logger) Infow(msg string, kv ...interface{}) {
	log.Printf("info: %s %v\n", msg, kv)
}

func (Logger) Warnw(msg string, kv ...interface{}) {
	log.Printf("warning: %s %v\n", msg, kv)
}

func (Logger) Errorw(msg string, kv ...interface{}) {
	log.Printf("error: %s %v\n", msg, kv)
}

func (Logger) Fatalw(msg string, kv ...interface{}) {
	log.Fatalf("fatal: %s %v\n", msg, kv)
}
