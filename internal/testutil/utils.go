package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger prefixed with the test name. It writes to
// stdout rather than t.Log because room and client goroutines may still log
// after the test has returned.
func TestLogger(t testing.TB) *log.Logger {
	return log.New(os.Stdout, "["+t.Name()+"] ", log.Lmicroseconds)
}
