//go:build unix

package server

import (
	"os"
	"syscall"
)

// DefaultSources returns the interrupt and terminate signal sources.
func DefaultSources() []Source {
	return []Source{
		SignalSource("interrupt", os.Interrupt),
		SignalSource("terminate", syscall.SIGTERM),
	}
}
