//go:build !unix

package server

import "os"

// DefaultSources returns the interrupt source. There is no terminate signal
// on this platform, so its source never fires.
func DefaultSources() []Source {
	return []Source{
		SignalSource("interrupt", os.Interrupt),
		PendingSource("terminate"),
	}
}
