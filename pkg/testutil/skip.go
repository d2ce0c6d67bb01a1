// Package testutil holds helpers for tests that open real sockets.
package testutil

import "testing"

// SkipIfShort skips tests that bind listeners when running with -short.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
}
