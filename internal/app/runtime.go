package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// testModeEnv, when truthy, makes serve return before dialing Redis or binding a port.
const testModeEnv = "USERDESK_TEST_MODE"

var testMode atomic.Bool

func init() {
	RefreshTestMode()
}

// InTestMode reports whether runtime side effects are disabled.
func InTestMode() bool {
	return testMode.Load()
}

// RefreshTestMode re-reads USERDESK_TEST_MODE. Any strconv.ParseBool truthy
// value enables test mode; anything else disables it.
func RefreshTestMode() {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(err == nil && on)
}
