package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

const testModeEnv = "PAROQUIA_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether PAROQUIA_TEST_MODE is set, in which case the
// binary skips connecting to Postgres and Redis. The flag is read once.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads the flag after the environment changed.
func RefreshTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	on = err == nil && on
	testMode.Store(&on)
	return on
}
