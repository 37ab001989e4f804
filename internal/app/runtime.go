package app

import (
	"os"
	"sync"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode reports whether the binaries should exit before touching
// PostgreSQL or Redis. Smoke tests set ODYSSEY_TEST_MODE=1.
func InTestMode() bool {
	return testMode()
}
