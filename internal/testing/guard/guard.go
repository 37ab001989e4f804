// Package guard switches the binaries into test mode for any test binary
// that imports it, so code under test never dials PostgreSQL or Redis.
package guard

import "os"

const testModeEnv = "ODYSSEY_TEST_MODE"

func init() {
	if _, set := os.LookupEnv(testModeEnv); !set {
		_ = os.Setenv(testModeEnv, "1")
	}
}
