// Package testing prepares the process environment for packages that load
// the real configuration. Import it for side effects from _test.go files.
package testing

import (
	"os"
	stdtesting "testing"
)

var testEnv = map[string]string{
	"ODYSSEY_TEST_MODE": "1",
	"SESSION_SECRET":    "test-session-secret",
}

func init() {
	for key, value := range testEnv {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain can be re-exported by packages that want the environment applied
// before m.Run.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
