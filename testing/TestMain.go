// Package testing puts the process in clinic test mode. Handler tests
// blank-import it so app.InTestMode holds before any binary wiring runs.
package testing

import (
	"os"
	stdtesting "testing"
)

// defaults are applied only where the environment leaves them unset.
var defaults = map[string]string{
	"CLINIC_TEST_MODE": "1",
	"APP_ENV":          "test",
	"JWT_SECRET":       "test-secret-test-secret-test-secret",
}

func init() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain is for packages that import this one under a test main.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
