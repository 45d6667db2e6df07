// Package testing puts the process in test mode when imported by a test binary.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("MFA_TEST_MODE", "1")
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", "test-only-secret")
		}
		// Never reach real Azure endpoints from tests.
		for _, key := range []string{"AZURE_FACE_ENDPOINT", "AZURE_FACE_KEY", "AZURE_SPEECH_ENDPOINT", "AZURE_SPEECH_REGION", "AZURE_SPEECH_KEY"} {
			_ = os.Unsetenv(key)
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain runs m in test mode.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
