package app

import (
	"os"
	"sync"
)

const testModeEnv = "LEAVEDESK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode reports whether the process runs under go test. Test mode
// leaves .env files alone so a developer's local settings cannot leak into
// assertions.
func InTestMode() bool {
	return testMode()
}
