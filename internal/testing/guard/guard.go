// Package guard switches the process into test mode as soon as a test
// binary imports it, before any package init reads configuration.
package guard

import "os"

func init() {
	if os.Getenv("LEAVEDESK_TEST_MODE") == "" {
		_ = os.Setenv("LEAVEDESK_TEST_MODE", "1")
	}
}
