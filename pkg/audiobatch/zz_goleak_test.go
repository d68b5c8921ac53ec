package audiobatch

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that no goroutines are leaked after tests in this package run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
