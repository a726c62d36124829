package fluent

import (
	"testing"

	"go.uber.org/goleak"
)

// Cancellation totality matters more than anything else in this package: a
// waiter that survives its context shows up here as a leaked goroutine.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
