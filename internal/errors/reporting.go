// Package errors - optional out-of-band error reporting
package errors

import (
	"sync/atomic"
)

// Reporter receives enhanced errors for out-of-band handling, for example
// forwarding them to a metrics collector. Implementations must not block.
type Reporter interface {
	ReportError(ee *EnhancedError)
	IsEnabled() bool
}

// hasActiveReporting gates the expensive auto-detection work in Build.
var hasActiveReporting atomic.Bool

var globalReporter atomic.Pointer[Reporter]

// SetReporter installs the global error reporter. Passing nil uninstalls it
// and restores the fast path in Build.
func SetReporter(reporter Reporter) {
	if reporter == nil {
		globalReporter.Store(nil)
		hasActiveReporting.Store(false)
		return
	}
	globalReporter.Store(&reporter)
	hasActiveReporting.Store(reporter.IsEnabled())
}

// report hands the error to the active reporter, if any.
func report(ee *EnhancedError) {
	reporterPtr := globalReporter.Load()
	if reporterPtr == nil {
		return
	}

	reporter := *reporterPtr
	if reporter == nil || !reporter.IsEnabled() || ee.IsReported() {
		return
	}

	reporter.ReportError(ee)
	ee.MarkReported()
}
