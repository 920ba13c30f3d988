// Package debug gates ownership assertions behind the ffidebug build tag.
//
// Ownership violations (double release, decrement past zero, use after
// extract) are prevented structurally by the owning types; these assertions
// are a second line that aborts loudly in instrumented builds instead of
// letting a violation corrupt foreign memory silently.
package debug

import "fmt"

// Assertf panics with a formatted diagnostic when cond is false and the
// ffidebug build tag is set. In regular builds the check compiles away.
func Assertf(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic("ownership violation: " + fmt.Sprintf(format, args...))
	}
}
