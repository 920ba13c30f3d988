//go:build !ffidebug

package debug

// Enabled reports whether instrumented-build assertions are compiled in.
const Enabled = false
