// Package permissions reports whether the process is trusted for Accessibility,
// which global hotkey registration depends on.
package permissions

// Checker reports the Accessibility trust state of the current process.
type Checker interface {
	// Trusted returns the current state without side effects.
	Trusted() bool
}

// System returns the Checker backed by the operating system.
func System() Checker {
	return axChecker{}
}

// Static is a Checker with a fixed answer.
type Static bool

// Trusted returns the fixed answer.
func (s Static) Trusted() bool { return bool(s) }
