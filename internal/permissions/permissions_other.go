//go:build !darwin

package permissions

// Other platforms have no Accessibility trust database; global hotkeys work
// without an explicit grant.
type axChecker struct{}

func (axChecker) Trusted() bool { return true }
