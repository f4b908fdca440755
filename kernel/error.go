// Package kernel holds the error type that every kernel subsystem reports
// through.
package kernel

import "errors"

// Error is raised by a kernel subsystem. Subsystems declare each error once as
// a package-level *Error and return or panic with that pointer, so raising an
// error never allocates and callers match errors by identity.
type Error struct {
	// Module names the subsystem that raised the error, e.g. "pmm". kfmt
	// prints it in front of the message in the panic banner.
	Module string

	// Message describes the failure.
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ModuleOf returns the module of the first *Error in the chain of err, or an
// empty string if err does not wrap one.
func ModuleOf(err error) string {
	var kerr *Error
	if !errors.As(err, &kerr) {
		return ""
	}
	return kerr.Module
}
