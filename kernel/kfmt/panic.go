package kfmt

import "physframe/kernel"

var (
	// haltFn stops the current CPU. The boot code replaces it with the
	// architecture halt routine; tests and host tools replace it with
	// something that returns.
	haltFn = haltForever

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// SetHaltFn installs the function invoked by Panic after the panic report has
// been printed.
func SetHaltFn(fn func()) {
	if fn == nil {
		fn = haltForever
	}
	haltFn = fn
}

// Panic prints e (a *kernel.Error, error or string) and halts the CPU. Panic
// only returns if the installed halt function returns.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	haltFn()
}

func haltForever() {
	for {
	}
}
