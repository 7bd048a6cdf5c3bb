package kfmt

import (
	"io"

	"rvkernel/kernel/cpu"
	"rvkernel/kernel/errors"
)

// DumpError writes a one-line rendering of err to w in the form
// "[<Kind>] value=<n>". Used by Panic.
func DumpError(w io.Writer, err *errors.Error) {
	if err == nil {
		return
	}
	Fprintf(w, "[%s] value=%d\n", err.Kind.String(), err.Value)
}

// haltFn is overridden in tests so Panic's infinite wfi loop can be
// exercised without actually parking the host test process.
var haltFn = func() {
	for {
		cpu.WaitForInterrupt()
	}
}

// Panic prints err to the registered console sink (or the boot ring
// buffer, if none is registered yet) and halts the hart. It never
// returns; cmd/kernel's trampoline calls this when InitPhys/InitVirt/
// FinalizeBootInfo fail, since there is no recovery from a boot-time
// allocation or mapping failure this early.
func Panic(err *errors.Error) {
	Printf("\n-----------------------------------\n")
	DumpError(sink, err)
	Printf("*** kernel panic: system halted ***\n")
	Printf("-----------------------------------\n")
	haltFn()
}
