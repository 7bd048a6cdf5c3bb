package vm

import (
	"unsafe"

	"rvkernel/kernel/addr"
)

// Table is a handle to one level of an sv48 page table, identified by the
// physical frame that backs it. Because the kernel-window install (see
// kernelwindow.go) identity-maps every physical frame into the upper
// half, a Table's entries are reached directly through its kernel-virtual
// alias — no temporary-mapping dance is needed the way the teacher's
// amd64 code (which lacks a permanent full-RAM window) requires.
type Table struct {
	Frame addr.Phys
}

// frameToKernelPtr resolves a physical frame to the address at which the
// kernel can dereference it. In production this is always
// Frame.ToKernelVirt() (the permanent kernel window); tests override it
// to the identity function so a Table can be backed by an ordinary
// hosted Go allocation instead of a real physical frame, the same
// function-variable-indirection idiom the teacher uses throughout
// kernel/mem/vmm to keep hardware-dependent code host-testable.
var frameToKernelPtr = func(f addr.Phys) uintptr { return f.ToKernelVirt().Uintptr() }

// SetFrameResolver overrides how a Table's Frame is turned into a
// dereferenceable address, returning a function that restores the
// previous resolver. Production code never calls this; it exists so
// hosted tests in other packages (kernel/boot) that drive this
// package's Walk/MapPageAlloc against a hosted buffer standing in for
// physical RAM can substitute an identity mapping, the same role
// cap.SetFrameResolver plays for CNode frames.
func SetFrameResolver(fn func(addr.Phys) uintptr) (restore func()) {
	prev := frameToKernelPtr
	frameToKernelPtr = fn
	return func() { frameToKernelPtr = prev }
}

func (t Table) entries() *[entriesPerTable]pte {
	return (*[entriesPerTable]pte)(unsafe.Pointer(frameToKernelPtr(t.Frame)))
}

func (t Table) entry(idx uintptr) *pte {
	return &t.entries()[idx]
}

// FrameAllocator allocates one zeroed physical frame, used by Walk/Map to
// materialize missing intermediate tables.
type FrameAllocator func() (addr.Phys, bool)

// Zero clears every entry of the table (new tables must start all-zero
// so FlagValid is false everywhere).
func (t Table) Zero() {
	ents := t.entries()
	for i := range ents {
		ents[i] = 0
	}
}
