package cap

import (
	"unsafe"

	"rvkernel/kernel/addr"
)

// CSlot is one entry of a CNode: a capability word plus its position in
// the Mapping Database derivation tree. MDB links are raw pointers into
// the same kernel-virtual window CSlot itself lives in — there is no
// reference counting, liveness is governed entirely by the tree (see
// mdb.go) and the fact that this kernel never returns retyped memory to
// its Untyped until every capability over it is revoked.
type CSlot struct {
	Cap Cap

	mdbParent *CSlot
	mdbPrev   *CSlot
	mdbNext   *CSlot
}

func (s *CSlot) Empty() bool { return s == nil || s.Cap.IsNull() }

// CNode is a handle to a 2^Radix-entry CSlot array backed by retyped
// kernel memory, addressed the same way kernel/vm.Table addresses a
// page-table frame: through the permanent kernel window in production,
// or through a test-installed override when running hosted.
type CNode struct {
	Frame addr.Phys
	Radix uint8
}

// frameToSlotPtr resolves a physical frame to the kernel-virtual address
// its CSlot array starts at. Overridden in tests for the same reason
// kernel/vm.frameToKernelPtr is: a hosted test process cannot dereference
// a KernelBase-prefixed address.
var frameToSlotPtr = func(f addr.Phys) uintptr { return f.ToKernelVirt().Uintptr() }

// SetFrameResolver overrides how a CNode's Frame is turned into a
// dereferenceable address, returning a function that restores the
// previous resolver. Production code never calls this; it exists so
// hosted tests in other packages (kernel/untyped, kernel/trap) that
// exercise a CNode they didn't build via this package's own _test.go
// helpers can substitute an identity mapping the same way kernel/vm's
// tests do for page-table frames.
func SetFrameResolver(fn func(addr.Phys) uintptr) (restore func()) {
	prev := frameToSlotPtr
	frameToSlotPtr = fn
	return func() { frameToSlotPtr = prev }
}

func (n CNode) Len() uintptr { return uintptr(1) << n.Radix }

func (n CNode) slots() []CSlot {
	ptr := (*CSlot)(unsafe.Pointer(frameToSlotPtr(n.Frame)))
	return unsafe.Slice(ptr, n.Len())
}

// Slot returns the i'th CSlot, or nil if i is out of range.
func (n CNode) Slot(i uintptr) *CSlot {
	if i >= n.Len() {
		return nil
	}
	return &n.slots()[i]
}

// Zero clears every slot, required before a freshly retyped CNode is
// used.
func (n CNode) Zero() {
	s := n.slots()
	for i := range s {
		s[i] = CSlot{}
	}
}
