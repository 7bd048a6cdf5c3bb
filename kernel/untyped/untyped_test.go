package untyped

import (
	"testing"
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/errors"
)

// withHostedMemory backs both the Untyped's block and the destination
// CNode with ordinary hosted Go allocations, redirecting every
// physical-to-kernel-virtual resolver this package and kernel/cap use to
// the identity function.
func withHostedMemory(t *testing.T) {
	t.Helper()
	prevU := frameToKernelPtr
	frameToKernelPtr = func(f addr.Phys) uintptr { return uintptr(f) }
	t.Cleanup(func() { frameToKernelPtr = prevU })

	restore := cap.SetFrameResolver(func(f addr.Phys) uintptr { return uintptr(f) })
	t.Cleanup(restore)
}

func newHostedUntyped(t *testing.T, blockSize uint8) *cap.CSlot {
	t.Helper()
	withHostedMemory(t)
	block := make([]byte, 1<<blockSize)
	slot := &cap.CSlot{}
	slot.Cap = cap.NewUntyped(uintptr(unsafe.Pointer(&block[0])), blockSize, false)
	return slot
}

func newHostedDestCNode(t *testing.T, radix uint8) cap.CNode {
	t.Helper()
	slots := make([]cap.CSlot, 1<<radix)
	n := cap.CNode{Frame: addr.Phys(uintptr(unsafe.Pointer(&slots[0]))), Radix: radix}
	return n
}

func TestRetypeTCBsAdvancesFreeIdxAndLinksMDB(t *testing.T) {
	u := newHostedUntyped(t, 16) // 64 KiB block
	dest := newHostedDestCNode(t, 4)

	if err := Retype(u, dest, 0, cap.TypeTcb, 0, 3); err != nil {
		t.Fatalf("Retype: %+v", err)
	}

	tcbSize := ObjectSize(cap.TypeTcb, 0)
	if u.Cap.FreeIdx() != tcbSize*3 {
		t.Fatalf("FreeIdx() = %d, want %d", u.Cap.FreeIdx(), tcbSize*3)
	}

	for i := uintptr(0); i < 3; i++ {
		s := dest.Slot(i)
		if s.Cap.Type != cap.TypeTcb {
			t.Fatalf("slot %d type = %v, want Tcb", i, s.Cap.Type)
		}
	}
	if !u.HasDescendants() {
		t.Fatal("expected the three retyped TCBs to be MDB children of u")
	}
}

func TestRetypeFailsWhenBlockTooSmall(t *testing.T) {
	u := newHostedUntyped(t, 4) // 16 bytes, too small for even one TCB
	dest := newHostedDestCNode(t, 2)

	if err := Retype(u, dest, 0, cap.TypeTcb, 0, 1); err == nil || err.Kind != errors.NoMemory {
		t.Fatalf("expected NoMemory, got %+v", err)
	}
}

func TestRetypeDeviceMemoryRejectsNonPageTypes(t *testing.T) {
	u := newHostedUntyped(t, 20)
	u.Cap = cap.NewUntyped(u.Cap.Object, 20, true)
	dest := newHostedDestCNode(t, 2)

	if err := Retype(u, dest, 0, cap.TypeTcb, 0, 1); err == nil || err.Kind != errors.CanNotNewFromDeviceMemory {
		t.Fatalf("expected CanNotNewFromDeviceMemory, got %+v", err)
	}
	if err := Retype(u, dest, 0, cap.TypePage, 0, 1); err != nil {
		t.Fatalf("Retype Page from device memory should be allowed: %+v", err)
	}
	if err := Retype(u, dest, 1, cap.TypeUntyped, 10, 1); err != nil {
		t.Fatalf("Retype Untyped from device memory should be allowed: %+v", err)
	}
	if dest.Slot(1).Cap.Type != cap.TypeUntyped || !dest.Slot(1).Cap.IsDevice() {
		t.Fatalf("retyped device Untyped = %+v, want a device Untyped capability", dest.Slot(1).Cap)
	}
}

func TestRetypeCNodeSizesByRadix(t *testing.T) {
	u := newHostedUntyped(t, 20)
	dest := newHostedDestCNode(t, 2)

	if err := Retype(u, dest, 0, cap.TypeCNode, 6, 1); err != nil {
		t.Fatalf("Retype CNode: %+v", err)
	}
	if dest.Slot(0).Cap.Radix() != 6 {
		t.Fatalf("Radix() = %d, want 6", dest.Slot(0).Cap.Radix())
	}
}
