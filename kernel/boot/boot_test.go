package boot

import (
	"testing"
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/object"
	"rvkernel/kernel/vm"
)

// In a hosted test process there is no real physical RAM to bump-allocate
// from, so every package that dereferences a Phys value keeps a private
// frame-resolver seam; withHostedBoot overrides this package's own
// (toKernelPtr, tcbAt) plus the cap and vm packages' resolvers so a plain
// Go byte slice can stand in for the RAM InitPhys carves from, the same
// idiom kernel/untyped's tests use to drive kernel/cap hosted.
func withHostedBoot(t *testing.T) {
	t.Helper()
	prevToKernelPtr := toKernelPtr
	toKernelPtr = func(p addr.Phys) uintptr { return uintptr(p) }
	prevTcbAt := tcbAt
	tcbAt = func(f addr.Phys) *object.TCB { return (*object.TCB)(unsafe.Pointer(uintptr(f))) }
	restoreCap := cap.SetFrameResolver(func(f addr.Phys) uintptr { return uintptr(f) })
	restoreVM := vm.SetFrameResolver(func(f addr.Phys) uintptr { return uintptr(f) })
	t.Cleanup(func() {
		toKernelPtr = prevToKernelPtr
		tcbAt = prevTcbAt
		restoreCap()
		restoreVM()
	})
}

// newHostedRAM allocates a size-byte buffer and returns it as a [start,
// end) physical range, mimicking the real RAM region Image.RAMStart/End
// would describe on real hardware.
func newHostedRAM(t *testing.T, size int) (addr.Phys, addr.Phys) {
	t.Helper()
	buf := make([]byte, size)
	start := addr.Phys(uintptr(unsafe.Pointer(&buf[0])))
	return start, start + addr.Phys(size)
}

func testImage(t *testing.T, ramSize int) Image {
	t.Helper()
	start, end := newHostedRAM(t, ramSize)
	return Image{
		RAMStart:           start,
		RAMEnd:             end,
		RootEntry:          0x1000,
		RootStack:          0x2000,
		RootIPCBufferVaddr: 0x3000,
	}
}

func TestInitPhysCarvesFixedBootObjects(t *testing.T) {
	withHostedBoot(t)

	bt, err := InitPhys(testImage(t, 4<<20))
	if err != nil {
		t.Fatalf("InitPhys: %+v", err)
	}

	cnodeCap := bt.root.Slot(slotRootCNode).Cap
	if cnodeCap.Type != cap.TypeCNode || cnodeCap.Radix() != RootCNodeRadix {
		t.Fatalf("root CNode slot holds %+v, want a CNode cap of radix %d", cnodeCap, RootCNodeRadix)
	}

	vspaceCap := bt.root.Slot(slotRootVSpace).Cap
	if vspaceCap.Type != cap.TypePageTable || !vspaceCap.IsRootPageTable() {
		t.Fatalf("root VSpace slot holds %+v, want a root PageTable cap", vspaceCap)
	}

	if bt.tcb.CSpaceRoot.Cap != cnodeCap {
		t.Fatalf("tcb.CSpaceRoot = %+v, want %+v", bt.tcb.CSpaceRoot.Cap, cnodeCap)
	}
	if bt.tcb.VSpaceRoot.Cap != vspaceCap {
		t.Fatalf("tcb.VSpaceRoot = %+v, want %+v", bt.tcb.VSpaceRoot.Cap, vspaceCap)
	}
	if bt.tcb.Registers.Sepc != 0x1000 || bt.tcb.Registers.SP != 0x2000 {
		t.Fatalf("tcb.Registers = %+v, want Sepc=0x1000 SP=0x2000", bt.tcb.Registers)
	}

	if bt.root.Slot(slotFirstBoot).Cap.Type != cap.TypeNone {
		t.Fatalf("slotFirstBoot should still be empty after InitPhys, got %+v", bt.root.Slot(slotFirstBoot).Cap)
	}

	irqCap := bt.root.Slot(slotIrqControl).Cap
	if irqCap.Type != cap.TypeIrqControl {
		t.Fatalf("irq control slot holds %+v, want an IrqControl cap", irqCap)
	}
}

func TestInitPhysFailsWhenRAMTooSmall(t *testing.T) {
	withHostedBoot(t)

	_, err := InitPhys(testImage(t, 64))
	if err == nil || err.Kind != errors.NoMemory {
		t.Fatalf("expected NoMemory for undersized RAM, got %+v", err)
	}
}

func TestFinalizeBootInfoSizesRemainingRAMAsUntyped(t *testing.T) {
	withHostedBoot(t)

	bt, err := InitPhys(testImage(t, 4<<20))
	if err != nil {
		t.Fatalf("InitPhys: %+v", err)
	}

	info, ferr := bt.FinalizeBootInfo()
	if ferr != nil {
		t.Fatalf("FinalizeBootInfo: %+v", ferr)
	}

	if info.RootCNodeIdx != slotRootCNode || info.RootVSpaceIdx != slotRootVSpace {
		t.Fatalf("info = %+v, want RootCNodeIdx=%d RootVSpaceIdx=%d", info, slotRootCNode, slotRootVSpace)
	}
	if info.RootIrqControlIdx != slotIrqControl {
		t.Fatalf("info.RootIrqControlIdx = %d, want %d", info.RootIrqControlIdx, slotIrqControl)
	}
	if info.IPCBufferAddr != uint64(bt.img.RootIPCBufferVaddr) {
		t.Fatalf("info.IPCBufferAddr = %#x, want %#x", info.IPCBufferAddr, bt.img.RootIPCBufferVaddr)
	}
	if info.UntypedNum != 1 {
		t.Fatalf("info.UntypedNum = %d, want 1 for a single leftover region", info.UntypedNum)
	}
	if info.FirstEmptyIdx != slotFirstBoot+1 {
		t.Fatalf("info.FirstEmptyIdx = %d, want %d", info.FirstEmptyIdx, slotFirstBoot+1)
	}

	untypedCap := bt.root.Slot(slotFirstBoot).Cap
	if untypedCap.Type != cap.TypeUntyped {
		t.Fatalf("slotFirstBoot holds %+v, want an Untyped cap", untypedCap)
	}

	// The Untyped region must start exactly where the bump cursor sits
	// once the BootInfo page and its own intermediate page tables have
	// all been carved, and must not reach past RAMEnd — regressing the
	// ordering between MapPageAlloc and the remaining-RAM computation in
	// FinalizeBootInfo would let this region overlap kernel-owned bytes.
	untypedBase := uintptr(untypedCap.Object)
	if untypedBase != uintptr(bt.b.cursor) {
		t.Fatalf("untyped base %#x does not match final bump cursor %#x", untypedBase, bt.b.cursor)
	}
	untypedTop := untypedBase + uintptr(1)<<untypedCap.BlockSize()
	if untypedTop > uintptr(bt.img.RAMEnd) {
		t.Fatalf("untyped region [%#x, %#x) overruns RAMEnd %#x", untypedBase, untypedTop, bt.img.RAMEnd)
	}

	if bt.tcb.Registers.A0 != uint64(RootBootInfoVaddr) {
		t.Fatalf("Registers.A0 = %#x, want RootBootInfoVaddr %#x", bt.tcb.Registers.A0, RootBootInfoVaddr)
	}
	if bt.tcb.Registers.A1 != uint64(bt.img.RootIPCBufferVaddr) {
		t.Fatalf("Registers.A1 = %#x, want %#x", bt.tcb.Registers.A1, bt.img.RootIPCBufferVaddr)
	}

	table := object.PageTableOf(bt.root.Slot(slotRootVSpace).Cap)
	gotFrame, terr := vm.Translate(table, RootBootInfoVaddr)
	if terr != nil {
		t.Fatalf("Translate(RootBootInfoVaddr): %+v", terr)
	}
	if info := (*BootInfo)(unsafe.Pointer(toKernelPtr(gotFrame))); info.RootCNodeIdx != slotRootCNode {
		t.Fatalf("BootInfo page at mapped vaddr reads RootCNodeIdx=%d, want %d", info.RootCNodeIdx, slotRootCNode)
	}
}
