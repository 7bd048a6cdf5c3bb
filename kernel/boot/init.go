package boot

import (
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/errors"
	_ "rvkernel/kernel/irq" // registers IrqControl/IrqHandler invocations at init time
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/object"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/trap"
	"rvkernel/kernel/vm"
)

// cslotSize/tcbSize are the storage InitPhys must reserve for the root
// CNode's slot array and the root TCB object, computed rather than
// hardcoded so a change to either struct's layout never silently
// desyncs the boot-time bump allocation.
const (
	cslotSize = unsafe.Sizeof(cap.CSlot{})
	tcbSize   = unsafe.Sizeof(object.TCB{})
)

// tcbAt resolves a physical frame to a *object.TCB, the same
// frame-to-pointer seam every other package keeps locally; overridden
// in tests so a hosted Go allocation can stand in for the bump-carved
// root TCB.
var tcbAt = func(f addr.Phys) *object.TCB { return (*object.TCB)(unsafe.Pointer(toKernelPtr(f))) }

// RootCNodeRadix fixes the root server's initial CSpace at 4096 slots,
// generous enough for the fixed boot-time slots below plus whatever the
// root server itself carves during normal operation.
const RootCNodeRadix = 12

// Fixed root-CNode slot indices InitPhys populates before the root
// server's first instruction runs. RootCNodeIdx/RootVSpaceIdx/
// RootIrqControlIdx in the produced BootInfo always name these same
// slots; a real ELF loader would be free to place them elsewhere; this
// kernel, standing in for one, always uses this layout.
const (
	slotRootCNode  = 0 // self-referential: a CNode cap over the root CNode itself
	slotRootVSpace = 1
	slotIrqControl = 2 // the single IrqControl authority capability
	slotFirstBoot  = 3 // where untyped_infos-named capabilities start
)

// Image describes the statically-known facts about this boot that no
// external loader supplies in this repository: the span of usable RAM,
// the kernel's own occupied range within it (carved out so the kernel
// window install never lets user code alias kernel text), the
// already-mapped kernel stack to arm traps on, and the root server's
// entry point and initial stack/IPC-buffer virtual addresses.
type Image struct {
	RAMStart, RAMEnd       addr.Phys
	KernelStart, KernelEnd addr.Phys
	KernelStackTop         uintptr
	RootEntry              uintptr
	RootStack              uintptr
	RootIPCBufferVaddr     uintptr
}

// Boot carries the bump cursor across InitPhys, InitVirt and
// FinalizeBootInfo, which all draw from the same region of raw RAM in
// sequence before any of it is handed to the root server as Untyped.
type Boot struct {
	img  Image
	b    bump
	root cap.CNode
	tcb  *object.TCB
}

// InitPhys is boot phase one: carve the root CNode's slot array, the
// root VSpace's top-level page table, and the root TCB out of raw RAM
// with the boot-time bump allocator. These three objects must exist
// before untyped.Retype has anywhere to put capabilities, so they are
// carved directly rather than retyped.
func InitPhys(img Image) (*Boot, *errors.Error) {
	kfmt.Printf("boot: RAM [%x, %x) kernel [%x, %x)\n", uintptr(img.RAMStart), uintptr(img.RAMEnd), uintptr(img.KernelStart), uintptr(img.KernelEnd))

	bt := &Boot{img: img, b: bump{cursor: img.RAMStart, end: img.RAMEnd}}

	cnodeBytes := uintptr(1<<RootCNodeRadix) * cslotSize
	cnodeFrame, ok := bt.b.alloc(cnodeBytes, addr.PageSize)
	if !ok {
		return nil, errors.New(errors.NoMemory)
	}
	bt.root = cap.CNode{Frame: cnodeFrame, Radix: RootCNodeRadix}

	vspaceFrame, ok := bt.b.allocFrame()
	if !ok {
		return nil, errors.New(errors.NoMemory)
	}

	tcbFrame, ok := bt.b.alloc(tcbSize, addr.PageSize)
	if !ok {
		return nil, errors.New(errors.NoMemory)
	}
	bt.tcb = tcbAt(tcbFrame)

	bt.root.Slot(slotRootCNode).Cap = cap.NewCNode(uintptr(cnodeFrame), RootCNodeRadix)
	bt.root.Slot(slotRootVSpace).Cap = cap.NewPageTable(uintptr(vspaceFrame), true)
	bt.root.Slot(slotIrqControl).Cap = cap.NewIrqControl()

	bt.tcb.CSpaceRoot.Cap = bt.root.Slot(slotRootCNode).Cap
	bt.tcb.VSpaceRoot.Cap = bt.root.Slot(slotRootVSpace).Cap
	bt.tcb.Registers.Sepc = uint64(img.RootEntry)
	bt.tcb.Registers.SP = uint64(img.RootStack)

	return bt, nil
}

// InitVirt is boot phase two: install the permanent kernel window over
// every byte of RAM InitPhys knows about, arming the hart to translate
// addresses exactly the way every other package assumes (Phys values
// dereferenced only via ToKernelVirt), then arms the trap vector. It
// runs before FinalizeBootInfo specifically so the kernel window's own
// page-table fan-out keeps drawing from the same bump cursor InitPhys
// started — none of that storage may later be handed to the root
// server as Untyped.
func (bt *Boot) InitVirt() *errors.Error {
	table := object.PageTableOf(bt.root.Slot(slotRootVSpace).Cap)
	table.Zero()

	ram := []vm.RAMRegion{{Start: bt.img.RAMStart, End: bt.img.RAMEnd}}
	if err := vm.InstallKernelWindow(table, ram, bt.img.KernelStart, bt.img.KernelEnd, bt.b.allocFrame); err != nil {
		return err
	}
	vm.Activate(table)
	kfmt.Printf("boot: kernel window active, stvec armed\n")

	trap.Init(bt.img.KernelStackTop)
	return nil
}

// RootBootInfoVaddr is the fixed user-virtual address FinalizeBootInfo
// maps the BootInfo page at in the root server's own VSpace — spec.md
// §6 specifies BootInfo's layout but, consistent with the ELF-loader
// hand-off contract, leaves where the root server finds it to the
// loader's convention; this kernel always maps it here and hands the
// root server the same address in Registers.A0.
const RootBootInfoVaddr = uintptr(0x0000_0040_0000_0000)

// FinalizeBootInfo is boot phase three: whatever RAM the bump cursor has
// not yet consumed becomes a single Untyped capability, and a BootInfo
// page is populated describing the whole layout and mapped read-only
// into the root server's VSpace — standing in for the ELF loader
// spec.md §6 otherwise assumes already did this before the kernel's
// first instruction. Must run after InitVirt so the kernel window's own
// page-table frames are excluded from the Untyped region handed to the
// root server, and the kernel window is already active so the freshly
// carved BootInfo page can be written through its kernel-virtual alias.
func (bt *Boot) FinalizeBootInfo() (*BootInfo, *errors.Error) {
	infoFrame, ok := bt.b.allocFrame()
	if !ok {
		return nil, errors.New(errors.NoMemory)
	}
	info := (*BootInfo)(unsafe.Pointer(toKernelPtr(infoFrame)))
	*info = BootInfo{
		RootCNodeIdx:      slotRootCNode,
		RootVSpaceIdx:     slotRootVSpace,
		RootIrqControlIdx: slotIrqControl,
		IPCBufferAddr:     uint64(bt.img.RootIPCBufferVaddr),
	}
	info.Msg[0] = uint64(bt.img.RootEntry)
	info.Msg[1] = uint64(bt.img.RootStack)

	// BootInfo's own leaf mapping uses MapPageAlloc rather than MapPage:
	// the intermediate page tables for RootBootInfoVaddr don't exist yet
	// and nothing has handed the root server a PageTable capability to
	// create them itself — this one mapping is kernel/boot's business,
	// not a capability invocation. It must run before the "remaining RAM
	// becomes one Untyped" step below, since it draws more frames from
	// the same bump cursor for its own intermediate tables; sizing the
	// Untyped region first would hand the root server bytes this
	// mapping is about to consume.
	table := object.PageTableOf(bt.root.Slot(slotRootVSpace).Cap)
	readOnlyUser := vm.FlagUser | vm.FlagRead
	if err := vm.MapPageAlloc(table, RootBootInfoVaddr, infoFrame, readOnlyUser, bt.b.allocFrame); err != nil {
		return nil, err
	}

	remaining := bt.b.remaining()
	if remaining == 0 {
		info.FirstEmptyIdx = slotFirstBoot
	} else {
		untypedBits := bitLen64(uint64(remaining))
		// bitLen64 rounds up to a power of two that may overshoot the
		// actual remaining bytes; shrink by one bit until the block
		// fits inside what the bump cursor actually has left.
		for untypedBits > 0 && uint64(1)<<untypedBits > uint64(remaining) {
			untypedBits--
		}
		bt.root.Slot(slotFirstBoot).Cap = cap.NewUntyped(uintptr(bt.b.cursor), untypedBits, false)
		info.UntypedNum = 1
		info.UntypedInfos[0] = UntypedInfo{Idx: slotFirstBoot, Bits: untypedBits, IsDevice: false}
		info.FirstEmptyIdx = slotFirstBoot + 1
		kfmt.Printf("boot: root untyped 2^%d bytes at %x\n", untypedBits, uintptr(bt.b.cursor))
	}

	bt.tcb.Registers.A0 = uint64(RootBootInfoVaddr)
	bt.tcb.Registers.A1 = uint64(bt.img.RootIPCBufferVaddr)
	return info, nil
}

// RootCNode returns the root server's CSpace root, for callers (tests,
// RootServerHandoff) that need it without re-deriving it from BootInfo.
func (bt *Boot) RootCNode() cap.CNode { return bt.root }

// RootTCB returns the root server's TCB.
func (bt *Boot) RootTCB() *object.TCB { return bt.tcb }

// RootServerHandoff implements the SUPPLEMENT "Root-server hand-off
// contract": it enqueues the root TCB InitPhys built, lets the
// scheduler pick it (the run queue holds nothing else yet, so this is
// always the root server), and performs the kernel's one sret that is
// not the tail end of a trap — control does not return here.
func RootServerHandoff(root *object.TCB) {
	kfmt.Printf("boot: entering root server at %x\n", uintptr(root.Registers.Sepc))
	sched.Enqueue(root)
	cur := sched.Schedule()
	trap.EnterUser(&cur.Registers)
}
