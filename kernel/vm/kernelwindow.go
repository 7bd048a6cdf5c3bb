package vm

import (
	"rvkernel/kernel/addr"
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/errors"
)

// kernelOnlyRWX is the flag set used for the coarse huge-page identity
// window: present, readable, writable and executable, but never
// user-accessible — ordinary page caps narrow this down per-mapping via
// kernel/object.Page, this window exists purely so kernel code can
// dereference any physical address through its KernelVirt alias.
//
// The walk levels in this package are numbered root-to-leaf (level 0 is
// the table satp points at; level Levels-1 is the ordinary 4 KiB leaf
// level), so a "level-0 huge mapping" — the coarse identity window spec
// describes — is the single giant 512 GiB leaf a root PTE can directly
// represent, installed straight into the Table passed to
// InstallKernelWindow with no intermediate tables at all.
const kernelOnlyRWX = FlagValid | FlagRead | FlagWrite | FlagExec

// RAMRegion names a contiguous range of physical RAM reported by the
// bootloader-produced BootInfo.
type RAMRegion struct {
	Start, End addr.Phys
}

// InstallKernelWindow is called exactly once, during kernel/boot, to
// build the permanent kernel root page table: every byte of physical RAM
// is identity-mapped into the upper half using level-0 (512 GiB) giant
// leaf mappings, and a granular sub-tree is carved out over the kernel's
// own code/rodata/data region down to 2 MiB leaves, so it can later be
// remapped with tighter permissions without disturbing the coarse RAM
// window that surrounds it.
func InstallKernelWindow(root Table, ram []RAMRegion, kernelStart, kernelEnd addr.Phys, allocFrame FrameAllocator) *errors.Error {
	for _, region := range ram {
		mapGiantIdentity(root, region)
	}

	return installKernelSubTree(root, kernelStart, kernelEnd, allocFrame)
}

func mapGiantIdentity(root Table, region RAMRegion) {
	const span = uintptr(1) << 39 // level-0 giant page

	start := uintptr(region.Start) &^ (span - 1)
	end := addr.AlignUp(uintptr(region.End), span)

	for va := start; va < end; va += span {
		e := root.entry(vpn(addr.KernelBase|va, 0))
		if e.hasFlags(FlagValid) {
			continue // already covered by a previous region's giant page
		}
		*e = 0
		e.setFrame(addr.Phys(va))
		e.setFlags(kernelOnlyRWX | FlagGlobal)
	}
}

// fanOut turns a leaf entry into an intermediate pointer to a freshly
// allocated child table whose entries reproduce the same mapping at
// childSpan granularity, or returns the existing child table if entry
// was already an intermediate pointer. base is the start of the region
// entry currently maps (aligned to parentSpan).
func fanOut(entry *pte, base uintptr, childSpan uintptr, allocFrame FrameAllocator) (Table, *errors.Error) {
	if entry.hasFlags(FlagValid) && !entry.isLeaf() {
		return Table{Frame: entry.frame()}, nil
	}
	if !entry.hasFlags(FlagValid) {
		return Table{}, errors.New(errors.PageTableNotMappedYet)
	}

	flags := PTEFlag(uint64(*entry)&(1<<ppnShift-1)) &^ FlagValid
	frame, ok := allocFrame()
	if !ok {
		return Table{}, errors.New(errors.NoMemory)
	}
	child := Table{Frame: frame}
	child.Zero()

	for i := uintptr(0); i < entriesPerTable; i++ {
		sub := child.entry(i)
		*sub = 0
		sub.setFrame(addr.Phys(base + i*childSpan))
		sub.setFlags(flags | FlagValid)
	}

	*entry = 0
	entry.setFrame(frame)
	entry.setFlags(FlagValid)
	return child, nil
}

// installKernelSubTree replaces the coarse giant-page mapping over
// [kernelStart, kernelEnd) with 2 MiB leaves, fanning the enclosing
// giant (512 GiB) entry out to 1 GiB entries and then the one enclosing
// 1 GiB entry out to 2 MiB entries.
func installKernelSubTree(root Table, kernelStart, kernelEnd addr.Phys, allocFrame FrameAllocator) *errors.Error {
	const gibSpan = uintptr(1) << 30
	const mibSpan = uintptr(1) << 21

	kva := addr.KernelBase | uintptr(kernelStart)

	giantBase := uintptr(kernelStart) &^ ((1 << 39) - 1)
	giantEntry := root.entry(vpn(kva, 0))
	level1, err := fanOut(giantEntry, giantBase, gibSpan, allocFrame)
	if err != nil {
		return err
	}

	gibBase := uintptr(kernelStart) &^ (gibSpan - 1)
	gibEntry := level1.entry(vpn(kva, 1))
	level2, err := fanOut(gibEntry, gibBase, mibSpan, allocFrame)
	if err != nil {
		return err
	}

	start := uintptr(kernelStart) &^ (mibSpan - 1)
	end := addr.AlignUp(uintptr(kernelEnd), mibSpan)
	for va := start; va < end; va += mibSpan {
		e := level2.entry(vpn(addr.KernelBase|va, 2))
		*e = 0
		e.setFrame(addr.Phys(va))
		e.setFlags(kernelOnlyRWX | FlagGlobal)
	}

	return nil
}

// Activate loads satp with root and fences the TLB. Called once at boot
// after InstallKernelWindow and again by kernel/sched each time Schedule
// picks a thread other than the idle thread.
func Activate(root Table) {
	cpu.SwitchPageTable(uint64(root.Frame) >> addr.PageShift)
}
