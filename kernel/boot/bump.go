package boot

import (
	"unsafe"

	"rvkernel/kernel/addr"
)

// bump is the boot-time allocator named in SPEC_FULL.md's "Boot-time
// allocation discipline" supplement: a cursor over raw physical RAM that
// exists only long enough to carve the root CNode's backing storage, the
// root VSpace's top-level page table, and the root TCB — objects that
// must exist before untyped.Retype has a root CNode to write
// capabilities into. Once those are carved, the remainder of RAM becomes
// a single Untyped capability and every further allocation goes through
// untyped.Retype, exactly as kernel/mem/pmm.Init retires the teacher's
// own bootmem_allocator once the real allocator is ready.
type bump struct {
	cursor addr.Phys
	end    addr.Phys
}

// alloc reserves size bytes aligned to align (a power of two), zeroing
// them before returning, or reports failure if RAM is exhausted.
func (b *bump) alloc(size uintptr, align uintptr) (addr.Phys, bool) {
	base := addr.AlignUp(uintptr(b.cursor), align)
	if base+size > uintptr(b.end) {
		return 0, false
	}
	b.cursor = addr.Phys(base + size)
	zero(addr.Phys(base), size)
	return addr.Phys(base), true
}

// allocFrame satisfies vm.FrameAllocator, letting InstallKernelWindow's
// page-table fan-out draw from the same bump region during InitVirt.
func (b *bump) allocFrame() (addr.Phys, bool) {
	return b.alloc(addr.PageSize, addr.PageSize)
}

// remaining reports how many bytes are left between the cursor and end,
// the size of the Untyped region FinalizeBootInfo hands the root CNode
// once the fixed boot objects are carved.
func (b *bump) remaining() uintptr {
	return uintptr(b.end) - uintptr(b.cursor)
}

// toKernelPtr resolves a physical address to a dereferenceable one, the
// same frameToKernelPtr seam kernel/vm, kernel/cap and kernel/untyped
// each keep locally; overridden in tests so a hosted Go allocation can
// stand in for a region of physical RAM.
var toKernelPtr = func(p addr.Phys) uintptr { return p.ToKernelVirt().Uintptr() }

func zero(p addr.Phys, size uintptr) {
	ptr := toKernelPtr(p)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
	for i := range buf {
		buf[i] = 0
	}
}

// bitLen64 returns ceil(log2(n)), i.e. the smallest b such that
// n <= 1<<b — the log2 block size untyped.Retype's
// capability encoding expects (cap.NewUntyped's blockSize parameter).
func bitLen64(n uint64) uint8 {
	var b uint8
	for (uint64(1) << b) < n {
		b++
	}
	return b
}
