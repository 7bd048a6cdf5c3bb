package vm

import (
	"testing"
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/errors"
)

// In a hosted test process there is no real physical RAM to identity-map,
// so tests redirect frameToKernelPtr to treat a Table's "Frame" field as
// an already-dereferenceable host address, letting the engine's walk/map
// bookkeeping be exercised without real hardware. This is the same
// function-variable-override idiom the teacher applies to
// cpu.ActivePDT/cpu.SwitchPDT in kernel/mem/vmm's tests.
func withHostedFrames(t *testing.T) {
	t.Helper()
	prev := frameToKernelPtr
	frameToKernelPtr = func(f addr.Phys) uintptr { return uintptr(f) }
	t.Cleanup(func() { frameToKernelPtr = prev })
}

func newHostedFrame(t *testing.T) addr.Phys {
	t.Helper()
	// A Table is reached only through the uintptr in its Frame and a PTE
	// keeps only the frame number, so the buffer is pinned on the heap for
	// the test's lifetime and the returned frame is page-aligned inside it.
	buf := make([]byte, 2*addr.PageSize)
	t.Cleanup(func() { _ = buf })
	p := (uintptr(unsafe.Pointer(&buf[0])) + addr.PageSize - 1) &^ (addr.PageSize - 1)
	return addr.Phys(p)
}

func newRootTable(t *testing.T) Table {
	t.Helper()
	withHostedFrames(t)
	root := Table{Frame: newHostedFrame(t)}
	root.Zero()
	return root
}

func TestMapPageThenUnmapRestoresState(t *testing.T) {
	root := newRootTable(t)

	allocFrame := func() (addr.Phys, bool) { return newHostedFrame(t), true }

	const vaddr = uintptr(0x0000_0000_0100_0000)
	frame, _ := allocFrame()

	level, entry, err := Walk(root, vaddr, true, allocFrame)
	if err != nil {
		t.Fatalf("Walk(alloc) failed: %+v", err)
	}
	if level != Levels-1 {
		t.Fatalf("Walk stopped at level %d, want %d", level, Levels-1)
	}
	if entry.hasFlags(FlagValid) {
		t.Fatal("freshly walked leaf entry should not be valid yet")
	}

	if err := MapPage(root, vaddr, frame, FlagRead|FlagWrite); err != nil {
		t.Fatalf("MapPage: %+v", err)
	}

	if err := MapPage(root, vaddr, frame, FlagRead|FlagWrite); err == nil || err.Kind != errors.VaddressAlreadyMapped {
		t.Fatalf("expected VaddressAlreadyMapped, got %+v", err)
	}

	got, terr := Translate(root, vaddr+4)
	if terr != nil {
		t.Fatalf("Translate: %+v", terr)
	}
	if got != frame+4 {
		t.Fatalf("Translate() = %#x, want %#x", got, frame+4)
	}

	if err := UnmapPage(root, vaddr); err != nil {
		t.Fatalf("UnmapPage: %+v", err)
	}

	if _, err := Translate(root, vaddr); err == nil || err.Kind != errors.PteNotFound {
		t.Fatalf("expected PteNotFound after unmap, got %+v", err)
	}
}

func TestMapPageWithoutIntermediateFails(t *testing.T) {
	root := newRootTable(t)

	err := MapPage(root, 0x0000_0000_0100_0000, addr.Phys(0x1000), FlagRead|FlagWrite)
	if err == nil || err.Kind != errors.PageTableNotMappedYet {
		t.Fatalf("expected PageTableNotMappedYet, got %+v", err)
	}
}

func TestMapPageAllocCreatesMissingIntermediates(t *testing.T) {
	root := newRootTable(t)
	allocFrame := func() (addr.Phys, bool) { return newHostedFrame(t), true }

	const vaddr = uintptr(0x0000_0000_0100_0000)
	frame, _ := allocFrame()

	if err := MapPage(root, vaddr, frame, FlagRead|FlagWrite); err == nil || err.Kind != errors.PageTableNotMappedYet {
		t.Fatalf("expected MapPage to fail before tables exist, got %+v", err)
	}

	if err := MapPageAlloc(root, vaddr, frame, FlagRead|FlagWrite, allocFrame); err != nil {
		t.Fatalf("MapPageAlloc: %+v", err)
	}

	got, terr := Translate(root, vaddr+8)
	if terr != nil {
		t.Fatalf("Translate: %+v", terr)
	}
	if got != frame+8 {
		t.Fatalf("Translate() = %#x, want %#x", got, frame+8)
	}

	if err := MapPageAlloc(root, vaddr, frame, FlagRead|FlagWrite, allocFrame); err == nil || err.Kind != errors.VaddressAlreadyMapped {
		t.Fatalf("expected VaddressAlreadyMapped on second call, got %+v", err)
	}
}

func TestMapTableThenWalkReachesLeafLevel(t *testing.T) {
	root := newRootTable(t)
	child := Table{Frame: newHostedFrame(t)}
	child.Zero()

	const vaddr = uintptr(0x0000_0000_0100_0000)
	level, err := MapTable(root, vaddr, child)
	if err != nil {
		t.Fatalf("MapTable: %+v", err)
	}
	if level != 0 {
		t.Fatalf("MapTable installed at level %d, want 0 (the root entry is the first missing one)", level)
	}

	allocFrame := func() (addr.Phys, bool) { return newHostedFrame(t), true }
	gotLevel, entry, werr := Walk(root, vaddr, true, allocFrame)
	if werr != nil {
		t.Fatalf("Walk: %+v", werr)
	}
	if gotLevel != Levels-1 {
		t.Fatalf("Walk reached level %d, want %d", gotLevel, Levels-1)
	}
	if entry.hasFlags(FlagValid) {
		t.Fatal("leaf entry should still be empty")
	}
}

func TestPTEFrameRoundTrip(t *testing.T) {
	var p pte
	f := addr.Phys(0x1234_5000)
	p.setFrame(f)
	p.setFlags(FlagValid | FlagRead)
	if got := p.frame(); got != f {
		t.Fatalf("frame() = %#x, want %#x", got, f)
	}
	if !p.hasFlags(FlagRead) || !p.hasFlags(FlagValid) {
		t.Fatal("expected Valid|Read flags to survive setFrame")
	}
}
