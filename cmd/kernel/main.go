// Command kernel is the freestanding kernel's entrypoint. rt0_riscv64.s
// sets up a boot stack and jumps into the Go runtime's own startup path,
// which calls main once g0/m0 are initialized; main exists so the Go
// compiler can never treat the real kernel packages as dead code it is
// free to optimize away, the same role the teacher's root boot.go/stub.go
// pair plays for the amd64 multiboot target.
package main

import (
	"rvkernel/kernel/addr"
	"rvkernel/kernel/boot"
	"rvkernel/kernel/kfmt"
)

// Platform memory layout for the RISC-V "virt" board under OpenSBI's
// FW_JUMP firmware (spec.md §6): firmware occupies the low 2 MiB of RAM
// and jumps to the kernel in S-mode, interrupts disabled, at RAM+2MiB.
// A real bootloader supplying a device tree would discover ramSize from
// it instead of this fixed figure.
const (
	ramBase    = addr.Phys(0x8000_0000)
	ramSize    = uintptr(128) << 20
	kernelLoad = ramBase + 0x20_0000
	// kernelSpan bounds how much of the image InstallKernelWindow
	// excludes from the root Untyped region; generous for this
	// repository's size without needing a real linker-emitted _end
	// symbol, which cmd/kernel has no linker script to provide.
	kernelSpan = uintptr(2) << 20

	// No ELF loader exists in this repository (spec.md §1 names one as
	// an external collaborator the kernel never implements); the root
	// server is assumed pre-linked to run at this fixed virtual address
	// with its own fixed stack and IPC buffer pages, the same
	// placeholder convention kernel/boot's own BootInfo synthesis
	// already relies on for RootBootInfoVaddr.
	rootEntry     = uintptr(0x0000_0000_0020_0000)
	rootStackTop  = uintptr(0x0000_0000_0030_0000)
	rootIPCBuffer = uintptr(0x0000_0000_0040_0000)

	// kernelStackTop sits inside the permanent kernel window at a fixed
	// offset; InitVirt's kernel-window install maps every byte of RAM
	// there, so any address past RAM's own kernel-virtual alias is free
	// for kernel/trap's own stack without colliding with it.
	kernelStackTop = uintptr(addr.KernelBase) + uintptr(ramBase) + ramSize + addr.PageSize
)

// bootHartID and bootDTB are filled in by rt0_riscv64.s before it calls
// main, straight from the a0/a1 OpenSBI hands the kernel on entry (hart
// ID, device-tree blob pointer). Neither is consumed yet — this kernel
// never leaves single-hart mode and has no device-tree parser — but
// capturing them here rather than letting rt0 discard them keeps the
// trampoline's contract honest about what OpenSBI actually handed over.
var (
	bootHartID uint64
	bootDTB    uintptr
)

// main never returns: it runs kernel/boot's three phases in sequence
// and then hands the hart to the root server. The Go runtime's startup
// path, which rt0 enters via runtime·rt0_go, calls it, so the linker can
// never conclude the rest of the kernel tree is unreachable.
func main() {
	boot.InitConsole()
	kfmt.Printf("boot: hart %d, dtb=%x\n", bootHartID, bootDTB)

	img := boot.Image{
		RAMStart:           ramBase,
		RAMEnd:             ramBase + addr.Phys(ramSize),
		KernelStart:        kernelLoad,
		KernelEnd:          kernelLoad + addr.Phys(kernelSpan),
		KernelStackTop:     kernelStackTop,
		RootEntry:          rootEntry,
		RootStack:          rootStackTop,
		RootIPCBufferVaddr: rootIPCBuffer,
	}

	bt, err := boot.InitPhys(img)
	if err != nil {
		kfmt.Panic(err)
	}
	if err := bt.InitVirt(); err != nil {
		kfmt.Panic(err)
	}
	if _, err := bt.FinalizeBootInfo(); err != nil {
		kfmt.Panic(err)
	}

	boot.RootServerHandoff(bt.RootTCB())
}
