// Package boot implements the kernel's hand-off from the platform's rt0
// trampoline to the root server: parsing the BootInfo page (spec.md
// §6), carving the very first kernel objects out of raw physical RAM,
// installing the permanent kernel window, and resuming the root server
// thread. Grounded on the teacher's kmain.go `hal.InitTerminal` →
// `pmm.Init` → `vmm.Init` sequencing, generalized to a capability
// kernel's two-phase (physical, then virtual) boot discipline.
package boot

import "unsafe"

// MaxBootUntyped bounds the number of Untyped regions a BootInfo page
// can describe.
const MaxBootUntyped = 32

// MaxBootMsg is the length of BootInfo's generic scratch message array,
// used in this kernel to carry what the ELF loader contract needs beyond
// capability placement: the root server's entry point (Msg[0]) and its
// initial stack pointer (Msg[1]), since spec.md's BootInfo layout has no
// dedicated fields for them; the rest of Msg[] is unused before hand-off.
const MaxBootMsg = 32

// UntypedInfo describes one Untyped capability the ELF loader (or, in
// this repository, InitPhys standing in for it) has placed in the root
// CNode: which slot it occupies, the region's size as a power-of-two
// byte count, and whether it names device memory.
type UntypedInfo struct {
	Idx      uint64
	Bits     uint8
	IsDevice bool
}

// BootInfo is produced by the bootloader's ELF loader and consumed by
// the root server (and, to build the root server's own initial
// capabilities, by kernel/boot itself) — spec.md §6's layout:
// `{ipc_buffer_addr, root_cnode_idx, root_vspace_idx, untyped_num,
// first_empty_idx, msg[32], untyped_infos[32]={bits, idx, is_device}}`,
// extended with RootIrqControlIdx naming the root CNode slot InitPhys
// pre-populates with the single IrqControl authority capability (spec.md
// §4.3/§4.6 name IrqControl as a capability but the distilled layout
// omits a BootInfo field for handing it to the root server).
type BootInfo struct {
	IPCBufferAddr     uint64
	RootCNodeIdx      uint64
	RootVSpaceIdx     uint64
	RootIrqControlIdx uint64
	UntypedNum        uint64
	FirstEmptyIdx     uint64
	Msg               [MaxBootMsg]uint64
	UntypedInfos      [MaxBootUntyped]UntypedInfo
}

// Compile-time size assertion: spec.md §6 requires the BootInfo page to
// fit in a single 4 KiB frame. A negative array length here is a build
// error, exactly the way the teacher's constants files assert layout
// invariants without a runtime check.
var _ [4096 - int(unsafe.Sizeof(BootInfo{}))]byte

// ParseBootInfo reinterprets the kernel-virtual address ptr, which the
// caller must already have mapped, as a *BootInfo.
func ParseBootInfo(ptr uintptr) *BootInfo {
	return (*BootInfo)(unsafe.Pointer(ptr))
}
