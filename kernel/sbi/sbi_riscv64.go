package sbi

import (
	"unsafe"

	"rvkernel/kernel/addr"
)

// Legacy SBI extension IDs (no function ID needed — each legacy
// extension implements exactly one call), per the binary interface
// OpenSBI's FW_JUMP firmware documents for console and timer access.
const (
	legacySetTimer       = 0
	legacyConsolePutChar = 1
)

// sbiCall issues `ecall` with eid in a7 and arg0 in a0, returning a0's
// value on return — the legacy SBI calling convention. Declared with no
// body per kernel/cpu's discipline that register-level code is never
// inlined into a higher-level package; implemented in sbi_riscv64.s.
func sbiCall(eid, arg0 uintptr) uintptr

// plicClaimOffset is the claim/complete register for supervisor-mode
// context 1 (hart 0's S-mode context on the "virt" board's default
// single-hart layout, per spec.md §6's platform description): reading
// it returns the highest-priority pending IRQ and claims it; writing
// the same offset with that IRQ number completes it.
const plicClaimOffset = uintptr(0x20_1004)

func plicReg() *uint32 {
	ptr := addr.Phys(PLICBase + plicClaimOffset).ToKernelVirt().Uintptr()
	return (*uint32)(unsafe.Pointer(ptr))
}

// init wires the production SBI/PLIC collaborators that kernel/boot
// would otherwise have to reach into this package to install — the one
// package in the kernel allowed to issue an ecall or touch PLIC MMIO,
// matching kernel/hal.go's role of being the sole point of contact with
// real devices in the teacher's own tree.
func init() {
	SetConsole(func(b byte) { sbiCall(legacyConsolePutChar, uintptr(b)) })
	setTimerFn = func(deadline uint64) { sbiCall(legacySetTimer, uintptr(deadline)) }
	plicClaimFn = func() uint32 { return *plicReg() }
	plicCompleteFn = func(irq uint32) { *plicReg() = irq }
}
