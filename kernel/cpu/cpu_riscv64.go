// Package cpu is the kernel's sole façade onto raw RISC-V state: CSR
// reads/writes, TLB maintenance, and the `wfi` idle instruction. Every
// function here is declared with no body and implemented as a naked
// assembly stub in cpu_riscv64.s, per the discipline that register-level
// code never gets inlined into higher-level packages — a caller that
// wants to touch hardware state always goes through a typed function,
// never through inline assembly of its own.
package cpu

// satpModeSv48 is the mode field value that selects sv48 paging when
// written into the high nibble of satp.
const satpModeSv48 = uint64(9) << 60

// EnableInterrupts sets sstatus.SIE, allowing interrupts to preempt
// kernel execution. Nothing in this repository calls it.
func EnableInterrupts()

// DisableInterrupts clears sstatus.SIE.
func DisableInterrupts()

// WaitForInterrupt executes a single wfi and returns; it does not change
// sstatus.SIE.
func WaitForInterrupt()

// FlushTLBEntry flushes the TLB entry that maps vaddr (sfence.vma rs1).
func FlushTLBEntry(vaddr uintptr)

// FlushTLBAll flushes the entire TLB (sfence.vma with no operands).
func FlushTLBAll()

// ReadSATP returns the raw value of the satp CSR.
func ReadSATP() uint64

// writeSATPRaw loads satp with the given raw value and executes
// sfence.vma. Unexported: callers go through SwitchPageTable so the
// mode bits can never be forgotten.
func writeSATPRaw(value uint64)

// SwitchPageTable installs rootPPN (a physical page number, not a byte
// address) as the active sv48 root page table and flushes the TLB.
func SwitchPageTable(rootPPN uint64) {
	writeSATPRaw(satpModeSv48 | (rootPPN & ((1 << 44) - 1)))
}

// ActivePageTablePPN returns the physical page number of the currently
// active root page table.
func ActivePageTablePPN() uint64 {
	return ReadSATP() & ((1 << 44) - 1)
}

// ReadTime returns the value of the rdtime pseudo-CSR, the free-running
// timebase counter used to compute time-slice expiry.
func ReadTime() uint64

// ReadSCause returns the scause CSR recorded by the trap entry stub for
// the trap currently being handled.
func ReadSCause() uint64

// ReadSTval returns the stval CSR (faulting address for page/access
// faults).
func ReadSTval() uint64

// WriteSTVEC points the trap vector CSR at handler, a kernel-virtual
// code address. Called exactly once, by kernel/trap's Init, to arm the
// hart before any ecall or interrupt can be taken.
func WriteSTVEC(handler uintptr)

// WriteSScratch installs value into sscratch, the per-hart scratch CSR
// the trap entry stub uses to recover a known-good stack pointer before
// any general-purpose register has been saved.
func WriteSScratch(value uint64)
