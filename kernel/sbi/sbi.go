// Package sbi is the kernel's thin shim onto the platform collaborators
// named in spec.md §1 as out of scope: the OpenSBI firmware (console
// putchar, timer) and the board's PLIC. Exactly as kernel/hal.go keeps
// the teacher's kernel from talking to the VGA/serial hardware directly,
// nothing outside this package issues an ecall to firmware or touches
// the PLIC's MMIO registers.
package sbi

// Platform MMIO bases for the RISC-V "virt" board (spec.md §6).
const (
	UARTBase  = uintptr(0x1000_0000)
	CLINTBase = uintptr(0x0200_0000)
	PLICBase  = uintptr(0x0C00_0000)
	SSWIBase  = uintptr(0x02F0_0000) // ACLINT SSWI
)

const plicMaxIRQ = 1024

// consoleFn is installed by this package's own riscv64 init
// (sbi_riscv64.go) as the SBI legacy console putchar; tests override it
// directly.
var consoleFn = func(byte) {}

// SetConsole installs the function used by PutChar.
func SetConsole(fn func(byte)) { consoleFn = fn }

// PutChar writes a single byte to the platform console. This is the only
// path by which kernel code (and, via the PutChar invocation, user code)
// reaches the UART.
func PutChar(b byte) { consoleFn(b) }

// SetTimer requests the next supervisor-timer interrupt at the given
// absolute rdtime value, via an SBI timer extension ecall on real
// hardware; tests substitute setTimerFn.
var setTimerFn = func(deadline uint64) {}

// SetTimer rearms the timer for deadline, an absolute tick count
// comparable to cpu.ReadTime().
func SetTimer(deadline uint64) { setTimerFn(deadline) }

// PLICClaim returns the highest-priority pending IRQ number, or 0 if
// none is pending, exactly as reading the PLIC claim/complete register
// does on real hardware.
var plicClaimFn = func() uint32 { return 0 }

// PLICClaim claims the next pending interrupt.
func PLICClaim() uint32 { return plicClaimFn() }

// PLICComplete acknowledges IRQ irq, allowing the PLIC to re-raise it.
var plicCompleteFn = func(irq uint32) {}

// PLICComplete completes (acks) irq.
func PLICComplete(irq uint32) { plicCompleteFn(irq) }

// plicEnabled records the per-IRQ enable state for the single supervisor
// context this single-hart kernel runs under. PLICMask and PLICUnmask
// only update this array; they do not write the PLIC's enable-bit
// registers, so hardware delivery of a line is not changed by them.
var plicEnabled [plicMaxIRQ]bool

// PLICUnmask marks irq enabled in plicEnabled.
func PLICUnmask(irq uint32) {
	if irq < plicMaxIRQ {
		plicEnabled[irq] = true
	}
}

// PLICMask marks irq disabled in plicEnabled.
func PLICMask(irq uint32) {
	if irq < plicMaxIRQ {
		plicEnabled[irq] = false
	}
}

// PLICEnabled reports whether irq is currently unmasked. Exposed mainly
// for kernel/irq's tests.
func PLICEnabled(irq uint32) bool {
	return irq < plicMaxIRQ && plicEnabled[irq]
}
