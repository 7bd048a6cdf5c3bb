// Package trap decodes scause on every trap into the kernel and routes
// ecalls through the capability-invocation dispatch table, grounded on
// the teacher's gate/irq split between a typed CPU-specific façade
// (kernel/cpu) and the dispatch logic layered over it.
package trap

// Cause is the decoded scause CSR: the top bit distinguishes interrupts
// from exceptions, the remaining bits are the cause code.
type Cause uint64

const interruptBit = uint64(1) << 63

// IsInterrupt reports whether c names an interrupt rather than an
// exception.
func (c Cause) IsInterrupt() bool { return uint64(c)&interruptBit != 0 }

// Code returns c's cause code with the interrupt bit masked off.
func (c Cause) Code() uint64 { return uint64(c) &^ interruptBit }

// Interrupt cause codes (scause with the top bit set).
const (
	CauseSupervisorSoftware = 1
	CauseSupervisorTimer    = 5
	CauseSupervisorExternal = 9
)

// Exception cause codes (scause with the top bit clear).
const (
	CauseInstructionMisaligned = 0
	CauseIllegalInstruction    = 2
	CauseBreakpoint            = 3
	CauseLoadMisaligned        = 4
	CauseLoadAccessFault       = 5
	CauseStoreMisaligned       = 6
	CauseStoreAccessFault      = 7
	CauseEcallFromUser         = 8
	CauseInstructionPageFault  = 12
	CauseLoadPageFault         = 13
	CauseStorePageFault        = 15
)

// DecodeCause splits a raw scause CSR value into an interrupt flag and a
// code, mirroring handler.rs's `scause & !(1 << (bits-1))` split.
func DecodeCause(raw uint64) Cause { return Cause(raw) }
