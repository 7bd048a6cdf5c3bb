package trap

import (
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/ipc"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/object"
	"rvkernel/kernel/sbi"
	"rvkernel/kernel/sched"
)

// timerTickInterval is the number of rdtime ticks between supervisor
// timer interrupts, the same fixed-rate rearm original_source's
// set_timer(10000) call used before timer.rs grew a real frequency
// calculation.
const timerTickInterval = 10_000

// trapVectorAddr returns the kernel-virtual address of the assembly trap
// vector (trapEntry in entry_riscv64.s), for installation into stvec.
// Declared with no body, following kernel/cpu's discipline that
// register-level code is never inlined into Go.
func trapVectorAddr() uintptr

// Init arms the hart to take traps at the assembly trap vector and
// primes sscratch with the top of the per-hart kernel stack, below which
// the vector saves each trap frame; the vector does not switch sp to it.
// Called once by kernel/boot after the kernel stack region is mapped.
func Init(kernelStackTop uintptr) {
	cpu.WriteSScratch(uint64(kernelStackTop))
	cpu.WriteSTVEC(trapVectorAddr())
}

// externalIRQHandler is registered by kernel/irq's init, keeping
// kernel/trap from importing kernel/irq (which itself must import
// kernel/trap to register IrqControl/IrqHandler invocations via
// RegisterHandler) — the same one-directional-dependency trick
// kernel/sbi's consoleFn indirection uses to avoid kernel/boot needing
// to import every platform driver.
var externalIRQHandler = func(irq uint32) {}

// SetExternalIRQHandler installs fn as the PLIC-claim handler called on
// every supervisor-external interrupt.
func SetExternalIRQHandler(fn func(irq uint32)) { externalIRQHandler = fn }

// enterUserFrame loads frame's GPRs and sepc/sstatus into the hart and
// executes sret, the same register-restore sequence entry_riscv64.s's
// trapEntry runs on its way out of a trap. Declared with no body per
// kernel/cpu's discipline; defined in entry_riscv64.s.
func enterUserFrame(frame *trapFrame)

// EnterUser performs the kernel's one sret that is not the tail of a
// trap: it loads r's full register file into the hart and switches to
// user mode at r.Sepc. Called exactly once, by kernel/boot's
// RootServerHandoff, to start the root server thread; every later
// thread switch instead falls out of HandleTrap's own restore path. It
// never returns.
func EnterUser(r *object.Registers) {
	var frame trapFrame
	for i := 1; i <= 31; i++ {
		frame[i-1] = *r.Reg(i)
	}
	frame[31] = r.Sepc
	frame[32] = r.Sstatus
	enterUserFrame(&frame)
}

// HandleTrap is called by the assembly trap vector once it has saved the
// trapping thread's full register file into sched.Current().Registers.
// It decodes scause and handles the trap to completion, possibly
// switching sched.Current() to a different thread (on reschedule or
// IPC rendezvous) before returning; the trap vector's exit half always
// reloads registers from whatever sched.Current() is by the time
// HandleTrap returns, so a thread switch falls out naturally rather than
// needing an explicit "context switch" call here.
func HandleTrap() {
	caller := sched.Current()
	cause := DecodeCause(cpu.ReadSCause())

	switch {
	case cause.IsInterrupt():
		handleInterrupt(cause)
	case cause.Code() == CauseEcallFromUser:
		caller.Registers.Sepc += 4
		Syscall(caller)
		if caller.State == object.Blocked {
			sched.Preempt()
		}
	default:
		handleFault(caller, cause)
	}
}

func handleInterrupt(cause Cause) {
	switch cause.Code() {
	case CauseSupervisorTimer:
		sbi.SetTimer(cpu.ReadTime() + timerTickInterval)
		if sched.Tick() {
			sched.Preempt()
		}
	case CauseSupervisorExternal:
		externalIRQHandler(sbi.PLICClaim())
	}
}

// handleFault implements spec.md §7's fault policy: the faulting thread
// never resumes on its own trap return. If it was configured with a
// fault handler endpoint the fault is delivered as an IPC (cause code,
// stval); otherwise the thread is left Inactive permanently. Either way
// a reschedule always follows since the trapping thread can no longer
// run.
func handleFault(caller *object.TCB, cause Cause) {
	caller.State = object.Inactive
	kfmt.Printf("trap: fault cause=%x at sepc=%x stval=%x\n", cause.Code(), caller.Registers.Sepc, cpu.ReadSTval())

	if !caller.FaultHandler.Empty() {
		ep := endpointOf(&caller.FaultHandler)
		msg := object.IPCMessage{Len: 2}
		msg.Words[0] = cause.Code()
		msg.Words[1] = cpu.ReadSTval()
		ipc.Send(ep, caller, msg)
	}

	sched.Preempt()
}
