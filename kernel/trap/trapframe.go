package trap

import "rvkernel/kernel/sched"

// trapFrame is the flat, register-number-indexed layout entry_riscv64.s
// saves x1..x31 and sepc/sstatus into on its own kernel stack before
// calling trapSaveAndDispatch — indices 0..30 hold x1..x31 (so frame[i-1]
// is xi, matching object.Registers.Reg's numbering exactly), index 31 is
// sepc, index 32 is sstatus. Keeping this as a flat array rather than a
// struct means the assembly never needs to know a single Go struct
// offset; all the layout-sensitive work happens here, in Go, against
// Registers.Reg.
type trapFrame = [33]uint64

// trapSaveAndDispatch is called by the assembly trap vector with a
// pointer to the frame it just built. It copies the frame into the
// trapping thread's TCB, runs HandleTrap to completion (which may swap
// out sched.Current() for an unrelated thread via a reschedule or IPC
// rendezvous), then overwrites the frame with whichever thread is
// current by the time HandleTrap returns — entry_riscv64.s restores
// exactly that frame and sret's, so control resumes in the new current
// thread rather than necessarily the one that trapped.
func trapSaveAndDispatch(frame *trapFrame) {
	cur := sched.Current()
	for i := 1; i <= 31; i++ {
		*cur.Registers.Reg(i) = frame[i-1]
	}
	cur.Registers.Sepc = frame[31]
	cur.Registers.Sstatus = frame[32]

	HandleTrap()

	next := sched.Current()
	for i := 1; i <= 31; i++ {
		frame[i-1] = *next.Registers.Reg(i)
	}
	frame[31] = next.Registers.Sepc
	frame[32] = next.Registers.Sstatus
}
