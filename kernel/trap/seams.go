package trap

import (
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/object"
	"rvkernel/kernel/sched"
)

// tcbFromFrame, notificationFromFrame and endpointFromFrame resolve a
// capability's physical object pointer to a dereferenceable address, the
// same frameToKernelPtr/frameToSlotPtr seam kernel/vm, kernel/cap and
// kernel/untyped each keep locally: production always goes through
// Phys.ToKernelVirt(), tests override these to the identity function so
// a hosted Go allocation can stand in for a physical object.
var (
	tcbFromFrame = func(f addr.Phys) unsafe.Pointer {
		return unsafe.Pointer(f.ToKernelVirt().Uintptr())
	}
	notificationFromFrame = func(f addr.Phys) unsafe.Pointer {
		return unsafe.Pointer(f.ToKernelVirt().Uintptr())
	}
	endpointFromFrame = func(f addr.Phys) unsafe.Pointer {
		return unsafe.Pointer(f.ToKernelVirt().Uintptr())
	}
)

// resumeTCB marks tcb runnable and enqueues it on the scheduler's run
// queue, the TcbResume invocation's entire effect.
var resumeTCB = func(tcb *object.TCB) {
	sched.Enqueue(tcb)
}
