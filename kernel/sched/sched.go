// Package sched implements the run queue, time-slicing and thread
// switch this kernel's single hart uses to multiplex its threads:
// a plain FIFO of runnable TCBs plus a dedicated idle thread that parks
// the hart in wfi when nothing else is runnable, grounded on
// original_source's scheduler.rs steady-state behavior.
package sched

import (
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/object"
	"rvkernel/kernel/vm"
)

// DefaultTimeSlice is the number of timer ticks (at the platform's fixed
// tick rate) a thread runs before Tick preempts it in favor of the next
// runnable thread.
const DefaultTimeSlice = 20

var (
	runQueue object.TCBQueue
	current  *object.TCB
	idle     = &object.TCB{State: object.Idle}

	// activateVSpace is overridden in tests so Schedule's bookkeeping can
	// be exercised without loading satp, which only a real hart can do.
	activateVSpace = vm.Activate
)

// Enqueue makes t eligible to run, appending it to the tail of the run
// queue.
func Enqueue(t *object.TCB) {
	t.Resume()
	t.TimeSlice = DefaultTimeSlice
	runQueue.Push(t)
}

// Current returns the thread presently selected to run, or nil before
// the first Schedule call.
func Current() *object.TCB { return current }

// Preempt re-enqueues the currently running thread (if it is still
// Runnable — a thread that blocked inside its own syscall handler before
// Preempt was called must not be put back on the run queue) and hands
// off to Schedule.
func Preempt() *object.TCB {
	if current != nil && current != idle && current.State == object.Runnable {
		Enqueue(current)
	}
	return Schedule()
}

// Schedule pops the next runnable thread off the run queue, falling back
// to the idle thread when empty, and activates its VSpace. It does not
// save/restore registers itself — kernel/trap's exit path does that
// around the call using the Registers already embedded in each TCB.
func Schedule() *object.TCB {
	next := runQueue.Pop()
	if next == nil {
		next = idle
	}
	current = next
	if next != idle {
		activateVSpace(object.PageTableOf(next.VSpaceRoot.Cap))
	}
	return next
}

// Tick is called on every timer interrupt. It decrements the current
// thread's time slice and reports whether Preempt should be called to
// rotate to the next thread.
func Tick() bool {
	if current == nil || current == idle {
		return true
	}
	if current.TimeSlice == 0 {
		return true
	}
	current.TimeSlice--
	return current.TimeSlice == 0
}

// IdleLoop parks the hart until the next interrupt by executing one wfi.
// Nothing in this repository calls it.
func IdleLoop() {
	cpu.WaitForInterrupt()
}
