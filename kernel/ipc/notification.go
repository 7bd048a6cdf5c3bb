package ipc

import "rvkernel/kernel/object"

// Signal ORs val into n's accumulator, immediately waking and delivering
// to a waiting thread if one exists, or leaving the bit set for the next
// Wait call otherwise. A woken waiter may run on a completely different
// call stack than this one, so its blocked NotifyWait's result registers
// are completed here rather than left for some later code to notice —
// the same reasoning endpoint.go's deliver applies to a woken receiver.
func Signal(n *object.Notification, val uint64) {
	if waiter := n.WaitQueue.Pop(); waiter != nil {
		waiter.Registers.A0, waiter.Registers.A1 = 0, val
		waiter.Resume()
		return
	}
	n.Word |= val
	n.BitIsSet = true
}

// Wait consumes and clears n's accumulated word if set, returning it
// immediately with false. Otherwise the calling thread blocks and joins
// n's wait queue; Signal will later resume it with the signaled value in
// Registers.A1, and Wait returns zero/true to tell the caller to park.
func Wait(n *object.Notification, waiter *object.TCB) (uint64, bool) {
	if n.BitIsSet {
		val := n.Word
		n.Word = 0
		n.BitIsSet = false
		return val, false
	}

	waiter.Block(object.BlockedOnNotification)
	n.WaitQueue.Push(waiter)
	return 0, true
}
