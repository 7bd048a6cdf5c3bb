// Package ipc implements the two message-passing primitives capability
// invocations drive: synchronous Endpoint rendezvous and asynchronous
// Notification signaling. The state machines mirror
// object/endpoint.rs and object/notification.rs from the capability
// model this kernel's object layer adopted; kernel/object's Endpoint and
// Notification structs hold pure state, this package holds the
// behavior over them, the same split the teacher keeps between a vmm
// page-table's data and the free functions that walk it.
package ipc

import "rvkernel/kernel/object"

// MessageLen mirrors object.MessageLen for callers that only import
// kernel/ipc.
const MessageLen = object.MessageLen

// Send attempts to rendezvous sender with a receiver already waiting on
// ep. If one is waiting, msg (tag plus up to MessageLen words, already
// read from sender's own IPC buffer by the caller) is copied into the
// receiver's mapped IPC buffer page, the receiver's pending syscall
// result registers are completed, and it is resumed immediately — it
// may be scheduled on a completely different call stack than this one,
// so its result must be finished here rather than left for some later
// code to notice. If no receiver is waiting, sender blocks with msg
// parked on its own TCB and joins ep's queue; Recv will pick it up
// later. Returns true if the thread had to block.
func Send(ep *object.Endpoint, sender *object.TCB, msg object.IPCMessage) bool {
	if ep.State == object.EpReceiversWaiting {
		receiver := ep.Queue.Pop()
		if ep.Queue.Empty() {
			ep.State = object.EpIdle
		}
		deliver(receiver, msg)
		receiver.Resume()
		return false
	}

	ep.State = object.EpSendersWaiting
	sender.Msg = msg
	sender.Block(object.BlockedOnEndpoint)
	ep.Queue.Push(sender)
	return true
}

// Recv attempts to rendezvous receiver with a sender already waiting on
// ep. If a sender is waiting, its parked message is copied into
// receiver's own mapped IPC buffer page and Recv returns the badge and
// false; handlers.go's non-blocking return path completes the rest of
// receiver's own result registers since receiver is its caller. If no
// sender is waiting, receiver blocks and joins ep's queue; the eventual
// Send call delivers directly into receiver's buffer and finishes its
// registers itself, so Recv returns zero and true to tell the caller it
// must park the thread.
func Recv(ep *object.Endpoint, receiver *object.TCB) (uint64, bool) {
	if ep.State == object.EpSendersWaiting {
		sender := ep.Queue.Pop()
		if ep.Queue.Empty() {
			ep.State = object.EpIdle
		}
		msg := sender.Msg
		sender.Msg = object.IPCMessage{}
		object.WriteIPCMessage(receiver, msg)
		sender.Registers.A0, sender.Registers.A1 = 0, 0
		sender.Resume()
		return msg.Badge, false
	}

	ep.State = object.EpReceiversWaiting
	receiver.Block(object.BlockedOnEndpoint)
	ep.Queue.Push(receiver)
	return 0, true
}

// deliver writes msg into tcb's mapped IPC buffer and completes the
// syscall result registers for the blocked invocation it is waking —
// EpRecv for a receiver being given a message, handled the same way
// Recv's immediate-rendezvous branch completes a sender's EpSend.
func deliver(tcb *object.TCB, msg object.IPCMessage) {
	object.WriteIPCMessage(tcb, msg)
	tcb.Registers.A0, tcb.Registers.A1 = 0, msg.Badge
}
