package object

import (
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
)

// MessageLen bounds how many registers' worth of payload a single
// send/recv rendezvous transfers inline. Kept on the TCB itself (rather
// than heap-allocated per call) since this kernel never runs a garbage
// collector past boot.
const MessageLen = 128

// IPCMessage is the payload most recently queued on or delivered to a
// thread by kernel/ipc.
type IPCMessage struct {
	Badge uint64
	Words [MessageLen]uint64
	Len   int
}

// IPCBufferPage mirrors spec.md §6's user-visible IPC buffer layout: one
// 4 KiB page per TCB holding a tag (here, just the message length —
// original_source's IPCBuffer::tag is an opaque usize the kernel never
// interprets beyond that), up to MessageLen words of payload, and a
// user-private scratch word the kernel never touches.
type IPCBufferPage struct {
	Tag      uint64
	Message  [MessageLen]uint64
	UserData uint64
}

// ipcBufferFromFrame resolves a Page capability's physical frame to a
// dereferenceable *IPCBufferPage, the same frame-to-pointer seam every
// other package keeps privately (kernel/vm's frameToKernelPtr,
// kernel/cap's frameToSlotPtr); overridden in tests so a hosted Go
// allocation can stand in for a mapped IPC buffer page.
var ipcBufferFromFrame = func(f addr.Phys) *IPCBufferPage {
	return (*IPCBufferPage)(unsafe.Pointer(f.ToKernelVirt().Uintptr()))
}

// SetIPCBufferResolver overrides how a Page capability's frame is turned
// into a dereferenceable *IPCBufferPage, returning a function that
// restores the previous resolver. Production code never calls this; it
// exists so hosted tests in kernel/ipc and kernel/trap can back a TCB's
// IPC buffer with a plain Go allocation, the same idiom kernel/cap's and
// kernel/vm's own SetFrameResolver provide for CNode and page-table
// frames.
func SetIPCBufferResolver(fn func(addr.Phys) *IPCBufferPage) (restore func()) {
	prev := ipcBufferFromFrame
	ipcBufferFromFrame = fn
	return func() { ipcBufferFromFrame = prev }
}

// ReadIPCMessage copies the message currently sitting in tcb's mapped
// IPC buffer page into an IPCMessage — the transport spec.md §4.5's
// Send uses for anything beyond the fast-path registers. A thread with
// no IPC buffer configured (TcbSetIpcBuffer never invoked) is treated
// as sending an empty message rather than faulting.
func ReadIPCMessage(tcb *TCB) IPCMessage {
	if tcb.IPCBuffer.Cap.Type != cap.TypePage {
		return IPCMessage{}
	}
	buf := ipcBufferFromFrame(PageFrame(tcb.IPCBuffer.Cap))
	length := int(buf.Tag)
	if length > MessageLen {
		length = MessageLen
	}
	msg := IPCMessage{Len: length}
	copy(msg.Words[:length], buf.Message[:length])
	return msg
}

// WriteIPCMessage copies msg into tcb's mapped IPC buffer page, the
// delivery half of ReadIPCMessage. A thread with no IPC buffer
// configured silently drops the payload; it can still observe the
// badge/status returned in its registers.
func WriteIPCMessage(tcb *TCB, msg IPCMessage) {
	if tcb.IPCBuffer.Cap.Type != cap.TypePage {
		return
	}
	buf := ipcBufferFromFrame(PageFrame(tcb.IPCBuffer.Cap))
	buf.Tag = uint64(msg.Len)
	copy(buf.Message[:msg.Len], msg.Words[:msg.Len])
}
