package object

import "rvkernel/kernel/cap"

// State is a thread's scheduling state.
type State uint8

const (
	Inactive State = iota
	Runnable
	Blocked
	Idle
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Runnable:
		return "Runnable"
	case Blocked:
		return "Blocked"
	case Idle:
		return "Idle"
	default:
		return "Unknown"
	}
}

// BlockedOn names what a Blocked thread is waiting on, so a debugger (or
// a future priority-inheritance scheme) can tell an endpoint rendezvous
// apart from a notification wait without kernel/object importing
// kernel/ipc.
type BlockedOn uint8

const (
	BlockedOnNone BlockedOn = iota
	BlockedOnEndpoint
	BlockedOnNotification
)

// TCB is a thread control block: the full register file, the CSpace and
// VSpace roots the thread invokes capabilities and takes page faults
// through, its IPC buffer, an optional fault handler endpoint, and the
// intrusive queue hook used by exactly one of kernel/sched's run queue
// or an kernel/ipc wait queue at a time.
type TCB struct {
	Registers Registers
	State     State
	TimeSlice uint32

	CSpaceRoot cap.CSlot
	VSpaceRoot cap.CSlot
	IPCBuffer  cap.CSlot

	// FaultHandler is invoked (via EpSend) when this thread takes an
	// unrecoverable fault instead of being silently halted, restoring
	// the fault-endpoint behavior original_source's init.rs wires up
	// for the root server but the distilled capability model omitted.
	FaultHandler cap.CSlot

	BlockedOn BlockedOn

	// Msg holds a blocked sender's outgoing payload: Send parks the
	// message here when no receiver is waiting, and the Recv that later
	// dequeues the sender copies it out and clears it. Notifications do
	// not use it.
	Msg IPCMessage

	queueNext, queuePrev *TCB
}

// Resume marks the thread runnable, the transition kernel/sched performs
// after TcbResume or after an IPC partner satisfies a pending
// send/receive.
func (t *TCB) Resume() {
	t.State = Runnable
	t.BlockedOn = BlockedOnNone
}

// Block marks the thread blocked pending the given wait reason. Callers
// must have already removed t from the run queue.
func (t *TCB) Block(on BlockedOn) {
	t.State = Blocked
	t.BlockedOn = on
}

func (t *TCB) OnQueue() bool { return t.queueNext != nil || t.queuePrev != nil }
