package trap

import (
	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/object"
)

// result is a handler's outcome: either a value to return in a1, or a
// signal that the caller has been blocked and must not have its
// registers touched (the eventual wake writes them instead).
type result struct {
	value   uint64
	blocked bool
}

type handlerFn func(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error)

// dispatchTable is the closed (cap_type, invocation_label) match spec.md
// §9 asks for: a plain array indexed by both enums rather than a map, so
// routing a syscall never touches the allocator and the full set of
// legal combinations is visible as one literal at init time.
var dispatchTable [cap.TypeCount][invLabelCount]handlerFn

func init() {
	dispatchTable[cap.TypeCNode][CNodeTraverse] = handleCNodeTraverse
	dispatchTable[cap.TypeCNode][CNodeCopy] = handleCNodeCopy
	dispatchTable[cap.TypeCNode][CNodeMint] = handleCNodeMint
	dispatchTable[cap.TypeCNode][CNodeMove] = handleCNodeMove

	dispatchTable[cap.TypeUntyped][UntypedRetype] = handleUntypedRetype

	dispatchTable[cap.TypeTcb][TcbConfigure] = handleTcbConfigure
	dispatchTable[cap.TypeTcb][TcbWriteReg] = handleTcbWriteReg
	dispatchTable[cap.TypeTcb][TcbResume] = handleTcbResume
	dispatchTable[cap.TypeTcb][TcbSetIpcBuffer] = handleTcbSetIpcBuffer
	dispatchTable[cap.TypeTcb][TcbSetFaultHandler] = handleTcbSetFaultHandler

	dispatchTable[cap.TypeNotification][NotifyWait] = handleNotifyWait
	dispatchTable[cap.TypeNotification][NotifySend] = handleNotifySend

	dispatchTable[cap.TypeEndpoint][EpSend] = handleEpSend
	dispatchTable[cap.TypeEndpoint][EpRecv] = handleEpRecv

	dispatchTable[cap.TypePage][PageMap] = handlePageMap
	dispatchTable[cap.TypePage][PageUnMap] = handlePageUnMap

	dispatchTable[cap.TypePageTable][PageTableMap] = handlePageTableMap
	dispatchTable[cap.TypePageTable][PageTableUnMap] = handlePageTableUnMap

	// IrqControl/IrqHandler invocations are routed by kernel/irq, which
	// registers its own entries here via RegisterHandler so kernel/trap
	// never has to import kernel/irq (which itself depends on
	// kernel/object and kernel/sbi already wired through kernel/trap).
}

// RegisterHandler installs fn as the handler for (capType, label),
// called by kernel/irq's init to wire IrqControl/IrqHandler invocations
// into this table without kernel/trap needing to import kernel/irq.
func RegisterHandler(capType cap.Type, label InvLabel, fn func(caller *object.TCB, target *cap.CSlot, r *object.Registers) (uint64, bool, *errors.Error)) {
	dispatchTable[capType][label] = func(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
		value, blocked, err := fn(caller, target, r)
		return result{value: value, blocked: blocked}, err
	}
}

// lookupCap resolves a7 in caller's own CSpace root. The dispatcher only
// supports a flat, single-level root CNode (depth equal to the root's
// own radix) — sufficient for a first implementation; a root server that
// wants a deeper CSpace tree installs CNode capabilities inside its root
// CNode's slots and extends Lookup's depth itself via CNodeTraverse.
func lookupCap(caller *object.TCB, address cap.Address) (*cap.CSlot, *errors.Error) {
	root := cap.CNode{
		Frame: addr.Phys(caller.CSpaceRoot.Cap.Object),
		Radix: caller.CSpaceRoot.Cap.Radix(),
	}
	return cap.Lookup(root, address, uint(root.Radix))
}

// Syscall handles an ecall trap from caller, whose Registers already
// hold the user's argument registers as saved by the trap entry stub.
// It never blocks the hart itself: when a handler reports the caller
// blocked, Syscall leaves the registers untouched (the eventual IPC
// partner or signal fills them in) and the caller returns to its own
// reschedule point instead of back to user mode.
func Syscall(caller *object.TCB) {
	r := &caller.Registers
	label := InvLabel(r.A6)

	if label == PutChar {
		putChar(byte(r.A0))
		setOk(r, 0)
		return
	}

	target, err := lookupCap(caller, cap.Address(r.A7))
	if err != nil {
		setErr(r, err)
		return
	}

	if uint64(target.Cap.Type) >= uint64(cap.TypeCount) || uint64(label) >= uint64(invLabelCount) {
		setErr(r, errors.New(errors.UnknownInvocation))
		return
	}
	handler := dispatchTable[target.Cap.Type][label]
	if handler == nil {
		setErr(r, errors.New(errors.UnknownInvocation))
		return
	}

	res, err := handler(caller, target, r)
	if err != nil {
		setErr(r, err)
		return
	}
	if res.blocked {
		return
	}
	setOk(r, res.value)
}

func setOk(r *object.Registers, value uint64) {
	r.A0 = 0
	r.A1 = value
}

func setErr(r *object.Registers, err *errors.Error) {
	r.A0 = uint64(err.Kind)
	r.A1 = uint64(err.Value)
}
