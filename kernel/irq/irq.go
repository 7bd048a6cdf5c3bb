// Package irq implements the IRQ subsystem named in spec.md §4.8: a
// per-source-ID table binding PLIC lines to Notification capabilities,
// and the two capability types (IrqControl, IrqHandler) that gate access
// to it. It registers its own invocation handlers into kernel/trap's
// dispatch table and its own claim callback into kernel/trap's external-
// interrupt hook, the same one-directional wiring kernel/sbi's consoleFn
// indirection uses, so neither package imports the other.
package irq

import (
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/ipc"
	"rvkernel/kernel/object"
	"rvkernel/kernel/sbi"
	"rvkernel/kernel/trap"
)

// table is the kernel-global per-IRQ status array spec.md §4.8 names;
// there is exactly one, owned by this package.
var table object.IRQTable

// notificationFromFrame resolves a bound Notification capability's
// physical object address to a dereferenceable pointer. Overridden in
// tests the same way kernel/trap's own seam is.
var notificationFromFrame = func(f addr.Phys) unsafe.Pointer {
	return unsafe.Pointer(f.ToKernelVirt().Uintptr())
}

func init() {
	trap.RegisterHandler(cap.TypeIrqControl, trap.IrqControlGet, handleIrqControlGet)
	trap.RegisterHandler(cap.TypeIrqHandler, trap.IrqHandlerSetNotification, handleIrqHandlerSetNotification)
	trap.RegisterHandler(cap.TypeIrqHandler, trap.IrqHandlerAck, handleIrqHandlerAck)
	trap.SetExternalIRQHandler(HandleExternalInterrupt)
}

// destSlot resolves a0 = destination CNode cap_ptr (in caller's own
// CSpace) and a1 = the offset within it, mirroring kernel/trap's own
// CNodeCopy/Mint/Move destination convention so IrqControlGet reads the
// same way at the call site.
func destSlot(caller *object.TCB, destCNodePtr, offset uint64) (*cap.CSlot, *errors.Error) {
	root := cap.CNode{
		Frame: addr.Phys(caller.CSpaceRoot.Cap.Object),
		Radix: caller.CSpaceRoot.Cap.Radix(),
	}
	cnodeSlot, err := cap.Lookup(root, cap.Address(destCNodePtr), uint(root.Radix))
	if err != nil {
		return nil, err
	}
	if cnodeSlot.Cap.Type != cap.TypeCNode {
		return nil, errors.New(errors.UnexpectedCapType)
	}
	node := cap.CNode{Frame: addr.Phys(cnodeSlot.Cap.Object), Radix: cnodeSlot.Cap.Radix()}
	if offset >= uint64(node.Len()) {
		return nil, errors.New(errors.NoEnoughSlot)
	}
	return node.Slot(uintptr(offset)), nil
}

// lookupCap resolves address in caller's own CSpace root, the same flat
// single-level lookup kernel/trap's dispatcher uses.
func lookupCap(caller *object.TCB, address cap.Address) (*cap.CSlot, *errors.Error) {
	root := cap.CNode{
		Frame: addr.Phys(caller.CSpaceRoot.Cap.Object),
		Radix: caller.CSpaceRoot.Cap.Radix(),
	}
	return cap.Lookup(root, address, uint(root.Radix))
}

// handleIrqControlGet implements IrqControlGet(dest_cnode, dest_offset,
// irq): claiming irq for the first time and minting a fresh IrqHandler
// capability over it into the caller-named slot. A line already claimed
// by an earlier IrqControlGet cannot be claimed again; nothing clears the
// claim, so the line stays claimed even after the IrqHandler capability
// over it is deleted.
func handleIrqControlGet(caller *object.TCB, target *cap.CSlot, r *object.Registers) (uint64, bool, *errors.Error) {
	irqNum := uint32(r.A2)
	if irqNum >= object.MaxIRQ {
		return 0, false, errors.New(errors.InvalidOperation)
	}
	if table.Slots[irqNum].Claimed {
		return 0, false, errors.New(errors.InvalidOperation)
	}

	dst, err := destSlot(caller, r.A0, r.A1)
	if err != nil {
		return 0, false, err
	}
	if !dst.Empty() {
		return 0, false, errors.New(errors.NotEmptySlot)
	}

	// IrqHandler capabilities are not derived from IrqControl the way
	// Copy/Mint derive one capability from another over the same
	// object — IrqControl authorises the whole IRQ number space, not
	// one object a derivation edge could point at — so the fresh
	// capability is installed directly rather than through cap.Mint.
	table.Slots[irqNum].Claimed = true
	dst.Cap = cap.NewIrqHandler(irqNum)
	return 0, false, nil
}

// handleIrqHandlerSetNotification implements IrqHandlerSetNotification
// (notification_cap_ptr): binds the notification signaled on delivery
// and unmasks the PLIC line, per spec.md §4.8's "binds a notification,
// unmasks the PLIC line, sets status to Signal".
func handleIrqHandlerSetNotification(caller *object.TCB, target *cap.CSlot, r *object.Registers) (uint64, bool, *errors.Error) {
	irqNum := target.Cap.IrqNumber()
	nfSlot, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return 0, false, err
	}
	if nfSlot.Cap.Type != cap.TypeNotification {
		return 0, false, errors.New(errors.UnexpectedCapType)
	}

	slot := &table.Slots[irqNum]
	slot.Bound = (*object.Notification)(notificationFromFrame(addr.Phys(nfSlot.Cap.Object)))
	slot.Enabled = true
	sbi.PLICUnmask(irqNum)
	return 0, false, nil
}

// handleIrqHandlerAck implements IrqHandlerAck: re-enables delivery of a
// line masked by HandleExternalInterrupt once the handler has finished
// draining the device, the seL4-style completion step spec.md §4.8
// leaves implicit in its claim/mask/ack sequence.
func handleIrqHandlerAck(caller *object.TCB, target *cap.CSlot, r *object.Registers) (uint64, bool, *errors.Error) {
	irqNum := target.Cap.IrqNumber()
	slot := &table.Slots[irqNum]
	if !slot.Claimed {
		return 0, false, errors.New(errors.InvalidOperation)
	}
	slot.Enabled = true
	sbi.PLICUnmask(irqNum)
	return 0, false, nil
}

// HandleExternalInterrupt implements spec.md §4.8's interrupt path:
// claim → if bound, signal the notification → mask → ack. It is wired
// into kernel/trap's supervisor-external handler via
// trap.SetExternalIRQHandler, called with whatever kernel/sbi's PLIC
// claim register already returned.
func HandleExternalInterrupt(irqNum uint32) {
	if irqNum == 0 || irqNum >= object.MaxIRQ {
		return
	}
	slot := &table.Slots[irqNum]
	if slot.Bound != nil {
		ipc.Signal(slot.Bound, 1)
	}
	slot.Enabled = false
	sbi.PLICMask(irqNum)
	sbi.PLICComplete(irqNum)
}
