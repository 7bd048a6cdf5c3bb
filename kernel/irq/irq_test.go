package irq

import (
	"testing"
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/object"
	"rvkernel/kernel/sbi"
	"rvkernel/kernel/trap"
)

func withHostedTable(t *testing.T) {
	t.Helper()
	table = object.IRQTable{}

	restoreCSlot := cap.SetFrameResolver(func(f addr.Phys) uintptr { return uintptr(f) })
	prevNf := notificationFromFrame
	notificationFromFrame = func(f addr.Phys) unsafe.Pointer { return unsafe.Pointer(uintptr(f)) }

	t.Cleanup(func() {
		restoreCSlot()
		notificationFromFrame = prevNf
		table = object.IRQTable{}
	})
}

func newCaller(t *testing.T, radix uint8) (*object.TCB, cap.CNode) {
	t.Helper()
	withHostedTable(t)

	slots := make([]cap.CSlot, 1<<radix)
	root := cap.CNode{Frame: addr.Phys(uintptr(unsafe.Pointer(&slots[0]))), Radix: radix}

	caller := &object.TCB{}
	caller.CSpaceRoot.Cap = cap.NewCNode(uintptr(root.Frame), radix)
	return caller, root
}

func TestIrqControlGetMintsHandlerIntoDestSlot(t *testing.T) {
	caller, root := newCaller(t, 2)
	root.Slot(0).Cap = cap.NewIrqControl()
	root.Slot(2).Cap = cap.NewCNode(uintptr(root.Frame), 2) // destination CNode: the root itself

	target := root.Slot(0)
	r := &object.Registers{A0: 2 << 62, A1: 1, A2: 7}

	_, blocked, err := handleIrqControlGet(caller, target, r)
	if err != nil {
		t.Fatalf("IrqControlGet failed: %v", err)
	}
	if blocked {
		t.Fatal("IrqControlGet should never block")
	}

	dst := root.Slot(1)
	if dst.Cap.Type != cap.TypeIrqHandler {
		t.Fatalf("dst.Cap.Type = %v, want TypeIrqHandler", dst.Cap.Type)
	}
	if dst.Cap.IrqNumber() != 7 {
		t.Fatalf("dst.Cap.IrqNumber() = %d, want 7", dst.Cap.IrqNumber())
	}
	if !table.Slots[7].Claimed {
		t.Fatal("table.Slots[7].Claimed = false, want true")
	}
}

func TestIrqControlGetRejectsDoubleClaim(t *testing.T) {
	caller, root := newCaller(t, 2)
	root.Slot(0).Cap = cap.NewIrqControl()
	table.Slots[3].Claimed = true

	r := &object.Registers{A0: 0, A1: 1, A2: 3}
	_, _, err := handleIrqControlGet(caller, root.Slot(0), r)
	if err == nil || err.Kind != errors.InvalidOperation {
		t.Fatalf("err = %v, want InvalidOperation", err)
	}
}

func TestIrqHandlerSetNotificationBindsAndUnmasks(t *testing.T) {
	caller, root := newCaller(t, 2)
	var n object.Notification
	root.Slot(0).Cap = cap.Cap{Type: cap.TypeNotification, Object: uintptr(unsafe.Pointer(&n))}

	handlerSlot := root.Slot(1)
	handlerSlot.Cap = cap.NewIrqHandler(5)

	r := &object.Registers{A0: 0}
	_, _, err := handleIrqHandlerSetNotification(caller, handlerSlot, r)
	if err != nil {
		t.Fatalf("IrqHandlerSetNotification failed: %v", err)
	}
	if table.Slots[5].Bound != &n {
		t.Fatal("Slots[5].Bound does not point at the installed notification")
	}
	if !sbi.PLICEnabled(5) {
		t.Fatal("PLIC line 5 should be unmasked after SetNotification")
	}
}

func TestHandleExternalInterruptSignalsMasksAndAcks(t *testing.T) {
	withHostedTable(t)
	var n object.Notification
	table.Slots[9].Bound = &n
	table.Slots[9].Enabled = true
	sbi.PLICUnmask(9)

	HandleExternalInterrupt(9)

	if !n.BitIsSet || n.Word != 1 {
		t.Fatalf("notification not signaled: set=%v word=%#x", n.BitIsSet, n.Word)
	}
	if sbi.PLICEnabled(9) {
		t.Fatal("PLIC line 9 should be masked after delivery")
	}
}

func TestIrqHandlerAckReenablesLine(t *testing.T) {
	caller, root := newCaller(t, 2)
	handlerSlot := root.Slot(0)
	handlerSlot.Cap = cap.NewIrqHandler(12)
	table.Slots[12].Claimed = true
	sbi.PLICMask(12)

	r := &object.Registers{}
	_, _, err := handleIrqHandlerAck(caller, handlerSlot, r)
	if err != nil {
		t.Fatalf("IrqHandlerAck failed: %v", err)
	}
	if !sbi.PLICEnabled(12) {
		t.Fatal("PLIC line 12 should be unmasked after Ack")
	}
}

func TestDispatchTableWiresIrqInvocations(t *testing.T) {
	withHostedTable(t)
	caller, root := newCaller(t, 2)
	root.Slot(0).Cap = cap.NewIrqControl()
	root.Slot(2).Cap = cap.NewCNode(uintptr(root.Frame), 2) // destination CNode: the root itself

	caller.Registers.A6 = uint64(trap.IrqControlGet)
	caller.Registers.A7 = 0
	caller.Registers.A0 = 2 << 62
	caller.Registers.A1 = 1
	caller.Registers.A2 = 42

	trap.Syscall(caller)

	if errors.Kind(caller.Registers.A0) != 0 {
		t.Fatalf("status = %v, want ok", errors.Kind(caller.Registers.A0))
	}
	if root.Slot(1).Cap.Type != cap.TypeIrqHandler {
		t.Fatalf("slot 1 type = %v, want TypeIrqHandler", root.Slot(1).Cap.Type)
	}
}
