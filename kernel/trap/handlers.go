package trap

import (
	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/ipc"
	"rvkernel/kernel/object"
	"rvkernel/kernel/sbi"
	"rvkernel/kernel/untyped"
	"rvkernel/kernel/vm"
)

// putChar is overridden in tests; production wires it to sbi.PutChar at
// package init.
var putChar = sbi.PutChar

// --- CNode ---

func handleCNodeTraverse(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	root := cap.CNode{Frame: addr.Phys(target.Cap.Object), Radix: target.Cap.Radix()}
	slot, err := cap.Lookup(root, cap.Address(r.A0), uint(r.A1))
	if err != nil {
		return result{}, err
	}
	return result{value: uint64(slot.Cap.Type)}, nil
}

func handleCNodeCopy(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	dst, err := destSlot(caller, r.A0, r.A1)
	if err != nil {
		return result{}, err
	}
	if err := cap.Copy(target, dst); err != nil {
		return result{}, err
	}
	return result{}, nil
}

func handleCNodeMint(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	dst, err := destSlot(caller, r.A0, r.A1)
	if err != nil {
		return result{}, err
	}
	if err := cap.Mint(target, dst, r.A2); err != nil {
		return result{}, err
	}
	return result{}, nil
}

func handleCNodeMove(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	dst, err := destSlot(caller, r.A0, r.A1)
	if err != nil {
		return result{}, err
	}
	if err := cap.Move(target, dst); err != nil {
		return result{}, err
	}
	return result{}, nil
}

// destSlot resolves a0 = destination CNode cap_ptr (in caller's own
// CSpace) and a1 = the offset within it, the convention CNodeCopy/
// Mint/Move share for naming where the derived capability lands.
func destSlot(caller *object.TCB, destCNodePtr, offset uint64) (*cap.CSlot, *errors.Error) {
	cnodeSlot, err := lookupCap(caller, cap.Address(destCNodePtr))
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

// --- Untyped ---

func handleUntypedRetype(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	cnodeSlot, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return result{}, err
	}
	if cnodeSlot.Cap.Type != cap.TypeCNode {
		return result{}, errors.New(errors.UnexpectedCapType)
	}
	destCNode := cap.CNode{Frame: addr.Phys(cnodeSlot.Cap.Object), Radix: cnodeSlot.Cap.Radix()}
	objType := cap.Type(r.A2)
	userSize := uint8(r.A3)
	count := uintptr(r.A4)

	if err := untyped.Retype(target, destCNode, uintptr(r.A1), objType, userSize, count); err != nil {
		return result{}, err
	}
	return result{}, nil
}

// --- Tcb ---

func tcbOf(slot *cap.CSlot) *object.TCB {
	return (*object.TCB)(tcbFromFrame(addr.Phys(slot.Cap.Object)))
}

func handleTcbConfigure(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	tcb := tcbOf(target)

	cspace, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return result{}, err
	}
	vspace, err := lookupCap(caller, cap.Address(r.A1))
	if err != nil {
		return result{}, err
	}
	ipcBuf, err := lookupCap(caller, cap.Address(r.A2))
	if err != nil {
		return result{}, err
	}

	if err := cap.Copy(cspace, &tcb.CSpaceRoot); err != nil {
		return result{}, err
	}
	if err := cap.Copy(vspace, &tcb.VSpaceRoot); err != nil {
		return result{}, err
	}
	if err := cap.Copy(ipcBuf, &tcb.IPCBuffer); err != nil {
		return result{}, err
	}
	return result{}, nil
}

func handleTcbWriteReg(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	tcb := tcbOf(target)
	switch r.A0 {
	case 100:
		tcb.Registers.Sepc = r.A1
	case 101:
		tcb.Registers.Sstatus = r.A1
	default:
		reg := tcb.Registers.Reg(int(r.A0))
		if reg == nil {
			return result{}, errors.New(errors.InvalidOperation)
		}
		*reg = r.A1
	}
	return result{}, nil
}

func handleTcbResume(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	tcb := tcbOf(target)
	resumeTCB(tcb)
	return result{}, nil
}

func handleTcbSetIpcBuffer(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	tcb := tcbOf(target)
	page, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return result{}, err
	}
	if page.Cap.Type != cap.TypePage {
		return result{}, errors.New(errors.UnexpectedCapType)
	}
	if err := cap.Copy(page, &tcb.IPCBuffer); err != nil {
		return result{}, err
	}
	return result{}, nil
}

// handleTcbSetFaultHandler installs an Endpoint capability as target's
// fault handler, restoring the original_source init.rs behavior of
// routing a thread's faults to a configured endpoint instead of leaving
// it Inactive forever — see handleFault in entry.go.
func handleTcbSetFaultHandler(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	tcb := tcbOf(target)
	ep, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return result{}, err
	}
	if ep.Cap.Type != cap.TypeEndpoint {
		return result{}, errors.New(errors.UnexpectedCapType)
	}
	if err := cap.Copy(ep, &tcb.FaultHandler); err != nil {
		return result{}, err
	}
	return result{}, nil
}

// --- Notification ---

func notificationOf(slot *cap.CSlot) *object.Notification {
	return (*object.Notification)(notificationFromFrame(addr.Phys(slot.Cap.Object)))
}

func handleNotifyWait(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	n := notificationOf(target)
	val, blocked := ipc.Wait(n, caller)
	if blocked {
		return result{blocked: true}, nil
	}
	return result{value: val}, nil
}

func handleNotifySend(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	n := notificationOf(target)
	ipc.Signal(n, r.A0|target.Cap.Badge)
	return result{}, nil
}

// --- Endpoint ---

func endpointOf(slot *cap.CSlot) *object.Endpoint {
	return (*object.Endpoint)(endpointFromFrame(addr.Phys(slot.Cap.Object)))
}

// handleEpSend reads the full message (tag plus up to
// object.MessageLen words) out of caller's own mapped IPC buffer page
// rather than a fixed handful of registers, per spec.md §4.5: Send
// copies "caller's IPC buffer (tag + up to MESSAGE_LEN=128 words)"
// into the receiver, not a fast-register subset of it.
func handleEpSend(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	ep := endpointOf(target)
	msg := object.ReadIPCMessage(caller)
	msg.Badge = target.Cap.Badge

	if ipc.Send(ep, caller, msg) {
		return result{blocked: true}, nil
	}
	return result{}, nil
}

func handleEpRecv(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	ep := endpointOf(target)
	badge, blocked := ipc.Recv(ep, caller)
	if blocked {
		return result{blocked: true}, nil
	}
	return result{value: badge}, nil
}

// --- Page / PageTable ---

func handlePageMap(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	rootSlot, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return result{}, err
	}
	if rootSlot.Cap.Type != cap.TypePageTable {
		return result{}, errors.New(errors.UnexpectedCapType)
	}
	root := object.PageTableOf(rootSlot.Cap)
	vaddr := uintptr(r.A1)
	rights := cap.Rights(r.A2)

	if err := vm.MapPage(root, vaddr, object.PageFrame(target.Cap), object.PTEFlagsForRights(rights)); err != nil {
		return result{}, err
	}
	target.Cap = target.Cap.WithPageMapped(vaddr)
	return result{}, nil
}

func handlePageUnMap(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	if !target.Cap.PageIsMapped() {
		return result{}, errors.New(errors.PageNotMappedYet)
	}
	rootSlot, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return result{}, err
	}
	root := object.PageTableOf(rootSlot.Cap)
	if err := vm.UnmapPage(root, target.Cap.PageMappedVaddr()); err != nil {
		return result{}, err
	}
	target.Cap = target.Cap.WithPageUnmapped()
	return result{}, nil
}

func handlePageTableMap(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	rootSlot, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return result{}, err
	}
	if rootSlot.Cap.Type != cap.TypePageTable || !rootSlot.Cap.IsRootPageTable() {
		return result{}, errors.New(errors.NotRootPageTable)
	}
	root := object.PageTableOf(rootSlot.Cap)
	vaddr := uintptr(r.A1)
	child := object.PageTableOf(target.Cap)

	if _, err := vm.MapTable(root, vaddr, child); err != nil {
		return result{}, err
	}
	target.Cap = target.Cap.WithMapped(vaddr)
	return result{}, nil
}

func handlePageTableUnMap(caller *object.TCB, target *cap.CSlot, r *object.Registers) (result, *errors.Error) {
	if !target.Cap.IsMapped() {
		return result{}, errors.New(errors.PageTableNotMappedYet)
	}
	rootSlot, err := lookupCap(caller, cap.Address(r.A0))
	if err != nil {
		return result{}, err
	}
	root := object.PageTableOf(rootSlot.Cap)
	level, err := pageTableLevel(root, target.Cap.MappedVaddr())
	if err != nil {
		return result{}, err
	}
	if err := vm.UnmapTable(root, target.Cap.MappedVaddr(), level); err != nil {
		return result{}, err
	}
	target.Cap = target.Cap.WithUnmapped()
	return result{}, nil
}

func pageTableLevel(root vm.Table, vaddr uintptr) (int, *errors.Error) {
	level, _, err := vm.Walk(root, vaddr, false, nil)
	return level, err
}
