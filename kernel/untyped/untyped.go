// Package untyped implements retype: the only way new kernel objects
// come into existence. Every byte of memory this kernel ever hands out
// starts life as Untyped and is carved up by a bump-within-block cursor
// (free_idx) that only ever advances — nothing is returned to an
// Untyped until every capability derived from the carved region has
// been revoked.
package untyped

import (
	"unsafe"

	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/object"
)

const (
	pageAlign = addr.PageSize
	wordAlign = uintptr(unsafe.Sizeof(uintptr(0)))
)

// ObjectSize returns the number of bytes Retype must reserve for one
// instance of objType. For CNode, userSize is the bit-radix (entry count
// is 2^userSize); for a nested Untyped, userSize is the requested block
// size's log2, mirroring the capability's own block_size field.
func ObjectSize(objType cap.Type, userSize uint8) uint64 {
	switch objType {
	case cap.TypeUntyped:
		return uint64(1) << userSize
	case cap.TypeCNode:
		return uint64(1<<userSize) * uint64(unsafe.Sizeof(cap.CSlot{}))
	case cap.TypeTcb:
		return uint64(unsafe.Sizeof(object.TCB{}))
	case cap.TypeEndpoint:
		return uint64(unsafe.Sizeof(object.Endpoint{}))
	case cap.TypeNotification:
		return uint64(unsafe.Sizeof(object.Notification{}))
	case cap.TypePage:
		return uint64(addr.PageSize)
	case cap.TypePageTable:
		return uint64(addr.PageSize) // 512 8-byte PTEs
	default:
		return 0
	}
}

func alignmentFor(objType cap.Type) uintptr {
	switch objType {
	case cap.TypePage, cap.TypePageTable:
		return pageAlign
	default:
		return wordAlign
	}
}

// Retype carves count new objType objects (each of size
// ObjectSize(objType, userSize)) out of u's untyped block, writing their
// capabilities into consecutive slots of destCNode starting at
// destOffset. Every produced capability becomes an MDB child of u's
// slot, establishing the revoke ancestry spec.md requires.
func Retype(u *cap.CSlot, destCNode cap.CNode, destOffset uintptr, objType cap.Type, userSize uint8, count uintptr) *errors.Error {
	if u.Empty() {
		return errors.New(errors.SlotIsEmpty)
	}
	if u.Cap.Type != cap.TypeUntyped {
		return errors.New(errors.UnexpectedCapType)
	}
	if u.Cap.IsDevice() && !canRetypeFromDevice(objType) {
		return errors.New(errors.CanNotNewFromDeviceMemory)
	}
	if destOffset+count > destCNode.Len() {
		return errors.New(errors.NoEnoughSlot)
	}

	objSize := ObjectSize(objType, userSize)
	if objSize == 0 {
		return errors.New(errors.UnknownCapType)
	}
	align := alignmentFor(objType)

	blockBytes := uint64(1) << u.Cap.BlockSize()
	base := uintptr(u.Cap.Object)
	freeIdx := uintptr(u.Cap.FreeIdx())

	cursor := addr.AlignUp(freeIdx, align)
	if uint64(cursor)+objSize*uint64(count) > blockBytes {
		return errors.New(errors.NoMemory)
	}

	for i := uintptr(0); i < count; i++ {
		objAddr := base + cursor + uintptr(objSize)*i
		slot := destCNode.Slot(destOffset + i)
		if slot == nil || !slot.Empty() {
			return errors.New(errors.NotEmptySlot)
		}
		zeroObject(objAddr, objSize)
		slot.Cap = newCap(objType, objAddr, userSize, u.Cap.IsDevice())
		cap.AdoptChild(u, slot)
	}

	u.Cap = u.Cap.WithFreeIdx(uint64(cursor) + objSize*uint64(count))
	return nil
}

func canRetypeFromDevice(t cap.Type) bool {
	return t == cap.TypePage || t == cap.TypeUntyped
}

// newCap builds the freshly retyped capability. Object always carries a
// physical address (see the note in kernel/cap/lookup.go); code that
// needs to dereference it converts to a kernel-virtual address at the
// point of use.
func newCap(objType cap.Type, objAddr uintptr, userSize uint8, isDevice bool) cap.Cap {
	switch objType {
	case cap.TypeUntyped:
		return cap.NewUntyped(objAddr, userSize, isDevice)
	case cap.TypeCNode:
		return cap.NewCNode(objAddr, userSize)
	case cap.TypePage:
		return cap.NewPage(objAddr, cap.RightRead|cap.RightWrite, isDevice)
	case cap.TypePageTable:
		return cap.NewPageTable(objAddr, false)
	default:
		return cap.Cap{Type: objType, Object: objAddr}
	}
}

// zeroObject clears freshly carved storage before any capability can
// reach it, exactly as kernel/vm.Table.Zero does for a new page table.
func zeroObject(objAddr uintptr, size uint64) {
	ptr := frameToKernelPtr(addr.Phys(objAddr))
	buf := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
	for i := range buf {
		buf[i] = 0
	}
}

var frameToKernelPtr = func(f addr.Phys) uintptr { return f.ToKernelVirt().Uintptr() }
