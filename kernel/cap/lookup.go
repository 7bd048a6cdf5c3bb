package cap

import (
	"rvkernel/kernel/addr"
	"rvkernel/kernel/errors"
)

// Capability Object fields always store a physical address, even for
// types (CNode, Tcb, Endpoint, Notification) whose storage Go code
// dereferences as a pointer — the conversion to a kernel-virtual,
// dereferenceable address happens at the point of use (here, and in
// kernel/object's Page/PageTable helpers), the same discipline
// kernel/vm.Table applies to its own Frame field.

// Address is a capability address: a bit-string read most-significant-
// bit-first and consumed radix-bits-at-a-time while descending CNodes,
// starting from the caller's root CNode.
type Address uint64

// Lookup resolves addr, whose most-significant depth bits are
// significant, starting at root. It fails with CapNotFound if any
// intermediate slot along the path is empty or not itself a CNode, or
// with NoEnoughSlot if depth is exhausted before reaching a leaf slot
// (i.e. the final CNode's radix is wider than the bits remaining).
func Lookup(root CNode, address Address, depth uint) (*CSlot, *errors.Error) {
	node := root
	consumed := uint(0)

	for {
		radix := uint(node.Radix)
		if radix == 0 || radix > depth-consumed {
			return nil, errors.New(errors.NoEnoughSlot)
		}

		shift := 64 - consumed - radix
		idx := uintptr(address>>shift) & (node.Len() - 1)
		slot := node.Slot(idx)
		consumed += radix

		if consumed == depth {
			if slot.Empty() {
				return nil, errors.New(errors.CapNotFound)
			}
			return slot, nil
		}

		if slot.Empty() || slot.Cap.Type != TypeCNode {
			return nil, errors.New(errors.CapNotFound)
		}
		node = CNode{Frame: addr.Phys(slot.Cap.Object), Radix: slot.Cap.Radix()}
	}
}
