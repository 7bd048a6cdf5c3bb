package cap

import "rvkernel/kernel/errors"

// mdbInsertAfter links child into the derivation tree as a new child of
// parent, placed immediately after parent in parent's sibling chain.
// Every entry created by retype, copy or mint goes through this so
// revoke can later find every descendant by walking the sibling chain
// until it runs past parent's own subtree.
func mdbInsertAfter(parent, child *CSlot) {
	child.mdbParent = parent
	child.mdbPrev = parent
	child.mdbNext = parent.mdbNext
	if parent.mdbNext != nil {
		parent.mdbNext.mdbPrev = child
	}
	parent.mdbNext = child
}

// mdbUnlink removes slot from the derivation tree without touching its
// capability or descendants' parent pointers — callers that are deleting
// slot must already know it has no descendants (HasDescendants is
// false), Revoke is what clears a subtree first.
func mdbUnlink(slot *CSlot) {
	if slot.mdbPrev != nil {
		slot.mdbPrev.mdbNext = slot.mdbNext
	}
	if slot.mdbNext != nil {
		slot.mdbNext.mdbPrev = slot.mdbPrev
	}
	slot.mdbParent = nil
	slot.mdbPrev = nil
	slot.mdbNext = nil
}

// HasDescendants reports whether any other CSlot in the tree lists slot
// as its mdbParent.
func (s *CSlot) HasDescendants() bool {
	for n := s.mdbNext; n != nil; n = n.mdbNext {
		if n.mdbParent == s {
			return true
		}
		if n.mdbParent != nil && !isDescendantOf(n.mdbParent, s) {
			break
		}
	}
	return false
}

func isDescendantOf(s, ancestor *CSlot) bool {
	for p := s; p != nil; p = p.mdbParent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// AdoptChild links dst as an MDB child of src without touching either
// slot's capability word. Used by kernel/untyped.Retype, which has
// already written a brand-new capability (not a copy of src's) into dst
// and just needs the revoke ancestry recorded.
func AdoptChild(src, dst *CSlot) {
	mdbInsertAfter(src, dst)
}

// Copy clones src's capability into dst, preserving type but zeroing the
// badge, and links dst as an MDB child of src. dst must be empty.
func Copy(src, dst *CSlot) *errors.Error {
	if src.Empty() {
		return errors.New(errors.SlotIsEmpty)
	}
	if !dst.Empty() {
		return errors.New(errors.NotEmptySlot)
	}
	c := src.Cap
	c.Badge = 0
	dst.Cap = c
	mdbInsertAfter(src, dst)
	return nil
}

// Mint is Copy but sets an explicit badge on the derived capability,
// used to tag Endpoint/Notification caps so receivers can tell senders
// apart.
func Mint(src, dst *CSlot, badge uint64) *errors.Error {
	if err := Copy(src, dst); err != nil {
		return err
	}
	dst.Cap.Badge = badge
	return nil
}

// Move relinks src's MDB position onto dst and empties src. Unlike Copy,
// no new derivation edge is created: dst simply becomes the slot src's
// descendants (if any) now call parent, and dst takes src's own parent
// edge too.
func Move(src, dst *CSlot) *errors.Error {
	if src.Empty() {
		return errors.New(errors.SlotIsEmpty)
	}
	if !dst.Empty() {
		return errors.New(errors.NotEmptySlot)
	}

	dst.Cap = src.Cap
	dst.mdbParent = src.mdbParent
	dst.mdbPrev = src.mdbPrev
	dst.mdbNext = src.mdbNext
	if src.mdbPrev != nil {
		src.mdbPrev.mdbNext = dst
	}
	if src.mdbNext != nil {
		src.mdbNext.mdbPrev = dst
	}
	for n := dst.mdbNext; n != nil; n = n.mdbNext {
		if n.mdbParent == src {
			n.mdbParent = dst
		} else if !isDescendantOf(n.mdbParent, dst) {
			break
		}
	}

	*src = CSlot{}
	return nil
}

// Delete empties slot. It fails with InvalidOperation if slot has any
// MDB descendants — callers must Revoke first.
func Delete(slot *CSlot) *errors.Error {
	if slot.Empty() {
		return errors.New(errors.SlotIsEmpty)
	}
	if slot.HasDescendants() {
		return errors.New(errors.InvalidOperation)
	}
	mdbUnlink(slot)
	slot.Cap = Cap{}
	return nil
}

// Revoke deletes every transitive MDB descendant of slot, then clears
// slot itself leaving it empty too. Descendants are always deleted
// child-first (innermost of the chain), so no descendant is ever
// revoked while something still derives from it.
func Revoke(slot *CSlot) *errors.Error {
	var descendants []*CSlot
	for n := slot.mdbNext; n != nil; n = n.mdbNext {
		if !isDescendantOf(n, slot) {
			break
		}
		descendants = append(descendants, n)
	}
	for i := len(descendants) - 1; i >= 0; i-- {
		d := descendants[i]
		mdbUnlink(d)
		d.Cap = Cap{}
	}
	mdbUnlink(slot)
	slot.Cap = Cap{}
	return nil
}
