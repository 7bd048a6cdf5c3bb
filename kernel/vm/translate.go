package vm

import (
	"rvkernel/kernel/addr"
	"rvkernel/kernel/errors"
)

// Translate returns the physical address a VSpace maps vaddr to, or
// PteNotFound if no leaf mapping covers it.
func Translate(root Table, vaddr uintptr) (addr.Phys, *errors.Error) {
	level, entry, err := Walk(root, vaddr, false, nil)
	if err != nil {
		return 0, err
	}
	if entry == nil || !entry.hasFlags(FlagValid) || !entry.isLeaf() {
		return 0, errors.New(errors.PteNotFound)
	}

	offset := uintptr(vaddr) & (levelSpan[level] - 1)
	return addr.Phys(uintptr(entry.frame()) + offset), nil
}
