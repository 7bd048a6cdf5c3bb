package vm

import (
	"rvkernel/kernel/addr"
	"rvkernel/kernel/errors"
)

// Walk descends root from the top level, following valid intermediate
// PTEs. If alloc is true, missing intermediate tables are allocated via
// allocFrame and linked in (only FlagValid set, so not a leaf); if alloc is false, Walk
// stops and returns the level of the first missing intermediate so the
// caller can install it explicitly (spec's map_table/map_page split).
//
// Walk never descends past a leaf PTE — if it encounters one before
// reaching level Levels-1 it stops there too, since leaves interrupt the
// table hierarchy.
func Walk(root Table, vaddr uintptr, alloc bool, allocFrame FrameAllocator) (level int, entry *pte, err *errors.Error) {
	table := root
	for lvl := 0; lvl < Levels; lvl++ {
		e := table.entry(vpn(vaddr, lvl))

		if lvl == Levels-1 {
			return lvl, e, nil
		}

		if !e.hasFlags(FlagValid) {
			if !alloc {
				return lvl, e, nil
			}

			frame, ok := allocFrame()
			if !ok {
				return lvl, nil, errors.New(errors.NoMemory)
			}

			Table{Frame: frame}.Zero()
			*e = 0
			e.setFrame(frame)
			e.setFlags(FlagValid)
			table = Table{Frame: frame}
			continue
		}

		if e.isLeaf() {
			return lvl, e, nil
		}

		table = Table{Frame: e.frame()}
	}

	return Levels - 1, nil, errors.New(errors.PteNotFound)
}

// MapPage installs a leaf mapping from vaddr to frame with the given
// flags (which must include at least one of R/W/X to mark it a leaf).
// Fails with VaddressAlreadyMapped if the leaf PTE is already valid, or
// PageTableNotMappedYet if an intermediate table is missing.
func MapPage(root Table, vaddr uintptr, frame addr.Phys, flags PTEFlag) *errors.Error {
	level, entry, err := Walk(root, vaddr, false, nil)
	if err != nil {
		return err
	}
	if level != Levels-1 {
		return errors.New(errors.PageTableNotMappedYet)
	}
	if entry.hasFlags(FlagValid) {
		return errors.New(errors.VaddressAlreadyMapped)
	}

	*entry = 0
	entry.setFrame(frame)
	entry.setFlags(flags | FlagValid)
	return nil
}

// MapPageAlloc behaves like MapPage but walks with alloc=true, creating
// any missing intermediate tables via allocFrame along the way. Used
// where there is no PageTable capability yet to map explicitly first —
// kernel/boot's own BootInfo mapping, before the root server exists to
// have invoked PageTableMap itself.
func MapPageAlloc(root Table, vaddr uintptr, frame addr.Phys, flags PTEFlag, allocFrame FrameAllocator) *errors.Error {
	level, entry, err := Walk(root, vaddr, true, allocFrame)
	if err != nil {
		return err
	}
	if level != Levels-1 {
		return errors.New(errors.PageTableNotMappedYet)
	}
	if entry.hasFlags(FlagValid) {
		return errors.New(errors.VaddressAlreadyMapped)
	}

	*entry = 0
	entry.setFrame(frame)
	entry.setFlags(flags | FlagValid)
	return nil
}

// MapTable installs an intermediate page table at the level that owns
// vaddr's entry for child, returning the level at which it was
// installed. Fails with PageTableAlreadyMapped if that slot is already
// valid.
func MapTable(root Table, vaddr uintptr, child Table) (levelInstalled int, err *errors.Error) {
	table := root
	for lvl := 0; lvl < Levels-1; lvl++ {
		e := table.entry(vpn(vaddr, lvl))
		if !e.hasFlags(FlagValid) {
			*e = 0
			e.setFrame(child.Frame)
			e.setFlags(FlagValid)
			return lvl, nil
		}
		if e.isLeaf() {
			return lvl, errors.New(errors.PageTableAlreadyMapped)
		}
		table = Table{Frame: e.frame()}
	}
	return Levels - 1, errors.New(errors.PageTableAlreadyMapped)
}

// UnmapPage clears the leaf PTE for vaddr. Fails with PageNotMappedYet
// if no leaf mapping exists.
func UnmapPage(root Table, vaddr uintptr) *errors.Error {
	level, entry, err := Walk(root, vaddr, false, nil)
	if err != nil {
		return err
	}
	if level != Levels-1 || !entry.hasFlags(FlagValid) {
		return errors.New(errors.PageNotMappedYet)
	}
	*entry = 0
	return nil
}

// UnmapTable clears the intermediate PTE at vaddr's entry for the given
// level. Fails with PageTableNotMappedYet if it is not present.
func UnmapTable(root Table, vaddr uintptr, level int) *errors.Error {
	table := root
	for lvl := 0; lvl < level; lvl++ {
		e := table.entry(vpn(vaddr, lvl))
		if !e.hasFlags(FlagValid) || e.isLeaf() {
			return errors.New(errors.PageTableNotMappedYet)
		}
		table = Table{Frame: e.frame()}
	}

	e := table.entry(vpn(vaddr, level))
	if !e.hasFlags(FlagValid) || e.isLeaf() {
		return errors.New(errors.PageTableNotMappedYet)
	}
	*e = 0
	return nil
}
