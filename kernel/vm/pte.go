// Package vm implements the sv48 page-table engine: walking, mapping,
// unmapping and the one-time kernel-window install. It knows nothing
// about capabilities — kernel/cap and kernel/object attach capability
// metadata (rights, is_mapped, mapped_vaddr) around the raw operations
// exposed here, following the teacher's split between
// kernel/mem/vmm (mechanism) and the object layer that wraps it.
package vm

import "rvkernel/kernel/addr"

// Levels is the sv48 page-table depth. Level 0 is the root table (walked
// first, VPN bits 47:39); level 3 is the leaf level (VPN bits 20:12,
// ordinary 4 KiB pages).
const Levels = 4

// levelShift[i] is the bit position of VPN[i] within a virtual address.
var levelShift = [Levels]uint{39, 30, 21, 12}

// levelSpan[i] is the number of bytes one entry at level i covers.
var levelSpan = [Levels]uintptr{1 << 39, 1 << 30, 1 << 21, 1 << 12}

const entriesPerTable = 512

// PTEFlag is a bit in a page table entry, matching the RISC-V sv48
// encoding exactly (bits 0-7 of the 64-bit word).
type PTEFlag uint64

const (
	FlagValid PTEFlag = 1 << iota
	FlagRead
	FlagWrite
	FlagExec
	FlagUser
	FlagGlobal
	FlagAccessed
	FlagDirty
)

// isLeafFlags is the mask of flags that mark a PTE as a leaf (one of
// R/W/X set); a PTE with only FlagValid set is an intermediate pointer
// to the next-level table.
const isLeafFlags = FlagRead | FlagWrite | FlagExec

const ppnShift = 10
const ppnMask = uint64((1 << 44) - 1)

// pte is one 64-bit sv48 page table entry.
type pte uint64

func (p pte) hasFlags(f PTEFlag) bool { return uint64(p)&uint64(f) == uint64(f) }
func (p *pte) setFlags(f PTEFlag)     { *p = pte(uint64(*p) | uint64(f)) }
func (p *pte) clearFlags(f PTEFlag)   { *p = pte(uint64(*p) &^ uint64(f)) }
func (p pte) isLeaf() bool            { return uint64(p)&uint64(isLeafFlags) != 0 }

// ppn returns the physical page number (frame address >> 12) stored in
// the entry.
func (p pte) ppn() uint64 { return (uint64(p) >> ppnShift) & ppnMask }

func (p pte) frame() addr.Phys { return addr.Phys(p.ppn() << addr.PageShift) }

func (p *pte) setFrame(f addr.Phys) {
	cleared := uint64(*p) &^ (ppnMask << ppnShift)
	*p = pte(cleared | ((uint64(f) >> addr.PageShift) & ppnMask << ppnShift))
}

func vpn(va uintptr, level int) uintptr {
	return (va >> levelShift[level]) & (entriesPerTable - 1)
}
