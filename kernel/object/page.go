package object

import (
	"rvkernel/kernel/addr"
	"rvkernel/kernel/cap"
	"rvkernel/kernel/vm"
)

// Page and PageTable objects are, per their definition, nothing more
// than the physical frame retype carved out for them — a 4 KiB data
// frame, or 512 sv48 PTE slots respectively. There is no extra
// bookkeeping struct: the capability word's Data field already carries
// rights/is_device/is_mapped/mapped_vaddr (kernel/cap), and the frame
// itself is addressed directly. These helpers just narrow a capability
// down to the concrete handle its invocation needs.

// PageFrame returns the physical frame a Page capability refers to.
func PageFrame(c cap.Cap) addr.Phys { return addr.Phys(c.Object) }

// PageTableOf returns the vm.Table handle a PageTable capability refers
// to, ready to be passed to vm.Walk/MapPage/MapTable.
func PageTableOf(c cap.Cap) vm.Table { return vm.Table{Frame: addr.Phys(c.Object)} }

// PTEFlagsForRights translates a Page capability's rights field into the
// PTE bits PageMap installs, always setting Valid and User since a Page
// capability is, by construction, only ever mapped into a user VSpace.
func PTEFlagsForRights(r cap.Rights) vm.PTEFlag {
	flags := vm.FlagValid | vm.FlagUser
	if r&cap.RightRead != 0 {
		flags |= vm.FlagRead
	}
	if r&cap.RightWrite != 0 {
		flags |= vm.FlagWrite
	}
	if r&cap.RightExecute != 0 {
		flags |= vm.FlagExec
	}
	return flags
}
