package cap

import (
	"testing"

	"rvkernel/kernel/errors"
)

func TestLookupSingleLevel(t *testing.T) {
	root := newHostedCNode(t, 4)
	want := NewUntyped(0x9000, 12, false)
	root.Slot(5).Cap = want

	got, err := Lookup(root, Address(5)<<60, 4)
	if err != nil {
		t.Fatalf("Lookup: %+v", err)
	}
	if got.Cap != want {
		t.Fatalf("Lookup() = %+v, want %+v", got.Cap, want)
	}
}

func TestLookupTwoLevels(t *testing.T) {
	root := newHostedCNode(t, 4)
	child := newHostedCNode(t, 4)

	root.Slot(1).Cap = NewCNode(uintptr(child.Frame), 4)
	want := NewUntyped(0xA000, 12, false)
	child.Slot(9).Cap = want

	address := Address(1)<<60 | Address(9)<<56
	got, err := Lookup(root, address, 8)
	if err != nil {
		t.Fatalf("Lookup: %+v", err)
	}
	if got.Cap != want {
		t.Fatalf("Lookup() = %+v, want %+v", got.Cap, want)
	}
}

func TestLookupCapNotFoundOnEmptyIntermediate(t *testing.T) {
	root := newHostedCNode(t, 4)
	if _, err := Lookup(root, Address(2)<<60, 8); err == nil || err.Kind != errors.CapNotFound {
		t.Fatalf("expected CapNotFound, got %+v", err)
	}
}

func TestLookupNoEnoughSlot(t *testing.T) {
	root := newHostedCNode(t, 4)
	if _, err := Lookup(root, Address(0), 2); err == nil || err.Kind != errors.NoEnoughSlot {
		t.Fatalf("expected NoEnoughSlot, got %+v", err)
	}
}

func TestLookupCapNotFoundWhenIntermediateIsNotCNode(t *testing.T) {
	root := newHostedCNode(t, 4)
	root.Slot(3).Cap = NewUntyped(0xB000, 12, false)

	address := Address(3)<<60 | Address(1)<<56
	if _, err := Lookup(root, address, 8); err == nil || err.Kind != errors.CapNotFound {
		t.Fatalf("expected CapNotFound, got %+v", err)
	}
}
