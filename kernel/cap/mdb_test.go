package cap

import "testing"

func TestCopyCreatesDerivedChildAndClearsBadge(t *testing.T) {
	n := newHostedCNode(t, 4)
	src := n.Slot(0)
	src.Cap = Cap{Type: TypeEndpoint, Object: 0x1000, Badge: 7}

	dst := n.Slot(1)
	if err := Copy(src, dst); err != nil {
		t.Fatalf("Copy: %+v", err)
	}
	if dst.Cap.Type != TypeEndpoint || dst.Cap.Object != 0x1000 {
		t.Fatalf("Copy() produced wrong cap: %+v", dst.Cap)
	}
	if dst.Cap.Badge != 0 {
		t.Fatalf("Copy() should zero the badge, got %d", dst.Cap.Badge)
	}
	if !src.HasDescendants() {
		t.Fatal("src should now have dst as an MDB descendant")
	}
}

func TestMintSetsBadge(t *testing.T) {
	n := newHostedCNode(t, 4)
	src := n.Slot(0)
	src.Cap = Cap{Type: TypeNotification, Object: 0x2000}

	dst := n.Slot(1)
	if err := Mint(src, dst, 42); err != nil {
		t.Fatalf("Mint: %+v", err)
	}
	if dst.Cap.Badge != 42 {
		t.Fatalf("Mint() badge = %d, want 42", dst.Cap.Badge)
	}
}

func TestDeleteFailsWithDescendants(t *testing.T) {
	n := newHostedCNode(t, 4)
	src := n.Slot(0)
	src.Cap = NewUntyped(0x3000, 12, false)
	dst := n.Slot(1)
	_ = Copy(src, dst)

	if err := Delete(src); err == nil {
		t.Fatal("expected Delete to fail while a descendant survives")
	}
	if err := Delete(dst); err != nil {
		t.Fatalf("Delete(dst): %+v", err)
	}
	if err := Delete(src); err != nil {
		t.Fatalf("Delete(src) after descendant cleared: %+v", err)
	}
}

func TestRevokeDeletesAllDescendants(t *testing.T) {
	n := newHostedCNode(t, 8)
	root := n.Slot(0)
	root.Cap = NewUntyped(0x4000, 20, false)

	var children []*CSlot
	for i := uintptr(1); i <= 5; i++ {
		c := n.Slot(i)
		if err := Copy(root, c); err != nil {
			t.Fatalf("Copy(%d): %+v", i, err)
		}
		children = append(children, c)
	}

	if err := Revoke(root); err != nil {
		t.Fatalf("Revoke: %+v", err)
	}
	if !root.Empty() {
		t.Fatal("Revoke should also clear the slot it was called on")
	}
	for i, c := range children {
		if !c.Empty() {
			t.Fatalf("child %d not cleared by Revoke", i)
		}
	}
}

func TestMoveRelinksMDBAndEmptiesSource(t *testing.T) {
	n := newHostedCNode(t, 4)
	grandparent := n.Slot(0)
	grandparent.Cap = NewUntyped(0x5000, 12, false)

	src := n.Slot(1)
	_ = Copy(grandparent, src)

	child := n.Slot(2)
	_ = Copy(src, child)

	dst := n.Slot(3)
	if err := Move(src, dst); err != nil {
		t.Fatalf("Move: %+v", err)
	}
	if !src.Empty() {
		t.Fatal("Move should empty the source slot")
	}
	if dst.Cap.Type != TypeUntyped {
		t.Fatalf("Move() dst cap wrong: %+v", dst.Cap)
	}
	if !dst.HasDescendants() {
		t.Fatal("dst should have inherited src's descendant")
	}
	if dst.mdbParent != grandparent {
		t.Fatal("dst should have inherited src's parent edge")
	}
}
