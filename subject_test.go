package substrates

import "testing"

func TestSubjectCompareToAncestorBeforeDescendant(t *testing.T) {
	p := NewPool()
	rootName, _ := p.Of("root")
	root := newSubject(rootName, KindCircuit, nil)
	childName, _ := p.Of("root.child")
	child := newSubject(childName, KindConduit, root)

	if root.CompareTo(child) >= 0 {
		t.Fatalf("ancestor must compare strictly before its descendant")
	}
	if child.CompareTo(root) <= 0 {
		t.Fatalf("descendant must compare strictly after its ancestor")
	}
	if root.CompareTo(root) != 0 {
		t.Fatalf("a subject must compare equal to itself")
	}
}

func TestSubjectWithin(t *testing.T) {
	p := NewPool()
	rootName, _ := p.Of("root")
	root := newSubject(rootName, KindCircuit, nil)
	midName, _ := p.Of("root.mid")
	mid := newSubject(midName, KindConduit, root)
	leafName, _ := p.Of("root.mid.leaf")
	leaf := newSubject(leafName, KindChannel, mid)

	if !leaf.Within(mid) {
		t.Fatal("leaf should be within its direct parent")
	}
	if !leaf.Within(root) {
		t.Fatal("leaf should be within its grandparent")
	}
	if leaf.Within(leaf) {
		t.Fatal("a subject is not within itself")
	}
	if root.Within(leaf) {
		t.Fatal("an ancestor is never within its descendant")
	}
}

func TestSubjectIDStableAndUnique(t *testing.T) {
	p := NewPool()
	name, _ := p.Of("x")
	a := newSubject(name, KindPipe, nil)
	b := newSubject(name, KindPipe, nil)
	if a.ID() == b.ID() {
		t.Fatal("two distinct Subjects must not share an id")
	}
	if a.ID() != a.ID() {
		t.Fatal("id must be stable across calls")
	}
}

func TestSubjectUnrelatedOrderedByID(t *testing.T) {
	p := NewPool()
	nameA, _ := p.Of("a")
	nameB, _ := p.Of("b")
	a := newSubject(nameA, KindPipe, nil)
	b := newSubject(nameB, KindPipe, nil)
	if a.CompareTo(b) != -1 {
		t.Fatalf("earlier-created unrelated subject should sort first, got %d", a.CompareTo(b))
	}
	if b.CompareTo(a) != 1 {
		t.Fatalf("later-created unrelated subject should sort after, got %d", b.CompareTo(a))
	}
}

func TestSubjectWithStatePreservesIdentityFields(t *testing.T) {
	p := NewPool()
	name, _ := p.Of("x")
	s := newSubject(name, KindScope, nil)
	slotName, _ := p.Of("meta")
	updated := s.withState(s.State().With(NewSlot(slotName, "v")))
	if updated.ID() != s.ID() || updated.Name() != s.Name() || updated.Kind() != s.Kind() {
		t.Fatal("withState must preserve id/name/kind")
	}
	if updated.State().Value(NewSlot(slotName, "")).Value() != "v" {
		t.Fatal("withState must carry the new State")
	}
}
