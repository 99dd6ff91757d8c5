package engine

import "testing"

func TestIndexTable_PlainPathUnchanged(t *testing.T) {
	table := NewIndexTable()
	if got := table.Resolve(".metadata.title"); got != ".metadata.title" {
		t.Fatalf("plain path changed: %q", got)
	}
}

func TestIndexTable_EmptyIdentityAlwaysFresh(t *testing.T) {
	table := NewIndexTable()
	if got := table.Resolve(".creator[]"); got != ".creator[0]" {
		t.Fatalf("expected .creator[0], got %q", got)
	}
	if got := table.Resolve(".creator[]"); got != ".creator[1]" {
		t.Fatalf("expected .creator[1], got %q", got)
	}
	if got := table.Resolve(".creator[]"); got != ".creator[2]" {
		t.Fatalf("expected .creator[2], got %q", got)
	}
}

func TestIndexTable_IdentityReused(t *testing.T) {
	table := NewIndexTable()
	if got := table.Resolve(".creator[alice]"); got != ".creator[0]" {
		t.Fatalf("expected .creator[0], got %q", got)
	}
	if got := table.Resolve(".creator[bob]"); got != ".creator[1]" {
		t.Fatalf("expected .creator[1], got %q", got)
	}
	// Same logical element from another mapping branch converges.
	if got := table.Resolve(".creator[alice]"); got != ".creator[0]" {
		t.Fatalf("expected stable .creator[0], got %q", got)
	}
}

func TestIndexTable_BasePathsIndependent(t *testing.T) {
	table := NewIndexTable()
	table.Resolve(".creator[alice]")
	if got := table.Resolve(".contributor[alice]"); got != ".contributor[0]" {
		t.Fatalf("base paths not independent: %q", got)
	}
}

func TestIndexTable_MixedIdentitiesContiguous(t *testing.T) {
	table := NewIndexTable()
	got := []string{
		table.Resolve(".item[en]"),
		table.Resolve(".item[]"),
		table.Resolve(".item[ja]"),
		table.Resolve(".item[en]"),
	}
	want := []string{".item[0]", ".item[1]", ".item[2]", ".item[0]"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
