package bpath

import "testing"

func TestToBuildMirrorsSource(t *testing.T) {
	src := Source("lib/foo.ml")
	built := src.ToBuild("default")
	ctx, sub, ok := built.ExtractBuildContext()
	if !ok {
		t.Fatalf("ExtractBuildContext: ok=false")
	}
	if ctx != "default" || sub != "lib/foo.ml" {
		t.Fatalf("got ctx=%q sub=%q", ctx, sub)
	}
}

func TestTotalOrder(t *testing.T) {
	a := Source("a.ml")
	b := Source("b.ml")
	if !a.Less(b) || b.Less(a) {
		t.Fatalf("expected a < b")
	}
	if a.Less(a) {
		t.Fatalf("expected irreflexive order")
	}
}

func TestStructuralEquality(t *testing.T) {
	if Source("a/b.ml") != Source("a/b.ml") {
		t.Fatalf("expected structural equality for identical source paths")
	}
	if Build("default", "x") == Build("other", "x") {
		t.Fatalf("expected different contexts to differ")
	}
}

func TestReach(t *testing.T) {
	from := Source("lib/sub")
	to := Source("lib/other/foo.ml")
	if got, want := to.Reach(from), "../other/foo.ml"; got != want {
		t.Fatalf("Reach() = %q, want %q", got, want)
	}
}
