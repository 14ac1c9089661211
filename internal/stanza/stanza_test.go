package stanza

import "testing"

func TestCapitalizeAndStem(t *testing.T) {
	if got := Capitalize(Stem("foo.ml")); got != "Foo" {
		t.Fatalf("got %q", got)
	}
	if got := Ext("foo.mli"); got != ".mli" {
		t.Fatalf("got %q", got)
	}
}

func TestDepMapValidateSelfEdge(t *testing.T) {
	m := DepMap{"A": {"A"}}
	if err := m.Validate(""); err == nil {
		t.Fatalf("expected self-edge error")
	}
}

func TestDepMapValidateUnknown(t *testing.T) {
	m := DepMap{"A": {"B"}}
	if err := m.Validate(""); err == nil {
		t.Fatalf("expected unknown-dependency error")
	}
	if err := m.Validate("B"); err != nil {
		t.Fatalf("alias module should be allowed: %v", err)
	}
}

func TestSelectResolve(t *testing.T) {
	s := Select{
		Choices: []SelectChoice{
			{Preds: []string{"unix"}, Src: "unix_impl.ml"},
			{Preds: nil, Src: "stub_impl.ml"},
		},
		ResultFile: "backend.ml",
	}
	src, ok := s.Resolve(map[string]bool{"unix": true})
	if !ok || src != "unix_impl.ml" {
		t.Fatalf("got src=%q ok=%v", src, ok)
	}
	src, ok = s.Resolve(map[string]bool{})
	if !ok || src != "stub_impl.ml" {
		t.Fatalf("expected fallback choice, got src=%q ok=%v", src, ok)
	}
}

func TestBestNameFallsBackToLocalName(t *testing.T) {
	l := LibSpec{Name: "mylib"}
	if got := l.BestName(); got != "mylib" {
		t.Fatalf("got %q", got)
	}
	l.PublicName = "mylib_public"
	if got := l.BestName(); got != "mylib_public" {
		t.Fatalf("got %q", got)
	}
}

func TestDedupFirstPreservesOrder(t *testing.T) {
	libs := []ResolvedLib{
		{External: &Package{Name: "a"}},
		{External: &Package{Name: "b"}},
		{External: &Package{Name: "a"}},
	}
	got := DedupFirst(libs)
	if len(got) != 2 || got[0].BestName() != "a" || got[1].BestName() != "b" {
		t.Fatalf("got %v", got)
	}
}
