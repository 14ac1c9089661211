package moddb

import (
	"testing"

	"github.com/rdavison/dune/internal/oset"
)

func TestDiscoverPairsImplAndIntf(t *testing.T) {
	mods, err := Discover("lib/foo", []string{"foo.ml", "foo.mli", "bar.ml", "README.md"})
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 {
		t.Fatalf("got %d modules, want 2: %+v", len(mods), mods)
	}
	if mods[1].Name != "Foo" || !mods[1].HasIntf() || mods[1].IntfFile != "foo.mli" {
		t.Fatalf("got %+v", mods[1])
	}
	if mods[0].Name != "Bar" || mods[0].HasIntf() {
		t.Fatalf("got %+v", mods[0])
	}
}

func TestDiscoverIntfOnlyIsFatal(t *testing.T) {
	if _, err := Discover("lib/foo", []string{"foo.mli"}); err == nil {
		t.Fatalf("expected error for intf-only stem")
	}
}

func TestDiscoverDuplicateStemIsFatal(t *testing.T) {
	// Distinct filenames capitalizing to the same stem is not reachable via
	// a real filesystem listing (names differ only by case), but the
	// partition logic must still reject it defensively.
	if _, err := Discover("lib/foo", []string{"foo.ml", "Foo.ml"}); err == nil {
		t.Fatalf("expected error for duplicate module stem")
	}
}

func TestParseModulesFiltersAndRejectsUnknown(t *testing.T) {
	mods, _ := Discover("lib/foo", []string{"foo.ml", "bar.ml"})

	filtered, err := ParseModules("lib/foo", oset.Literal("Foo"), mods)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].Name != "Foo" {
		t.Fatalf("got %+v", filtered)
	}

	if _, err := ParseModules("lib/foo", oset.Literal("Nope"), mods); err == nil {
		t.Fatalf("expected fatal error for unknown module name")
	}
}

func TestParseModulesNilDeclaredKeepsAll(t *testing.T) {
	mods, _ := Discover("lib/foo", []string{"foo.ml", "bar.ml"})
	out, err := ParseModules("lib/foo", nil, mods)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d, want 2", len(out))
	}
}
