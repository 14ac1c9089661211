package stubs

import (
	"testing"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/toolenv"
)

func TestObjectRuleCTargetIsBuildTree(t *testing.T) {
	cc := toolenv.New(map[string]string{"OCAMLC": "ocamlc", "ocaml_where": "/usr/lib/ocaml"})
	_, obj, ok := ObjectRule("/root", bpath.Context("default"), "lib/foo", "bindings", C, cc, []string{"-O2"})
	if !ok {
		t.Fatalf("expected an object rule")
	}
	if obj.Kind() != bpath.KindBuild {
		t.Fatalf("stub object must live in the build tree, got kind %v", obj.Kind())
	}
}

func TestObjectRuleMissingCompilerSkipped(t *testing.T) {
	cc := toolenv.New(map[string]string{})
	_, _, ok := ObjectRule("/root", bpath.Context("default"), "lib/foo", "bindings", C, cc, nil)
	if ok {
		t.Fatalf("expected no rule when OCAMLC is not configured")
	}
}

func TestArchiveRuleRequiresOCamlmklib(t *testing.T) {
	cc := toolenv.New(map[string]string{})
	objs := []bpath.P{bpath.Build(bpath.Context("default"), "lib/foo/bindings.o")}
	_, ok := ArchiveRule("/root", bpath.Context("default"), "lib/foo", "foo", objs, cc, nil)
	if ok {
		t.Fatalf("expected no rule when OCAMLMKLIB is not configured")
	}
}

func TestArchiveRuleEmitsWithOCamlmklib(t *testing.T) {
	cc := toolenv.New(map[string]string{"OCAMLMKLIB": "ocamlmklib"})
	objs := []bpath.P{bpath.Build(bpath.Context("default"), "lib/foo/bindings.o")}
	_, ok := ArchiveRule("/root", bpath.Context("default"), "lib/foo", "foo", objs, cc, []string{"-lz"})
	if !ok {
		t.Fatalf("expected an archive rule to be emitted")
	}
}
