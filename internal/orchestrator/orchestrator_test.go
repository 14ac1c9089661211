package orchestrator

import (
	"testing"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/install"
	"github.com/rdavison/dune/internal/libdb"
	"github.com/rdavison/dune/internal/pkgdb"
	"github.com/rdavison/dune/internal/ppx"
	"github.com/rdavison/dune/internal/stanza"
	"github.com/rdavison/dune/internal/toolenv"
)

func testEnv() Env {
	return Env{
		Root:    "/root",
		Ctx:     bpath.Context("default"),
		Tools:   toolenv.New(map[string]string{"OCAMLC": "ocamlc", "OCAMLOPT": "ocamlopt", "OCAMLDEP": "ocamldep", "OCAML": "ocaml"}),
		Pkgs:    pkgdb.New(),
		Libs:    libdb.Index{},
		Drivers: ppx.NewDriverMemo(),
	}
}

func TestBuildLibraryEmitsCompileAndArchiveRules(t *testing.T) {
	spec := stanza.LibSpec{
		Name:  "mylib",
		Modes: map[string]bool{"byte": true, "native": true},
	}
	files := []string{"foo.ml", "bar.ml"}
	out, err := BuildLibrary(testEnv(), "lib/mylib", spec, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Rules) == 0 {
		t.Fatalf("expected at least one rule")
	}
	if out.Manifest == nil || len(out.Manifest.Sections) == 0 {
		t.Fatalf("expected the manifest to gain library artifacts")
	}
}

func TestBuildLibraryOptionalMissingDependencyDoesNotFail(t *testing.T) {
	spec := stanza.LibSpec{
		Name:      "mylib",
		Modes:     map[string]bool{"byte": true},
		Optional:  true,
		Libraries: []stanza.LibDep{{Direct: "nonexistent"}},
	}
	if _, err := BuildLibrary(testEnv(), "lib/mylib", spec, []string{"foo.ml"}); err != nil {
		t.Fatalf("an optional library's missing dependency must not fail generation: %v", err)
	}
}

func TestBuildLibraryRequiredMissingDependencyFails(t *testing.T) {
	spec := stanza.LibSpec{
		Name:      "mylib",
		Modes:     map[string]bool{"byte": true},
		Libraries: []stanza.LibDep{{Direct: "nonexistent"}},
	}
	if _, err := BuildLibrary(testEnv(), "lib/mylib", spec, []string{"foo.ml"}); err == nil {
		t.Fatalf("expected an error for a required missing dependency")
	}
}

func TestBuildExecutablesAddsOneBinEntry(t *testing.T) {
	spec := stanza.ExecutablesSpec{
		Names: []string{"mytool"},
		Modes: map[string]bool{"byte": true, "native": true},
	}
	out, err := BuildExecutables(testEnv(), "bin/mytool", spec, []string{"main.ml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Manifest.Sections[install.Bin]) != 1 {
		t.Fatalf("got %d bin entries, want 1", len(out.Manifest.Sections[install.Bin]))
	}
}

func TestBuildDirectoryDispatchesLibraryAndInstall(t *testing.T) {
	stanzas := []stanza.Stanza{
		{Kind: stanza.KindLibrary, Library: &stanza.LibSpec{Name: "mylib", Modes: map[string]bool{"byte": true}}},
		{Kind: stanza.KindInstall, Install: &stanza.InstallSpec{
			Section: "Etc",
			Files:   []stanza.InstallFile{{Source: "foo.conf"}},
		}},
	}
	outs, err := BuildDirectory(testEnv(), "lib/mylib", stanzas, []string{"foo.ml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(outs))
	}
}

func TestBuildDirectoryDispatchesGenerators(t *testing.T) {
	stanzas := []stanza.Stanza{
		{Kind: stanza.KindOcamllex, Ocamllex: &stanza.GeneratorSpec{Names: []string{"lexer"}}},
		{Kind: stanza.KindOcamlyacc, Ocamlyacc: &stanza.GeneratorSpec{Names: []string{"parser"}}},
	}
	outs, err := BuildDirectory(testEnv(), "lib/mylib", stanzas, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(outs))
	}
	if len(outs[0].Rules) != 2 {
		t.Fatalf("expected the lex pipeline to emit 2 rules, got %d", len(outs[0].Rules))
	}
	if len(outs[1].Rules) != 3 {
		t.Fatalf("expected the yacc pipeline to emit 3 rules, got %d", len(outs[1].Rules))
	}
}
