package install

import (
	"strings"
	"testing"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/stanza"
)

func TestAddLibraryArtifactsBothModes(t *testing.T) {
	lib := stanza.InternalLib{
		BuildDir: "lib/foo",
		Spec: stanza.LibSpec{
			Name:  "foo",
			Modes: map[string]bool{"byte": true, "native": true},
		},
	}
	m := NewManifest("foo")
	m.AddLibraryArtifacts(bpath.Context("default"), lib)
	if len(m.Sections[Lib]) != 4 {
		t.Fatalf("got %d lib entries, want 4 (cma, cmxa, a, cmxs): %+v", len(m.Sections[Lib]), m.Sections[Lib])
	}
}

func TestAddLibraryArtifactsStubs(t *testing.T) {
	lib := stanza.InternalLib{
		BuildDir: "lib/foo",
		Spec:     stanza.LibSpec{Name: "foo", CNames: []string{"bindings"}},
	}
	m := NewManifest("foo")
	m.AddLibraryArtifacts(bpath.Context("default"), lib)
	if len(m.Sections[Stublibs]) != 2 {
		t.Fatalf("got %d stublibs entries, want 2", len(m.Sections[Stublibs]))
	}
}

func TestAddInstallSpecUnknownSectionFallsBackToEtc(t *testing.T) {
	m := NewManifest("foo")
	m.AddInstallSpec("etc/foo", stanza.InstallSpec{
		Section: "Bogus",
		Files:   []stanza.InstallFile{{Source: "foo.conf"}},
	})
	if len(m.Sections[Etc]) != 1 {
		t.Fatalf("expected the unknown section to fall back to Etc")
	}
}

func TestRenderIsSortedAndSectioned(t *testing.T) {
	m := NewManifest("foo")
	m.Add(Bin, Entry{Source: bpath.Build(bpath.Context("default"), "bin/zzz.exe"), DestName: "zzz"})
	m.Add(Bin, Entry{Source: bpath.Build(bpath.Context("default"), "bin/aaa.exe"), DestName: "aaa"})
	out := m.Render()
	if strings.Index(out, "aaa") > strings.Index(out, "zzz") {
		t.Fatalf("expected aaa before zzz in sorted output: %s", out)
	}
}

func TestEmitRuleCopiesOnlyForDefaultContext(t *testing.T) {
	m := NewManifest("foo")
	_, _, hasCopy := m.EmitRule("/root", bpath.Context("default"), "lib/foo")
	if !hasCopy {
		t.Fatalf("expected a source-tree copy rule for the default context")
	}
	_, _, hasCopy = m.EmitRule("/root", bpath.Context("cross-arm64"), "lib/foo")
	if hasCopy {
		t.Fatalf("expected no source-tree copy rule for a non-default context")
	}
}

func TestMetaBodyIncludesEachLibrary(t *testing.T) {
	libs := []stanza.InternalLib{
		{Spec: stanza.LibSpec{Name: "foo"}},
		{Spec: stanza.LibSpec{Name: "bar", Libraries: []stanza.LibDep{{Direct: "foo"}}}},
	}
	body := MetaBody(libs)
	if !strings.Contains(body, `"foo"`) || !strings.Contains(body, `"bar"`) {
		t.Fatalf("got %q", body)
	}
	if !strings.Contains(body, `requires = "foo"`) {
		t.Fatalf("expected bar's requires line to name foo: %q", body)
	}
}

func TestRenderMerlinOneLinePerEntry(t *testing.T) {
	out := RenderMerlin([]MerlinLine{
		{Kind: "S", Text: "."},
		{Kind: "PKG", Text: "core"},
	})
	want := "S .\nPKG core\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}
