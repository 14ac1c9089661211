package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rdavison/dune/internal/stanza"
)

func writeWorkspace(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspace.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDecodesPackagesAndDirectories(t *testing.T) {
	path := writeWorkspace(t, `
packages:
  - name: base
    root_name: base
directories:
  - dir: lib/foo
    files: [foo.ml, foo.mli]
    stanzas:
      - kind: library
        library:
          name: foo
          libraries: [base]
`)
	ws, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(ws.Packages) != 1 || ws.Packages[0].Name != "base" {
		t.Fatalf("got %+v", ws.Packages)
	}
	if len(ws.Directories) != 1 || ws.Directories[0].Dir != "lib/foo" {
		t.Fatalf("got %+v", ws.Directories)
	}
}

func TestToStanzaLibrary(t *testing.T) {
	s := Stanza{Kind: "library", Library: &Library{Name: "foo", Libraries: []string{"base"}}}
	out, err := ToStanza("lib/foo", s)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != stanza.KindLibrary || out.Library.Name != "foo" {
		t.Fatalf("got %+v", out)
	}
	if len(out.Library.Libraries) != 1 || out.Library.Libraries[0].Direct != "base" {
		t.Fatalf("got %+v", out.Library.Libraries)
	}
	if !out.Library.Modes["byte"] || !out.Library.Modes["native"] {
		t.Fatalf("expected default modes, got %+v", out.Library.Modes)
	}
}

func TestToStanzaUnrecognizedKind(t *testing.T) {
	if _, err := ToStanza("lib/foo", Stanza{Kind: "bogus"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPackageDBRegistersDeclaredPackages(t *testing.T) {
	ws := &Workspace{Packages: []Package{{Name: "base"}}}
	db := PackageDB(ws)
	if _, err := db.Find("base"); err != nil {
		t.Fatal(err)
	}
}

func TestConvertAndBuildIndex(t *testing.T) {
	ws := &Workspace{
		Directories: []Directory{
			{
				Dir:   "lib/foo",
				Files: []string{"foo.ml"},
				Stanzas: []Stanza{
					{Kind: "library", Library: &Library{Name: "foo"}},
				},
			},
		},
	}
	dirs, err := Convert(ws)
	if err != nil {
		t.Fatal(err)
	}
	idx := BuildIndex(dirs)
	lib, ok := idx["foo"]
	if !ok || lib.BuildDir != "lib/foo" {
		t.Fatalf("got %+v, ok=%v", lib, ok)
	}
}
