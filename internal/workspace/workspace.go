// Package workspace is the stand-in for the surface-syntax collaborator
// spec.md leaves external: a YAML description of a workspace (its
// external package set plus every directory's stanzas and discovered
// file set) that decodes directly into the typed stanza.Stanza model
// internal/orchestrator dispatches on. A production build of this system
// would replace this file with a real S-expression reader; nothing
// downstream of Load changes shape either way.
package workspace

import (
	"fmt"
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/rdavison/dune/internal/libdb"
	"github.com/rdavison/dune/internal/oset"
	"github.com/rdavison/dune/internal/pkgdb"
	"github.com/rdavison/dune/internal/stanza"
)

// Package is one external-package entry.
type Package struct {
	Name     string   `yaml:"name"`
	RootName string   `yaml:"root_name"`
	Version  string   `yaml:"version"`
	Deps     []string `yaml:"deps"`
}

// Library is the YAML surface for a Library stanza.
type Library struct {
	Name                string   `yaml:"name"`
	PublicName          string   `yaml:"public_name"`
	Wrapped             bool     `yaml:"wrapped"`
	Modes               []string `yaml:"modes"`
	Optional            bool     `yaml:"optional"`
	Libraries           []string `yaml:"libraries"`
	PpxRuntimeLibraries []string `yaml:"ppx_runtime_libraries"`
	OCamlcFlags         []string `yaml:"ocamlc_flags"`
	OCamloptFlags       []string `yaml:"ocamlopt_flags"`
	LinkFlags           []string `yaml:"link_flags"`
	CFlags              []string `yaml:"c_flags"`
	CxxFlags            []string `yaml:"cxx_flags"`
	CLibraryFlags       []string `yaml:"c_library_flags"`
	CNames              []string `yaml:"c_names"`
	CxxNames            []string `yaml:"cxx_names"`
	Modules             []string `yaml:"modules"`
	SelfBuildStubsArchive bool   `yaml:"self_build_stubs_archive"`
}

// Executables is the YAML surface for an Executables stanza.
type Executables struct {
	Names     []string `yaml:"names"`
	Modes     []string `yaml:"modes"`
	Libraries []string `yaml:"libraries"`
	LinkFlags []string `yaml:"link_flags"`
	Modules   []string `yaml:"modules"`
}

// Generator is the YAML surface for an Ocamllex/Ocamlyacc stanza.
type Generator struct {
	Names []string `yaml:"names"`
}

// InstallFile is one entry of an Install stanza.
type InstallFile struct {
	Source   string `yaml:"source"`
	DestName string `yaml:"dest_name"`
}

// Install is the YAML surface for an explicit Install stanza.
type Install struct {
	Section string        `yaml:"section"`
	Package string        `yaml:"package"`
	Files   []InstallFile `yaml:"files"`
}

// Stanza is one tagged union entry: exactly one of the typed fields
// should be set, matching the field named by Kind.
type Stanza struct {
	Kind        string       `yaml:"kind"`
	Library     *Library     `yaml:"library,omitempty"`
	Executables *Executables `yaml:"executables,omitempty"`
	Ocamllex    *Generator   `yaml:"ocamllex,omitempty"`
	Ocamlyacc   *Generator   `yaml:"ocamlyacc,omitempty"`
	Install     *Install     `yaml:"install,omitempty"`
}

// Directory is one directory's declared file set and stanzas.
type Directory struct {
	Dir     string   `yaml:"dir"`
	Files   []string `yaml:"files"`
	Stanzas []Stanza `yaml:"stanzas"`
}

// Workspace is the root YAML document.
type Workspace struct {
	Packages    []Package   `yaml:"packages"`
	Directories []Directory `yaml:"directories"`
}

// Load reads and decodes a workspace description from path.
func Load(path string) (*Workspace, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading %s: %w", path, err)
	}
	var ws Workspace
	if err := yaml.Unmarshal(b, &ws); err != nil {
		return nil, xerrors.Errorf("parsing %s: %w", path, err)
	}
	return &ws, nil
}

// PackageDB builds a *pkgdb.DB from the workspace's declared packages.
func PackageDB(ws *Workspace) *pkgdb.DB {
	db := pkgdb.New()
	for _, p := range ws.Packages {
		rootName := p.RootName
		if rootName == "" {
			rootName = pkgdb.RootPackageName(p.Name)
		}
		db.Register(pkgdb.Entry{
			Pkg: stanza.Package{Name: p.Name, RootName: rootName, Version: p.Version},
			Deps: p.Deps,
		})
	}
	return db
}

func modeSet(names []string) map[string]bool {
	if len(names) == 0 {
		return map[string]bool{"byte": true, "native": true}
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

func toExpr(elems []string) *oset.Expr {
	if len(elems) == 0 {
		return nil
	}
	return oset.Literal(elems...)
}

func toLibDeps(names []string) []stanza.LibDep {
	out := make([]stanza.LibDep, len(names))
	for i, n := range names {
		out[i] = stanza.DirectDep(n)
	}
	return out
}

// ToStanza converts one YAML-surface stanza to the typed stanza.Stanza
// the orchestrator dispatches on. An unrecognized Kind is a configuration
// error, reported immediately rather than silently dropped.
func ToStanza(dir string, s Stanza) (stanza.Stanza, error) {
	switch s.Kind {
	case "library":
		if s.Library == nil {
			return stanza.Stanza{}, fmt.Errorf("%s: library stanza missing its library body", dir)
		}
		l := s.Library
		spec := stanza.LibSpec{
			Name:                l.Name,
			PublicName:          l.PublicName,
			Wrapped:             l.Wrapped,
			Modes:               modeSet(l.Modes),
			Optional:            l.Optional,
			Libraries:           toLibDeps(l.Libraries),
			PpxRuntimeLibraries: toLibDeps(l.PpxRuntimeLibraries),
			OCamlcFlags:         toExpr(l.OCamlcFlags),
			OCamloptFlags:       toExpr(l.OCamloptFlags),
			LinkFlags:           toExpr(l.LinkFlags),
			CFlags:              toExpr(l.CFlags),
			CxxFlags:            toExpr(l.CxxFlags),
			CLibraryFlags:       toExpr(l.CLibraryFlags),
			CNames:              l.CNames,
			CxxNames:            l.CxxNames,
			Modules:             toExpr(l.Modules),
			SelfBuildStubsArchive: l.SelfBuildStubsArchive,
		}
		return stanza.Stanza{Kind: stanza.KindLibrary, Library: &spec}, nil
	case "executables":
		if s.Executables == nil {
			return stanza.Stanza{}, fmt.Errorf("%s: executables stanza missing its executables body", dir)
		}
		e := s.Executables
		spec := stanza.ExecutablesSpec{
			Names:     e.Names,
			Libraries: toLibDeps(e.Libraries),
			Modules:   toExpr(e.Modules),
			LinkFlags: toExpr(e.LinkFlags),
			Modes:     modeSet(e.Modes),
		}
		return stanza.Stanza{Kind: stanza.KindExecutables, Executables: &spec}, nil
	case "ocamllex":
		if s.Ocamllex == nil {
			return stanza.Stanza{}, fmt.Errorf("%s: ocamllex stanza missing its names", dir)
		}
		spec := stanza.GeneratorSpec{Names: s.Ocamllex.Names}
		return stanza.Stanza{Kind: stanza.KindOcamllex, Ocamllex: &spec}, nil
	case "ocamlyacc":
		if s.Ocamlyacc == nil {
			return stanza.Stanza{}, fmt.Errorf("%s: ocamlyacc stanza missing its names", dir)
		}
		spec := stanza.GeneratorSpec{Names: s.Ocamlyacc.Names}
		return stanza.Stanza{Kind: stanza.KindOcamlyacc, Ocamlyacc: &spec}, nil
	case "install":
		if s.Install == nil {
			return stanza.Stanza{}, fmt.Errorf("%s: install stanza missing its body", dir)
		}
		i := s.Install
		files := make([]stanza.InstallFile, len(i.Files))
		for j, f := range i.Files {
			files[j] = stanza.InstallFile{Source: f.Source, OptionalDestName: f.DestName}
		}
		spec := stanza.InstallSpec{Section: i.Section, Package: i.Package, Files: files}
		return stanza.Stanza{Kind: stanza.KindInstall, Install: &spec}, nil
	default:
		return stanza.Stanza{}, fmt.Errorf("%s: unrecognized stanza kind %q", dir, s.Kind)
	}
}

// DirStanzas is one directory's converted stanza set paired with its
// declared file list, the shape orchestrator.BuildDirectory consumes.
type DirStanzas struct {
	Dir     string
	Files   []string
	Stanzas []stanza.Stanza
}

// Convert decodes every directory's YAML-surface stanzas into the typed
// model, in declaration order.
func Convert(ws *Workspace) ([]DirStanzas, error) {
	out := make([]DirStanzas, 0, len(ws.Directories))
	for _, d := range ws.Directories {
		stanzas := make([]stanza.Stanza, 0, len(d.Stanzas))
		for _, s := range d.Stanzas {
			conv, err := ToStanza(d.Dir, s)
			if err != nil {
				return nil, err
			}
			stanzas = append(stanzas, conv)
		}
		out = append(out, DirStanzas{Dir: d.Dir, Files: d.Files, Stanzas: stanzas})
	}
	return out, nil
}

// BuildIndex scans every directory's already-converted Library stanzas
// into a workspace-wide libdb.Index, the first of the two passes a
// generation run needs: a library may depend on a library declared in a
// directory processed later, so the whole index must exist before any
// directory is built.
func BuildIndex(dirs []DirStanzas) libdb.Index {
	idx := make(libdb.Index)
	for _, d := range dirs {
		for _, s := range d.Stanzas {
			if s.Kind == stanza.KindLibrary && s.Library != nil {
				idx[s.Library.Name] = stanza.InternalLib{BuildDir: d.Dir, Spec: *s.Library}
			}
		}
	}
	return idx
}
