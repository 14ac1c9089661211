// Package install implements the install-manifest emitter: per package, it
// gathers installable entries from libraries, executables, explicit
// Install stanzas, auto-discovered documentation, a synthesized META file,
// and a passthrough opam file, then emits the rule writing the package's
// .install manifest. It also emits the editor-integration .merlin file,
// written only for the default build context.
package install

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/stanza"
)

// Section is one of the .install manifest's recognized sections.
type Section string

const (
	Lib      Section = "lib"
	Libexec  Section = "libexec"
	Stublibs Section = "stublibs"
	Doc      Section = "doc"
	Bin      Section = "bin"
	Etc      Section = "etc"
)

// Entry is one file of a section: its source path and an optional
// renamed destination (dune's "source" or "source as dest" form).
type Entry struct {
	Source   bpath.P
	DestName string // "" keeps the source's own basename
}

// Manifest is the full set of installable entries for one package,
// grouped by section. Sections are emitted in the fixed order above so
// the generated file is diff-stable across regenerations.
type Manifest struct {
	Package  string
	Sections map[Section][]Entry
}

// NewManifest returns an empty Manifest for pkg.
func NewManifest(pkg string) *Manifest {
	return &Manifest{Package: pkg, Sections: make(map[Section][]Entry)}
}

// Add appends entry to sec, preserving insertion order.
func (m *Manifest) Add(sec Section, entry Entry) {
	m.Sections[sec] = append(m.Sections[sec], entry)
}

// AddLibraryArtifacts adds the installable artifacts of one internal
// library: per-mode archive files, stub archives and shared objects,
// declared headers, and JS artifacts. The library's individual compiled
// module files (.cmi/.cmo/.cmx) are not added.
func (m *Manifest) AddLibraryArtifacts(ctx bpath.Context, lib stanza.InternalLib) {
	dir := lib.BuildDir
	name := lib.Spec.Name
	if lib.Spec.HasMode("byte") {
		m.Add(Lib, Entry{Source: bpath.Build(ctx, dir+"/"+name+".cma")})
	}
	if lib.Spec.HasMode("native") {
		m.Add(Lib, Entry{Source: bpath.Build(ctx, dir+"/"+name+".cmxa")})
		m.Add(Lib, Entry{Source: bpath.Build(ctx, dir+"/"+name+".a")})
		m.Add(Lib, Entry{Source: bpath.Build(ctx, dir+"/"+name+".cmxs")})
	}
	if len(lib.Spec.CNames) > 0 || len(lib.Spec.CxxNames) > 0 || lib.Spec.SelfBuildStubsArchive {
		m.Add(Stublibs, Entry{Source: bpath.Build(ctx, dir+"/lib"+name+"_stubs.a")})
		m.Add(Stublibs, Entry{Source: bpath.Build(ctx, dir+"/dll"+name+"_stubs.so")})
	}
	for _, h := range lib.Spec.InstallCHeaders {
		m.Add(Lib, Entry{Source: bpath.Source(dir + "/" + h)})
	}
	for _, js := range lib.Spec.JSArtifacts {
		m.Add(Lib, Entry{Source: bpath.Build(ctx, dir+"/"+js)})
	}
}

// AddExecutable adds one built executable to Bin: its native form when
// the native mode is enabled, otherwise its bytecode form.
func AddExecutable(m *Manifest, ctx bpath.Context, dir, name string, modes map[string]bool) {
	if modes["native"] {
		m.Add(Bin, Entry{Source: bpath.Build(ctx, dir+"/"+name+".exe"), DestName: name})
	} else if modes["byte"] {
		m.Add(Bin, Entry{Source: bpath.Build(ctx, dir+"/"+name+".byte"), DestName: name})
	}
}

var sectionOf = map[string]Section{
	"Lib": Lib, "Libexec": Libexec, "Stublibs": Stublibs,
	"Doc": Doc, "Bin": Bin, "Etc": Etc,
}

// AddInstallSpec adds every file of an explicit Install stanza.
func (m *Manifest) AddInstallSpec(dir string, spec stanza.InstallSpec) {
	sec, ok := sectionOf[spec.Section]
	if !ok {
		sec = Etc
	}
	for _, f := range spec.Files {
		m.Add(sec, Entry{Source: bpath.Source(dir + "/" + f.Source), DestName: f.OptionalDestName})
	}
}

// docBasenames is the fixed set of auto-discovered documentation file
// stems; callers glob the directory for these and pass the matches here.
var docBasenames = []string{"README", "README.md", "README.org", "README.txt", "LICENSE"}

// DocBasenames exposes docBasenames for the caller's glob matching.
func DocBasenames() []string { return append([]string(nil), docBasenames...) }

// AddDocs adds every discovered documentation file found (already
// filtered to existing files by the caller) to Doc.
func (m *Manifest) AddDocs(dir string, found []string) {
	for _, f := range found {
		m.Add(Doc, Entry{Source: bpath.Source(dir + "/" + f)})
	}
}

// AddOpamPassthrough adds an opam file's passthrough entry, if present.
func (m *Manifest) AddOpamPassthrough(dir, opamFile string) {
	if opamFile == "" {
		return
	}
	m.Add(Lib, Entry{Source: bpath.Source(dir + "/" + opamFile), DestName: m.Package + ".opam"})
}

// MetaBody synthesizes a minimal findlib META file body for a package
// directly exposing one library per internal dependency, sufficient for
// the package to be findable by name without hand-written META.
func MetaBody(libs []stanza.InternalLib) string {
	var b strings.Builder
	fmt.Fprintf(&b, "description = \"\"\n")
	for _, lib := range libs {
		fmt.Fprintf(&b, "package %q (\n", lib.Spec.BestName())
		fmt.Fprintf(&b, "  directory = %q\n", lib.Spec.Name)
		if len(lib.Spec.Libraries) > 0 {
			names := make([]string, len(lib.Spec.Libraries))
			for i, d := range lib.Spec.Libraries {
				names[i] = d.Direct
			}
			fmt.Fprintf(&b, "  requires = %q\n", strings.Join(names, " "))
		}
		fmt.Fprintf(&b, "  archive(byte) = %q\n", lib.Spec.Name+".cma")
		fmt.Fprintf(&b, "  archive(native) = %q\n", lib.Spec.Name+".cmxa")
		b.WriteString(")\n")
	}
	return b.String()
}

// AddMeta records the META file as a Lib entry and returns that entry;
// the rule writing the file itself is built separately by MetaRule.
func (m *Manifest) AddMeta(dir string) Entry {
	e := Entry{Source: bpath.Source(dir + "/META")}
	m.Add(Lib, e)
	return e
}

// MetaRule emits the rule writing the synthesized META file.
func MetaRule(root, dir string, libs []stanza.InternalLib) graph.Node[graph.Action] {
	return graph.Echo(root, bpath.Source(dir+"/META"), MetaBody(libs))
}

var sectionOrder = []Section{Lib, Libexec, Stublibs, Doc, Bin, Etc}

// Render produces the .install manifest's textual contents, grouping
// entries by section in a fixed order and sorting within a section so
// output is diff-stable.
func (m *Manifest) Render() string {
	var b strings.Builder
	for _, sec := range sectionOrder {
		entries := m.Sections[sec]
		if len(entries) == 0 {
			continue
		}
		sorted := append([]Entry(nil), entries...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Source.Less(sorted[j].Source) })
		fmt.Fprintf(&b, "%s: [\n", sec)
		for _, e := range sorted {
			if e.DestName != "" {
				fmt.Fprintf(&b, "  %q {%q}\n", e.Source.String(), e.DestName)
			} else {
				fmt.Fprintf(&b, "  %q\n", e.Source.String())
			}
		}
		b.WriteString("]\n")
	}
	return b.String()
}

// EmitRule emits the rule writing the package's .install manifest to the
// build tree. When ctx is the default context, a second rule also copies
// it into the source tree, matching the tree-mirroring exception the
// install manifest and .merlin files both need: both are meant to be
// read by tools that don't know about the build tree.
func (m *Manifest) EmitRule(root string, ctx bpath.Context, dir string) (write graph.Node[graph.Action], copyToSource graph.Node[graph.Action], hasCopy bool) {
	target := bpath.Build(ctx, dir+"/"+m.Package+".install")
	write = graph.Echo(root, target, m.Render())
	if ctx != "default" {
		return write, graph.Node[graph.Action]{}, false
	}
	sourceTarget := bpath.Source(dir + "/" + m.Package + ".install")
	copyToSource = graph.Copy(root, target, sourceTarget)
	return write, copyToSource, true
}

// MerlinLine is one line of a .merlin file.
type MerlinLine struct {
	Kind string // "S", "B", "PKG", "FLG"
	Text string
}

// RenderMerlin renders lines into a .merlin file body, one per line in
// the given order, preserving caller-controlled ordering (source/build
// paths first, then packages, then flags, is the conventional shape).
func RenderMerlin(lines []MerlinLine) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%s %s\n", l.Kind, l.Text)
	}
	return b.String()
}

// MerlinRule emits the rule writing a directory's .merlin file. Per the
// editor-integration contract, this is only ever called for the default
// build context; the caller enforces that, since .merlin has no context
// suffix to distinguish it.
func MerlinRule(root, dir string, lines []MerlinLine) graph.Node[graph.Action] {
	return graph.Echo(root, bpath.Source(dir+"/.merlin"), RenderMerlin(lines))
}
