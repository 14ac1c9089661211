// Package compile implements the compilation rule emitter: per module and
// code-generation artifact kind, emits rules with the correct
// cross-artifact and cross-module ordering, alias-module synthesis for
// wrapped libraries, and bin-annotation sidecars.
package compile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/stanza"
	"github.com/rdavison/dune/internal/toolenv"
)

// Artifact discriminates the three code-generation artifact kinds.
type Artifact int

const (
	Interface Artifact = iota
	Bytecode
	Native
)

// Ext is the artifact's primary output extension.
func (a Artifact) Ext() string {
	switch a {
	case Interface:
		return ".cmi"
	case Bytecode:
		return ".cmo"
	case Native:
		return ".cmx"
	default:
		return ""
	}
}

// Sidecar is the bin-annotation sidecar extension for artifacts that emit
// one; Native has none.
func (a Artifact) Sidecar() (ext string, ok bool) {
	switch a {
	case Interface:
		return ".cmti", true
	case Bytecode:
		return ".cmt", true
	default:
		return "", false
	}
}

// AssignObjectNames sets each module's ObjectName: the main module (whose
// name equals the capitalized library name) keeps its raw file stem;
// every other module of a wrapped library gets "{library}__{name}"; an
// unwrapped library's modules all keep their raw stem.
func AssignObjectNames(libName string, wrapped bool, mods []stanza.Module) []stanza.Module {
	mainName := stanza.Capitalize(libName)
	out := make([]stanza.Module, len(mods))
	for i, m := range mods {
		if wrapped && m.Name != mainName {
			m.ObjectName = libName + "__" + m.Name
		} else {
			m.ObjectName = stanza.Stem(m.ImplFile)
		}
		out[i] = m
	}
	return out
}

// NeedsAlias reports whether a wrapped library needs a synthesized alias
// module: more than one module. A single module named identically to the
// library needs no alias and no -open flag; that case falls out of this
// same "more than one module" rule without special-casing it.
func NeedsAlias(wrapped bool, mods []stanza.Module) bool {
	return wrapped && len(mods) > 1
}

// AliasName is the synthesized alias module's Name, e.g. library "mylib"
// gets alias module "Mylib__".
func AliasName(libName string) string {
	return stanza.Capitalize(libName) + "__"
}

// AliasModule builds the synthesized alias Module record and its
// generated source body: one "module {Name} = {ObjectName-capitalized}"
// line per non-main module, in mods' given order (insertion order of the
// caller's module map).
func AliasModule(libName string, mods []stanza.Module) (stanza.Module, string) {
	mainName := stanza.Capitalize(libName)
	name := AliasName(libName)
	var lines []string
	for _, m := range mods {
		if m.Name == mainName {
			continue
		}
		lines = append(lines, fmt.Sprintf("module %s = %s", m.Name, stanza.Capitalize(m.ObjectName)))
	}
	body := strings.Join(lines, "\n")
	if body != "" {
		body += "\n"
	}
	alias := stanza.Module{
		Name:       name,
		ImplFile:   libName + "__.ml",
		ObjectName: libName + "__",
	}
	return alias, body
}

// AliasRule emits the Node that writes the alias module's generated
// source by echoing body to its .ml file. The caller additionally
// compiles it like any other module (with warning 49 silenced and no
// cross-module dependencies) via ModuleRules.
func AliasRule(root string, ctx bpath.Context, dir string, alias stanza.Module, body string) graph.Node[graph.Action] {
	return graph.Echo(root, bpath.Source(dir+"/"+alias.ImplFile), body)
}

// LibContext is the fixed, per-library context ModuleRules needs beyond a
// single module: its directory, the object-name map for cross-module
// dependency resolution, the alias module's name (if any), and the
// per-mode flags already evaluated by the caller via the Ordered Set
// Language (internal/oset).
type LibContext struct {
	Dir           string
	ObjectNameOf  map[string]string // Module.Name -> ObjectName, includes the alias
	AliasModule   string            // "" if the library has none
	OCamlcFlags   []string
	OCamloptFlags []string
	LinkFlags     []string
}

// artifactPath is always a build-tree path: cm artifacts are generated,
// never part of the source tree, even though the .ml/.mli they're
// compiled from are bpath.Source paths.
func artifactPath(ctx bpath.Context, dir, objectName string, a Artifact) bpath.P {
	return bpath.Build(ctx, dir+"/"+objectName+a.Ext())
}

// ArtifactPath exposes artifactPath to other emitters (internal/archive,
// internal/orchestrator) that need a module's cm path without duplicating the
// naming convention.
func ArtifactPath(ctx bpath.Context, dir, objectName string, a Artifact) bpath.P {
	return artifactPath(ctx, dir, objectName, a)
}

func sidecarPath(ctx bpath.Context, dir, objectName, ext string) bpath.P {
	return bpath.Build(ctx, dir+"/"+objectName+ext)
}

// ModuleRules emits the Node chain producing every artifact rule for one
// module: interface, bytecode, and native compilation, with their
// cross-artifact and cross-module extra deps/targets/args. cc selects
// which compilers are configured — a mode is skipped entirely when its
// compiler isn't; deps is a Node resolving to the module's cross-module
// dependency list (by module name), read from the persisted scan output
// by the caller — it stays a Node rather than a plain slice because that
// file is a target of the scan rule, not yet present when this rule is
// generated, so the read is deferred into each artifact rule's own
// realization instead of happening here; allCMDeps are the library-wide
// artifacts every module in the library additionally depends on.
func ModuleRules(root string, ctx bpath.Context, lib LibContext, m stanza.Module, cc *toolenv.Config, deps graph.Node[[]string], allCMDeps []bpath.P) map[Artifact]graph.Node[graph.Action] {
	out := make(map[Artifact]graph.Node[graph.Action])
	objectName := lib.ObjectNameOf[m.Name]
	isAlias := m.Name == lib.AliasModule

	ocamlc, haveByte := cc.Lookup("OCAMLC")
	ocamlopt, haveNative := cc.Lookup("OCAMLOPT")

	crossDeps := func(a Artifact, names []string) []bpath.P {
		var ps []bpath.P
		for _, dep := range names {
			depObj := lib.ObjectNameOf[dep]
			if depObj == "" {
				continue
			}
			ps = append(ps, artifactPath(ctx, lib.Dir, depObj, Interface))
			if a == Native {
				ps = append(ps, artifactPath(ctx, lib.Dir, depObj, Native))
			}
		}
		return ps
	}

	baseFlags := func(a Artifact) []graph.ArgFrag {
		var flags []graph.ArgFrag
		if !isAlias && lib.AliasModule != "" {
			flags = append(flags, graph.Lit("-open"), graph.Lit(lib.AliasModule))
		}
		if isAlias {
			flags = append(flags, graph.Lit("-w"), graph.Lit("-49"))
		}
		flags = append(flags, graph.Lit("-I"), graph.Lit("."), graph.Lit("-no-alias-deps"))
		switch a {
		case Bytecode:
			flags = append(flags, graph.LitAll(lib.OCamlcFlags)...)
		case Native:
			flags = append(flags, graph.LitAll(lib.OCamloptFlags)...)
		}
		return flags
	}

	if m.HasIntf() && haveByte {
		cmi := artifactPath(ctx, lib.Dir, objectName, Interface)
		out[Interface] = graph.FlatMap(deps, func(names []string) graph.Node[graph.Action] {
			argSpec := append(baseFlags(Interface), graph.Lit("-c"), graph.ArgPath(bpath.Source(lib.Dir+"/"+m.IntfFile)))
			for _, d := range crossDeps(Interface, names) {
				argSpec = append(argSpec, graph.ArgPath(d))
			}
			for _, d := range allCMDeps {
				argSpec = append(argSpec, graph.ArgPath(d))
			}
			argSpec = append(argSpec, graph.ArgTarget(cmi))
			if ext, ok := Interface.Sidecar(); ok {
				argSpec = append(argSpec, graph.ArgTarget(sidecarPath(ctx, lib.Dir, objectName, ext)))
			}
			return graph.Run(root, lib.Dir, ocamlc, argSpec, nil, nil, nil, nil)
		})
	}

	if haveByte {
		cmo := artifactPath(ctx, lib.Dir, objectName, Bytecode)
		out[Bytecode] = graph.FlatMap(deps, func(names []string) graph.Node[graph.Action] {
			argSpec := append(baseFlags(Bytecode), graph.Lit("-c"), graph.ArgPath(bpath.Source(lib.Dir+"/"+m.ImplFile)))
			if m.HasIntf() {
				argSpec = append(argSpec, graph.ArgPath(artifactPath(ctx, lib.Dir, objectName, Interface)))
			}
			for _, d := range crossDeps(Bytecode, names) {
				argSpec = append(argSpec, graph.ArgPath(d))
			}
			for _, d := range allCMDeps {
				argSpec = append(argSpec, graph.ArgPath(d))
			}
			argSpec = append(argSpec, graph.ArgTarget(cmo))
			if ext, ok := Bytecode.Sidecar(); ok {
				argSpec = append(argSpec, graph.ArgTarget(sidecarPath(ctx, lib.Dir, objectName, ext)))
			}
			if !m.HasIntf() {
				// Bytecode becomes the sole producer of the interface artifact
				// when no .mli is present.
				argSpec = append(argSpec, graph.ArgTarget(artifactPath(ctx, lib.Dir, objectName, Interface)))
			}
			return graph.Run(root, lib.Dir, ocamlc, argSpec, nil, nil, nil, nil)
		})
	}

	if haveNative {
		cmx := artifactPath(ctx, lib.Dir, objectName, Native)
		obj := sidecarPath(ctx, lib.Dir, objectName, ".o")
		out[Native] = graph.FlatMap(deps, func(names []string) graph.Node[graph.Action] {
			argSpec := append(baseFlags(Native), graph.Lit("-c"))
			if !m.HasIntf() {
				argSpec = append(argSpec, graph.Lit("-intf-suffix"), graph.Lit(stanza.Ext(m.ImplFile)))
			}
			argSpec = append(argSpec, graph.ArgPath(bpath.Source(lib.Dir+"/"+m.ImplFile)))
			argSpec = append(argSpec, graph.ArgPath(artifactPath(ctx, lib.Dir, objectName, Interface)))
			for _, d := range crossDeps(Native, names) {
				argSpec = append(argSpec, graph.ArgPath(d))
			}
			for _, d := range allCMDeps {
				argSpec = append(argSpec, graph.ArgPath(d))
			}
			argSpec = append(argSpec, graph.ArgTarget(cmx), graph.ArgTarget(obj))
			return graph.Run(root, lib.Dir, ocamlopt, argSpec, nil, nil, nil, nil)
		})
	}

	return out
}

// AllCMSentinelPath is the zero-byte sentinel path AllCMSentinel writes,
// exported so callers elsewhere (e.g. a dependent library's compile rules)
// can depend on it without re-deriving the naming convention.
func AllCMSentinelPath(ctx bpath.Context, dir, libName string, a Artifact) bpath.P {
	return bpath.Build(ctx, fmt.Sprintf("%s/.%s%s.all", dir, libName, a.Ext()))
}

// AllCMSentinel emits the zero-byte file recording that every cm file of
// kind a for a library has been built; it lives here, not
// internal/archive, since it is indexed per-artifact the same way
// ModuleRules' outputs are.
func AllCMSentinel(root string, ctx bpath.Context, dir, libName string, a Artifact, cmFiles []bpath.P) graph.Node[graph.Action] {
	sorted := append([]bpath.P(nil), cmFiles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	target := AllCMSentinelPath(ctx, dir, libName, a)
	return graph.FlatMap(graph.Paths(sorted), func([]bpath.P) graph.Node[graph.Action] {
		return graph.CreateFile(root, target, nil)
	})
}
