// Package stubs implements the C/C++ stub pipeline: per-file object
// compilation, then a single rule producing both the static stub archive
// and its companion shared object, mirroring ocamlmklib's own two-output
// invocation.
package stubs

import (
	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/toolenv"
)

// Lang distinguishes the two stub source languages. C compiles through
// ocamlc acting as a C driver (so every flag needs -ccopt prefixing); C++
// has no such driver and invokes the detected C++ compiler directly.
type Lang int

const (
	C Lang = iota
	Cxx
)

func (l Lang) ext() string {
	if l == Cxx {
		return ".cpp"
	}
	return ".c"
}

// ObjectRule compiles one stub source file to a .o, using flags (the
// library's c_flags or cxx_flags, already Ordered Set Language-evaluated).
func ObjectRule(root string, ctx bpath.Context, dir, name string, lang Lang, cc *toolenv.Config, flags []string) (graph.Node[graph.Action], bpath.P, bool) {
	src := bpath.Source(dir + "/" + name + lang.ext())
	obj := bpath.Build(ctx, dir+"/"+name+".o")

	var argSpec []graph.ArgFrag
	var prog string
	var ok bool

	switch lang {
	case C:
		prog, ok = cc.Lookup("OCAMLC")
		if !ok {
			return graph.Node[graph.Action]{}, bpath.P{}, false
		}
		argSpec = append(argSpec, graph.Lit("-c"))
		for _, f := range flags {
			argSpec = append(argSpec, graph.Lit("-ccopt"), graph.Lit(f))
		}
	case Cxx:
		prog, ok = cc.Lookup("CXX")
		if !ok {
			return graph.Node[graph.Action]{}, bpath.P{}, false
		}
		ocamlWhere, _ := cc.Lookup("ocaml_where")
		argSpec = append(argSpec, graph.Lit("-c"))
		argSpec = append(argSpec, graph.LitAll(flags)...)
		if ocamlWhere != "" {
			argSpec = append(argSpec, graph.Lit("-I"), graph.Lit(ocamlWhere))
		}
	}
	argSpec = append(argSpec, graph.ArgPath(src), graph.Lit("-o"), graph.ArgTarget(obj))

	return graph.Run(root, dir, prog, argSpec, nil, nil, nil, nil), obj, true
}

// ArchiveRule emits the single rule that produces a library's static stub
// archive (lib{name}_stubs.a) and its companion shared object
// (dll{name}_stubs.so) from the compiled stub objects via ocamlmklib,
// which always writes both from one invocation. cLibraryFlags carries
// external linker flags (e.g. -lz) the stanza declares.
func ArchiveRule(root string, ctx bpath.Context, dir, libName string, objects []bpath.P, cc *toolenv.Config, cLibraryFlags []string) (graph.Node[graph.Action], bool) {
	mklib, ok := cc.Lookup("OCAMLMKLIB")
	if !ok {
		return graph.Node[graph.Action]{}, false
	}

	archive := bpath.Build(ctx, dir+"/lib"+libName+"_stubs.a")
	shared := bpath.Build(ctx, dir+"/dll"+libName+"_stubs.so")

	var argSpec []graph.ArgFrag
	argSpec = append(argSpec, graph.Lit("-o"), graph.Lit(libName+"_stubs"))
	for _, o := range objects {
		argSpec = append(argSpec, graph.ArgPath(o))
	}
	for _, f := range cLibraryFlags {
		argSpec = append(argSpec, graph.Lit(f))
	}
	argSpec = append(argSpec, graph.ArgTarget(archive), graph.ArgTarget(shared))

	return graph.Run(root, dir, mklib, argSpec, nil, nil, nil, nil), true
}
